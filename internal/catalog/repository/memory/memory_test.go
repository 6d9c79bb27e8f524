package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

func TestUpsertAndGetCanonical(t *testing.T) {
	ctx := context.Background()
	r := New()

	id, err := r.UpsertCanonical(ctx, model.Canonical{Name: "iPhone 15"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := r.GetCanonical(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 15", got.Name)
}

func TestGetCanonicalNotFound(t *testing.T) {
	r := New()
	_, err := r.GetCanonical(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResolveBrandIDContainment(t *testing.T) {
	r := New()
	r.SeedBrand("apple", "brand-1")

	id, err := r.ResolveBrandID(context.Background(), "apple inc")
	require.NoError(t, err)
	assert.Equal(t, "brand-1", id)
}

func TestListRawListingsFilterAndPaginate(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.SeedRawListings(
		model.RawListing{ID: "1", SourceID: "tiki", DedupStatus: model.DedupStatusPending},
		model.RawListing{ID: "2", SourceID: "tiki", DedupStatus: model.DedupStatusProcessed},
		model.RawListing{ID: "3", SourceID: "shopee", DedupStatus: model.DedupStatusPending},
	)

	out, err := r.ListRawListings(ctx, repository.RawListingFilter{DedupStatus: model.DedupStatusPending})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	count, err := r.CountRawListings(ctx, repository.RawListingFilter{SourceID: "tiki"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetPendingReviewsOrdering(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.InsertReviewItems(ctx, []model.ReviewItem{
		{ID: "a", Status: model.ReviewStatusPending, Priority: 10},
		{ID: "b", Status: model.ReviewStatusPending, Priority: 90},
		{ID: "c", Status: model.ReviewStatusApproved, Priority: 99},
	}))

	out, err := r.GetPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
}
