package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncatalog/dedup-engine/internal/catalog/collapse"
	"github.com/vncatalog/dedup-engine/internal/catalog/extract"
	"github.com/vncatalog/dedup-engine/internal/catalog/history"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/normalize"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository/memory"
	"github.com/vncatalog/dedup-engine/internal/catalog/scoring"
	"github.com/vncatalog/dedup-engine/pkg/constants"
	"github.com/vncatalog/dedup-engine/pkg/events"
	streammock "github.com/vncatalog/dedup-engine/pkg/testutil/mocks/stream"
)

func seedListing(l model.RawListing) model.RawListing {
	l.NameNormalized = normalize.Name(l.Name)
	l.DedupStatus = model.DedupStatusPending
	return l
}

func seedRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo := memory.New()
	repo.SeedSources(
		model.Source{ID: "tiki", Name: "tiki", IsActive: true},
		model.Source{ID: "shopee", Name: "shopee", IsActive: true},
		model.Source{ID: "lazada", Name: "lazada", IsActive: true},
	)

	listings := []model.RawListing{
		{
			ID: "t1", SourceID: "tiki", ExternalID: "t1", Name: "iPhone 15 Pro Max 256GB",
			BrandRaw: "Apple", Price: 29_990_000, Rating: 4.8, ReviewCount: 120, Available: true,
		},
		{
			ID: "s1", SourceID: "shopee", ExternalID: "s1", Name: "iPhone 15 Pro Max 256GB",
			BrandRaw: "Apple", Price: 29_790_000, Rating: 4.7, ReviewCount: 80, Available: true,
		},
		{
			ID: "l1", SourceID: "lazada", ExternalID: "l1", Name: "Samsung Galaxy S23 128GB",
			BrandRaw: "Samsung", Price: 15_990_000, Rating: 4.5, ReviewCount: 40, Available: true,
		},
	}
	for i, l := range listings {
		l.NameNormalized = normalize.Name(l.Name)
		l.DedupStatus = model.DedupStatusPending
		listings[i] = l
	}
	repo.SeedRawListings(listings...)
	return repo
}

func TestDeduplicateMergesMatchingListingsAcrossSources(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t)
	runner := New(repo, nil, nil)

	var events []ProgressEvent
	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, func(e ProgressEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, j.Status)
	assert.Equal(t, 3, j.Processed)
	assert.Equal(t, 2, j.CanonicalCreated, "iPhone listings should merge into one canonical, Samsung into another")
	assert.Equal(t, 3, j.MappingsCreated)
	assert.NotEmpty(t, events)
	assert.Equal(t, model.JobPhaseDone, events[len(events)-1].Phase)

	canonicals, err := repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, canonicals, 2)

	var iphone model.Canonical
	for _, c := range canonicals {
		if c.SourceCount == 2 {
			iphone = c
		}
	}
	require.NotEmpty(t, iphone.ID)
	assert.True(t, iphone.MinPrice > 0 && iphone.MinPrice <= iphone.MaxPrice)

	mappings, err := repo.GetMappingsForCanonical(ctx, iphone.ID)
	require.NoError(t, err)
	assert.Len(t, mappings, 2)
}

func TestDeduplicateIncrementalSkipsAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t)
	runner := New(repo, nil, nil)

	_, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err)

	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeIncremental, BatchSize: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, j.Processed, "no pending listings remain after a fresh run")
	assert.Equal(t, 0, j.TotalRaw)
}

func TestDeduplicateCrossSourceLinkingRunsWithoutError(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t)
	runner := New(repo, nil, nil)

	j, err := runner.Deduplicate(ctx, Config{
		Mode:               model.JobModeFresh,
		BatchSize:          10,
		CrossSourceEnabled: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, j.Status)
}

func TestDeduplicatePublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t)
	producer := streammock.NewMockProducerWithSuccess()
	runner := New(repo, nil, nil).WithStreamProducer(producer)

	_, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err)

	types := make(map[string]bool)
	for _, call := range producer.Calls {
		e := call.Arguments.Get(2).(*events.Event)
		types[e.Type] = true
		assert.Equal(t, constants.StreamDedupJobs, call.Arguments.String(1))
	}
	assert.True(t, types[events.EventTypeJobStarted])
	assert.True(t, types[events.EventTypeJobCompleted])
}

func TestDeduplicateSurvivesStreamOutage(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t)
	producer := streammock.NewMockProducerWithError(assert.AnError)
	runner := New(repo, nil, nil).WithStreamProducer(producer)

	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err, "a dead lifecycle stream must never fail the run")
	assert.Equal(t, model.JobStatusCompleted, j.Status)
}

func TestDeduplicateCancelledContext(t *testing.T) {
	repo := seedRepo(t)
	runner := New(repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh}, nil)
	require.Error(t, err)
}

// TestScenarioIPhoneCrossSourceFusion walks the fusion path: the same
// iPhone listed on three sources at three different prices fuses into
// one canonical spanning all three.
func TestScenarioIPhoneCrossSourceFusion(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.SeedSources(
		model.Source{ID: "tiki", Name: "tiki", IsActive: true},
		model.Source{ID: "shopee", Name: "shopee", IsActive: true},
		model.Source{ID: "lazada", Name: "lazada", IsActive: true},
	)
	repo.SeedRawListings(
		seedListing(model.RawListing{ID: "t1", SourceID: "tiki", ExternalID: "t1",
			Name:        "iPhone 15 Pro Max 256GB Titanium Xanh Chính Hãng VN/A",
			BrandRaw:    "Apple", Price: 34_990_000, Rating: 4.8, ReviewCount: 215, Available: true,
			Description: "iPhone 15 Pro Max chính hãng VN/A, khung Titanium", ImageURL: "https://tiki.vn/iphone-15-pro-max.jpg"}),
		seedListing(model.RawListing{ID: "s1", SourceID: "shopee", ExternalID: "s1",
			Name:        "iPhone 15 Pro Max 256GB Xanh - Chính Hãng Apple",
			BrandRaw:    "Apple", Price: 35_500_000, Rating: 4.7, ReviewCount: 98, Available: true,
			Description: "Hàng chính hãng, bảo hành 12 tháng", ImageURL: "https://shopee.vn/iphone-15-pro-max.jpg"}),
		seedListing(model.RawListing{ID: "l1", SourceID: "lazada", ExternalID: "l1",
			Name:        "Apple iPhone 15 Pro Max 256GB - Blue Titanium",
			BrandRaw:    "Apple", Price: 34_800_000, Rating: 4.9, ReviewCount: 64, Available: true,
			Description: "Blue Titanium, nguyên seal", ImageURL: "https://lazada.vn/iphone-15-pro-max.jpg"}),
	)

	runner := New(repo, nil, nil)
	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, j.Processed)
	assert.Equal(t, 1, j.CanonicalCreated, "the same phone from three sources must fuse into one canonical")
	assert.Equal(t, 3, j.MappingsCreated)

	canonicals, err := repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, canonicals, 1)

	c := canonicals[0]
	assert.Equal(t, 3, c.SourceCount)
	assert.Equal(t, float64(34_800_000), c.MinPrice)
	assert.Equal(t, float64(35_500_000), c.MaxPrice)
	assert.GreaterOrEqual(t, c.QualityScore, 60.0)

	mappings, err := repo.GetMappingsForCanonical(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, mappings, 3)
}

// TestScenarioAccessoryRejection walks the rejection path: a phone and a
// case naming the same phone never merge, regardless of how close their
// category/price features look, because the type gate rejects any
// device/accessory pair outright.
func TestScenarioAccessoryRejection(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.SeedSources(
		model.Source{ID: "tiki", Name: "tiki", IsActive: true},
		model.Source{ID: "shopee", Name: "shopee", IsActive: true},
	)
	device := seedListing(model.RawListing{ID: "t1", SourceID: "tiki", ExternalID: "t1",
		Name: "Apple iPhone 16 Pro 128GB Chính Hãng VN/A", BrandRaw: "Apple", Price: 30_990_000})
	accessory := seedListing(model.RawListing{ID: "s1", SourceID: "shopee", ExternalID: "s1",
		Name: "Ốp Lưng Sạc Từ Tính cho iPhone 16 Pro", BrandRaw: "Apple", Price: 630_000})
	repo.SeedRawListings(device, accessory)

	runner := New(repo, nil, nil)
	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, j.CanonicalCreated, "a device and an accessory naming the same phone must never fuse")
	assert.Equal(t, 2, j.MappingsCreated)

	canonicals, err := repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, canonicals, 2)
	for _, c := range canonicals {
		assert.Equal(t, 1, c.SourceCount)
	}

	result := scoring.Score(
		scoring.Pair{Listing: device, Code: extract.Extract(device.Name)},
		scoring.Pair{Listing: accessory, Code: extract.Extract(accessory.Name)},
		scoring.DefaultWeights(),
	)
	assert.LessOrEqual(t, result.Score, 0.2)
	assert.Equal(t, model.MethodNoMatch, result.Method)
}

// TestScenarioVariantSplit walks the variant path: four storage/color
// combinations of the same phone fuse into one canonical, then split
// into four distinct variant rows. Clustering storage variants that far
// apart needs the block's threshold lowered below the global default,
// so the test installs a runtime override the way an operator tuning a
// noisy category would.
func TestScenarioVariantSplit(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.SeedSources(
		model.Source{ID: "tiki", Name: "tiki", IsActive: true},
		model.Source{ID: "shopee", Name: "shopee", IsActive: true},
		model.Source{ID: "lazada", Name: "lazada", IsActive: true},
		model.Source{ID: "dienmayxanh", Name: "dienmayxanh", IsActive: true},
	)
	repo.SeedRawListings(
		seedListing(model.RawListing{ID: "t1", SourceID: "tiki", ExternalID: "t1",
			Name: "iPhone 15 128GB Xanh Chính Hãng", BrandRaw: "Apple", Price: 32_990_000}),
		seedListing(model.RawListing{ID: "s1", SourceID: "shopee", ExternalID: "s1",
			Name: "iPhone 15 256GB Xanh Chính Hãng", BrandRaw: "Apple", Price: 34_990_000}),
		seedListing(model.RawListing{ID: "l1", SourceID: "lazada", ExternalID: "l1",
			Name: "iPhone 15 256GB Đen Chính Hãng", BrandRaw: "Apple", Price: 34_990_000}),
		seedListing(model.RawListing{ID: "d1", SourceID: "dienmayxanh", ExternalID: "d1",
			Name: "iPhone 15 512GB Xanh Chính Hãng", BrandRaw: "Apple", Price: 40_990_000}),
	)

	runner := New(repo, nil, nil)
	runner.oracle.SetOverride("default", 0.50)
	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10, MinMatchScore: 0.01}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, j.CanonicalCreated, "storage/color variants of one phone must fuse into one canonical")
	assert.Equal(t, 4, j.MappingsCreated)

	canonicals, err := repo.SearchCanonicalsByNamePrefix(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, canonicals, 1)

	variants := repo.GetVariants(canonicals[0].ID)
	require.Len(t, variants, 4, "128/256-blue/256-black/512 must produce four distinct variant rows")
	keys := make(map[string]bool)
	for _, v := range variants {
		keys[v.VariantKey] = true
		assert.Equal(t, v.MinPrice, v.MaxPrice, "each variant here has exactly one backing listing")
	}
	assert.Len(t, keys, 4, "variant keys must be pairwise distinct")
}

// TestScenarioIntraSourceDuplicateCollapse exercises the collapse step: two
// listings from the same source, same name and price but different
// shop_id, collapse into a single representative before clustering ever
// sees them, so only one mapping is created.
func TestScenarioIntraSourceDuplicateCollapse(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	repo.SeedSources(model.Source{ID: "shopee", Name: "shopee", IsActive: true})

	a := seedListing(model.RawListing{ID: "s1", SourceID: "shopee", ExternalID: "s1",
		Name: "iPhone 15 Pro Max 256GB Xanh Chính Hãng", BrandRaw: "Apple", Price: 34_990_000, ShopID: "shop_a"})
	b := seedListing(model.RawListing{ID: "s2", SourceID: "shopee", ExternalID: "s2",
		Name: "iPhone 15 Pro Max 256GB Xanh Chính Hãng", BrandRaw: "Apple", Price: 34_990_000, ShopID: "shop_b"})

	results := collapse.Collapse([]model.RawListing{a, b})
	require.Len(t, results, 1, "identical name and price from the same source must collapse to one representative")
	gotShops := append([]string{results[0].Representative.ShopID}, results[0].DuplicateShopIDs...)
	assert.ElementsMatch(t, []string{"shop_a", "shop_b"}, gotShops)

	repo.SeedRawListings(a, b)
	runner := New(repo, nil, nil)
	j, err := runner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, j.Processed, "both raw rows are marked processed even though only one is mapped")
	assert.Equal(t, 1, j.CanonicalCreated)
	assert.Equal(t, 1, j.MappingsCreated, "the collapsed duplicate never gets its own mapping")
}

// sonyHeadphonePair returns the two Sony audio listings used by
// TestScenarioAdaptiveThreshold: they score ~0.73, enough to clear
// audio's 0.72 category threshold but not appliance's 0.82, exercising
// the block's adaptive per-category tau instead of the clusterer's
// global default. The shared spec sheet is what lifts the pair over
// audio's bar despite the 13% price gap.
func sonyHeadphonePair(category string) (model.RawListing, model.RawListing) {
	specs := map[string]string{"thương hiệu": "Sony", "model": "WH-1000XM4"}
	a := seedListing(model.RawListing{ID: "a1", SourceID: "tiki", ExternalID: "a1",
		Name: "Tai Nghe Sony WH-1000XM4 Đen Chính Hãng", BrandRaw: "Sony", CategoryRaw: category,
		Price: 3_990_000, Specs: specs})
	b := seedListing(model.RawListing{ID: "b1", SourceID: "shopee", ExternalID: "b1",
		Name: "Tai Nghe Sony WH-1000XM4 Đen Chính Hãng Mới 2024", BrandRaw: "Sony", CategoryRaw: category,
		Price: 4_590_000, Specs: specs})
	return a, b
}

// TestScenarioAdaptiveThreshold checks threshold adaptivity: the same pair of
// listings clusters under the audio category's 0.72 threshold but not
// under appliance's 0.82, proving the block threshold comes from the
// oracle rather than a single global constant.
func TestScenarioAdaptiveThreshold(t *testing.T) {
	ctx := context.Background()

	newRepoWithPair := func(category string) *memory.Repository {
		repo := memory.New()
		repo.SeedSources(
			model.Source{ID: "tiki", Name: "tiki", IsActive: true},
			model.Source{ID: "shopee", Name: "shopee", IsActive: true},
		)
		a, b := sonyHeadphonePair(category)
		repo.SeedRawListings(a, b)
		return repo
	}

	audioRepo := newRepoWithPair("tai nghe")
	audioRunner := New(audioRepo, nil, nil)
	audioJob, err := audioRunner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10, MinMatchScore: 0.70}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, audioJob.CanonicalCreated, "audio's 0.72 threshold should let this pair cluster")

	applianceRepo := newRepoWithPair("gia dung")
	applianceRunner := New(applianceRepo, nil, nil)
	applianceJob, err := applianceRunner.Deduplicate(ctx, Config{Mode: model.JobModeFresh, BatchSize: 10, MinMatchScore: 0.70}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, applianceJob.CanonicalCreated, "appliance's 0.82 threshold should keep the same pair apart")
}

// TestScenarioHistoryRollback checks that rolling back to an
// earlier version writes a new forward-only entry (never rewrites
// history) and restores the canonical's live fields.
func TestScenarioHistoryRollback(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	id, err := repo.UpsertCanonical(ctx, model.Canonical{Name: "iPhone 15", Description: "A"})
	require.NoError(t, err)

	log := history.New(repo)
	v1, err := log.TrackChange(ctx, id, model.HistoryEventCreated, map[string]model.FieldChange{
		"description": {Old: nil, New: "A"},
	}, model.TriggeredByAutoDedup, "job-runner")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)

	current, err := repo.GetCanonical(ctx, id)
	require.NoError(t, err)
	current.Description = "B"
	require.NoError(t, repo.UpdateCanonicalAggregates(ctx, current))
	v2, err := log.TrackChange(ctx, id, model.HistoryEventUpdated, map[string]model.FieldChange{
		"description": {Old: "A", New: "B"},
	}, model.TriggeredByManualReview, "reviewer1")
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	v3, err := log.RollbackToVersion(ctx, id, 1, "reviewer1")
	require.NoError(t, err)
	assert.Equal(t, 3, v3.Version, "rollback appends a new version, it never rewrites the old ones")
	require.Contains(t, v3.Changes, "_rollback_to")
	assert.Equal(t, 1, v3.Changes["_rollback_to"].New)

	restored, err := repo.GetCanonical(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "A", restored.Description)

	hist, err := log.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}
