// Package repository defines the CanonicalRepository contract: the
// persistence boundary the engine drives without owning any transaction
// semantics of its own. Implementations live in subpackages
// (postgres, memory).
package repository

import (
	"context"
	"errors"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("repository: not found")

// RawListingFilter scopes a raw-listing page read.
type RawListingFilter struct {
	DedupStatus model.DedupStatus // "" = no filter
	SourceID    string            // "" = no filter
	Offset      int
	Limit       int
}

// CanonicalRepository is the persistence contract consumed by the
// engine. No method opens an implicit cross-method transaction; ordering
// and atomicity across calls are the caller's responsibility.
type CanonicalRepository interface {
	ListActiveSources(ctx context.Context) ([]model.Source, error)

	CountRawListings(ctx context.Context, filter RawListingFilter) (int, error)
	ListRawListings(ctx context.Context, filter RawListingFilter) ([]model.RawListing, error)
	GetRawListing(ctx context.Context, id string) (model.RawListing, error)
	MarkRawListingsProcessed(ctx context.Context, ids []string) error
	ResetRawListingsPending(ctx context.Context) error

	InsertMatchingPair(ctx context.Context, p model.MatchingPair) error
	ClearMatchingPairs(ctx context.Context) error

	UpsertCanonical(ctx context.Context, c model.Canonical) (string, error)
	UpdateCanonicalAggregates(ctx context.Context, c model.Canonical) error
	GetCanonical(ctx context.Context, id string) (model.Canonical, error)
	DeleteCanonicals(ctx context.Context, ids []string) error
	FindCanonicalBySlug(ctx context.Context, slug string) (model.Canonical, error)
	SearchCanonicalsByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Canonical, error)

	SearchRawListings(ctx context.Context, term, excludeSourceID string, limit int) ([]model.RawListing, error)
	IsRawListingMapped(ctx context.Context, rawID string) (bool, error)

	UpsertMapping(ctx context.Context, m model.Mapping) error
	DeleteMappings(ctx context.Context, canonicalID string) error
	GetMappingsForCanonical(ctx context.Context, canonicalID string) ([]model.Mapping, error)

	UpsertVariant(ctx context.Context, v model.Variant) error
	DeleteVariants(ctx context.Context, canonicalID string) error

	InsertHistoryEntry(ctx context.Context, e model.HistoryEntry) error
	GetHistory(ctx context.Context, canonicalID string) ([]model.HistoryEntry, error)
	GetHistoryVersion(ctx context.Context, canonicalID string, version int) (model.HistoryEntry, error)
	GetRecentChanges(ctx context.Context, since int) ([]model.HistoryEntry, error)

	InsertReviewItems(ctx context.Context, items []model.ReviewItem) error
	GetPendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error)
	UpdateReviewStatus(ctx context.Context, id string, status model.ReviewStatus, reviewer string) error
	ClearOldReviewed(ctx context.Context, olderThanDays int) (int, error)

	CreateJob(ctx context.Context, j model.Job) error
	UpdateJob(ctx context.Context, j model.Job) error
	FinalizeJob(ctx context.Context, j model.Job) error

	ResolveBrandID(ctx context.Context, name string) (string, error)
	ResolveCategoryID(ctx context.Context, name string) (string, error)
}
