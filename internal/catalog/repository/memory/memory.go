// Package memory implements an in-memory CanonicalRepository fake used
// by the job package's end-to-end tests, standing in for a real
// Postgres store without requiring a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// Repository is a mutex-guarded, map-backed CanonicalRepository.
type Repository struct {
	mu sync.Mutex

	sources    []model.Source
	rawByID    map[string]model.RawListing
	canonicals map[string]model.Canonical
	mappings   map[string][]model.Mapping // canonicalID -> mappings
	variants   map[string][]model.Variant // canonicalID -> variants
	pairs      []model.MatchingPair
	history    map[string][]model.HistoryEntry // canonicalID -> entries
	reviews    map[string]model.ReviewItem
	jobs       map[string]model.Job
	brands     map[string]string // normalized name -> id
	categories map[string]string
}

// New builds an empty Repository; tests that need sources or listings
// load them afterwards through the Seed* methods.
func New() *Repository {
	return &Repository{
		rawByID:    make(map[string]model.RawListing),
		canonicals: make(map[string]model.Canonical),
		mappings:   make(map[string][]model.Mapping),
		variants:   make(map[string][]model.Variant),
		history:    make(map[string][]model.HistoryEntry),
		reviews:    make(map[string]model.ReviewItem),
		jobs:       make(map[string]model.Job),
		brands:     make(map[string]string),
		categories: make(map[string]string),
	}
}

// SeedRawListings loads listings directly into the store, bypassing the
// repository interface, for test setup.
func (r *Repository) SeedRawListings(listings ...model.RawListing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range listings {
		r.rawByID[l.ID] = l
	}
}

// SeedSources loads active sources for test setup.
func (r *Repository) SeedSources(sources ...model.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, sources...)
}

// SeedBrand/SeedCategory register a resolvable name -> id mapping.
func (r *Repository) SeedBrand(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brands[strings.ToLower(name)] = id
}

func (r *Repository) SeedCategory(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[strings.ToLower(name)] = id
}

func (r *Repository) ListActiveSources(ctx context.Context) ([]model.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Source
	for _, s := range r.sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Repository) CountRawListings(ctx context.Context, filter repository.RawListingFilter) (int, error) {
	listings, err := r.ListRawListings(ctx, repository.RawListingFilter{DedupStatus: filter.DedupStatus, SourceID: filter.SourceID})
	if err != nil {
		return 0, err
	}
	return len(listings), nil
}

func (r *Repository) ListRawListings(ctx context.Context, filter repository.RawListingFilter) ([]model.RawListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.RawListing
	for _, l := range r.rawByID {
		if filter.DedupStatus != "" && l.DedupStatus != filter.DedupStatus {
			continue
		}
		if filter.SourceID != "" && l.SourceID != filter.SourceID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if filter.Offset > 0 && filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else if filter.Offset >= len(out) {
		out = nil
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Repository) GetRawListing(ctx context.Context, id string) (model.RawListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rawByID[id]
	if !ok {
		return model.RawListing{}, repository.ErrNotFound
	}
	return l, nil
}

func (r *Repository) MarkRawListingsProcessed(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		l, ok := r.rawByID[id]
		if !ok {
			continue
		}
		l.DedupStatus = model.DedupStatusProcessed
		r.rawByID[id] = l
	}
	return nil
}

func (r *Repository) ResetRawListingsPending(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.rawByID {
		l.DedupStatus = model.DedupStatusPending
		r.rawByID[id] = l
	}
	return nil
}

func (r *Repository) ClearMatchingPairs(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = nil
	return nil
}

func (r *Repository) UpsertCanonical(ctx context.Context, c model.Canonical) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" && c.Slug != "" {
		for id, existing := range r.canonicals {
			if existing.Slug == c.Slug {
				c.ID = id
				break
			}
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.canonicals[c.ID] = c
	return c.ID, nil
}

func (r *Repository) UpdateCanonicalAggregates(ctx context.Context, c model.Canonical) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.canonicals[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name, existing.NameNormalized = c.Name, c.NameNormalized
	existing.BrandID, existing.CategoryID = c.BrandID, c.CategoryID
	existing.Description = c.Description
	existing.MinPrice, existing.MaxPrice = c.MinPrice, c.MaxPrice
	existing.AvgRating, existing.TotalReviews = c.AvgRating, c.TotalReviews
	existing.SourceCount, existing.QualityScore = c.SourceCount, c.QualityScore
	existing.NeedsReview = c.NeedsReview
	r.canonicals[c.ID] = existing
	return nil
}

func (r *Repository) GetCanonical(ctx context.Context, id string) (model.Canonical, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.canonicals[id]
	if !ok {
		return model.Canonical{}, repository.ErrNotFound
	}
	return c, nil
}

func (r *Repository) DeleteCanonicals(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.canonicals, id)
	}
	return nil
}

func (r *Repository) FindCanonicalBySlug(ctx context.Context, slug string) (model.Canonical, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.canonicals {
		if c.Slug == slug {
			return c, nil
		}
	}
	return model.Canonical{}, repository.ErrNotFound
}

func (r *Repository) SearchCanonicalsByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Canonical, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := strings.ToLower(prefix)
	var out []model.Canonical
	for _, c := range r.canonicals {
		if strings.Contains(strings.ToLower(c.NameNormalized), p) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) SearchRawListings(ctx context.Context, term, excludeSourceID string, limit int) ([]model.RawListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	segments := strings.Split(strings.ToLower(term), "%")
	var ids []string
	for id, l := range r.rawByID {
		if l.SourceID == excludeSourceID {
			continue
		}
		if matchSegments(strings.ToLower(l.NameNormalized), segments) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]model.RawListing, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.rawByID[id])
	}
	return out, nil
}

// matchSegments mirrors ILIKE '%seg1%seg2%...%': every segment must
// appear in order.
func matchSegments(s string, segments []string) bool {
	rest := s
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		i := strings.Index(rest, seg)
		if i < 0 {
			return false
		}
		rest = rest[i+len(seg):]
	}
	return true
}

func (r *Repository) IsRawListingMapped(ctx context.Context, rawID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.mappings {
		for _, m := range list {
			if m.RawID == rawID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *Repository) GetMappingsForCanonical(ctx context.Context, canonicalID string) ([]model.Mapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Mapping, len(r.mappings[canonicalID]))
	copy(out, r.mappings[canonicalID])
	return out, nil
}

func (r *Repository) UpsertMapping(ctx context.Context, m model.Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.mappings[m.CanonicalID]
	for i, existing := range list {
		if existing.RawID == m.RawID {
			list[i] = m
			r.mappings[m.CanonicalID] = list
			return nil
		}
	}
	r.mappings[m.CanonicalID] = append(list, m)
	return nil
}

func (r *Repository) DeleteMappings(ctx context.Context, canonicalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mappings, canonicalID)
	return nil
}

func (r *Repository) UpsertVariant(ctx context.Context, v model.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.variants[v.CanonicalID]
	for i, existing := range list {
		if existing.VariantKey == v.VariantKey {
			list[i] = v
			r.variants[v.CanonicalID] = list
			return nil
		}
	}
	r.variants[v.CanonicalID] = append(list, v)
	return nil
}

func (r *Repository) DeleteVariants(ctx context.Context, canonicalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.variants, canonicalID)
	return nil
}

// GetVariants is a test-only accessor (not part of CanonicalRepository):
// the interface never reads variants back, only the job package's
// end-to-end tests inspect them directly.
func (r *Repository) GetVariants(canonicalID string) []model.Variant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Variant, len(r.variants[canonicalID]))
	copy(out, r.variants[canonicalID])
	return out
}

func (r *Repository) InsertMatchingPair(ctx context.Context, p model.MatchingPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, p)
	return nil
}

func (r *Repository) InsertHistoryEntry(ctx context.Context, e model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[e.CanonicalID] = append(r.history[e.CanonicalID], e)
	return nil
}

func (r *Repository) GetHistory(ctx context.Context, canonicalID string) ([]model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.HistoryEntry, len(r.history[canonicalID]))
	copy(out, r.history[canonicalID])
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *Repository) GetHistoryVersion(ctx context.Context, canonicalID string, version int) (model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.history[canonicalID] {
		if e.Version == version {
			return e, nil
		}
	}
	return model.HistoryEntry{}, repository.ErrNotFound
}

func (r *Repository) GetRecentChanges(ctx context.Context, since int) ([]model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.HistoryEntry
	for _, entries := range r.history {
		for _, e := range entries {
			if int(e.CreatedAt.Unix()) >= since {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repository) InsertReviewItems(ctx context.Context, items []model.ReviewItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		r.reviews[it.ID] = it
	}
	return nil
}

func (r *Repository) GetPendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ReviewItem
	for _, it := range r.reviews {
		if it.Status == model.ReviewStatusPending {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repository) UpdateReviewStatus(ctx context.Context, id string, status model.ReviewStatus, reviewer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.reviews[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.Status = status
	it.Reviewer = reviewer
	r.reviews[id] = it
	return nil
}

func (r *Repository) ClearOldReviewed(ctx context.Context, olderThanDays int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	n := 0
	for id, it := range r.reviews {
		if it.Status != model.ReviewStatusPending && it.CreatedAt.Before(cutoff) {
			delete(r.reviews, id)
			n++
		}
	}
	return n, nil
}

func (r *Repository) CreateJob(ctx context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *Repository) FinalizeJob(ctx context.Context, j model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	return nil
}

func (r *Repository) ResolveBrandID(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := strings.ToLower(name)
	if id, ok := r.brands[n]; ok {
		return id, nil
	}
	for k, id := range r.brands {
		if strings.Contains(n, k) || strings.Contains(k, n) {
			return id, nil
		}
	}
	return "", repository.ErrNotFound
}

func (r *Repository) ResolveCategoryID(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := strings.ToLower(name)
	if id, ok := r.categories[n]; ok {
		return id, nil
	}
	for k, id := range r.categories {
		if strings.Contains(n, k) || strings.Contains(k, n) {
			return id, nil
		}
	}
	return "", repository.ErrNotFound
}
