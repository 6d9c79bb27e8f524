package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
)

// Repository is the lib/pq-backed CanonicalRepository implementation.
type Repository struct {
	db *sql.DB
}

// New wraps an already-opened pool (see OpenPool) as a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListActiveSources(ctx context.Context) ([]model.Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, display_name, is_active, base_url FROM sources WHERE is_active = true ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active sources: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var s model.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.DisplayName, &s.IsActive, &s.BaseURL); err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) CountRawListings(ctx context.Context, filter repository.RawListingFilter) (int, error) {
	query := `SELECT count(*) FROM raw_listings WHERE 1=1`
	var args []any
	n := 1
	if filter.DedupStatus != "" {
		query += fmt.Sprintf(" AND dedup_status = $%d", n)
		args = append(args, filter.DedupStatus)
		n++
	}
	if filter.SourceID != "" {
		query += fmt.Sprintf(" AND source_id = $%d", n)
		args = append(args, filter.SourceID)
		n++
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count raw listings: %w", err)
	}
	return count, nil
}

func (r *Repository) ListRawListings(ctx context.Context, filter repository.RawListingFilter) ([]model.RawListing, error) {
	query := `SELECT id, source_id, external_id, external_url, name, name_normalized, brand_raw,
		category_raw, price, original_price, discount_percent, image_url, description,
		rating, review_count, sold_count, available, shop_id, dedup_status
		FROM raw_listings WHERE 1=1`
	var args []any
	n := 1
	if filter.DedupStatus != "" {
		query += fmt.Sprintf(" AND dedup_status = $%d", n)
		args = append(args, filter.DedupStatus)
		n++
	}
	if filter.SourceID != "" {
		query += fmt.Sprintf(" AND source_id = $%d", n)
		args = append(args, filter.SourceID)
		n++
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list raw listings: %w", err)
	}
	defer rows.Close()

	var out []model.RawListing
	for rows.Next() {
		var l model.RawListing
		if err := rows.Scan(&l.ID, &l.SourceID, &l.ExternalID, &l.ExternalURL, &l.Name, &l.NameNormalized,
			&l.BrandRaw, &l.CategoryRaw, &l.Price, &l.OriginalPrice, &l.DiscountPercent, &l.ImageURL,
			&l.Description, &l.Rating, &l.ReviewCount, &l.SoldCount, &l.Available, &l.ShopID, &l.DedupStatus); err != nil {
			return nil, fmt.Errorf("postgres: scan raw listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) GetRawListing(ctx context.Context, id string) (model.RawListing, error) {
	var l model.RawListing
	err := r.db.QueryRowContext(ctx, `SELECT id, source_id, external_id, external_url, name, name_normalized,
		brand_raw, category_raw, price, original_price, discount_percent, image_url, description,
		rating, review_count, sold_count, available, shop_id, dedup_status
		FROM raw_listings WHERE id = $1`, id).Scan(&l.ID, &l.SourceID, &l.ExternalID, &l.ExternalURL,
		&l.Name, &l.NameNormalized, &l.BrandRaw, &l.CategoryRaw, &l.Price, &l.OriginalPrice,
		&l.DiscountPercent, &l.ImageURL, &l.Description, &l.Rating, &l.ReviewCount, &l.SoldCount,
		&l.Available, &l.ShopID, &l.DedupStatus)
	if isNoRows(err) {
		return model.RawListing{}, repository.ErrNotFound
	}
	if err != nil {
		return model.RawListing{}, fmt.Errorf("postgres: get raw listing: %w", err)
	}
	return l, nil
}

func (r *Repository) MarkRawListingsProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := WithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `UPDATE raw_listings SET dedup_status = 'processed', last_dedup_at = now() WHERE id = ANY($1)`, idArray(ids))
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: mark raw listings processed: %w", err)
	}
	return nil
}

func (r *Repository) ResetRawListingsPending(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE raw_listings SET dedup_status = 'pending', last_dedup_at = NULL`)
	if err != nil {
		return fmt.Errorf("postgres: reset raw listings pending: %w", err)
	}
	return nil
}

func (r *Repository) ClearMatchingPairs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `TRUNCATE matching_pairs`)
	if err != nil {
		return fmt.Errorf("postgres: clear matching pairs: %w", err)
	}
	return nil
}

func (r *Repository) UpsertCanonical(ctx context.Context, c model.Canonical) (string, error) {
	c = c.Truncated()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO canonicals (id, name, name_normalized, slug, brand_id, category_id, description,
			image_url, images, canonical_specs, min_price, max_price, avg_rating, total_reviews,
			source_count, quality_score, quality_issues, needs_review, is_active, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19, now())
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, name_normalized = EXCLUDED.name_normalized,
			brand_id = EXCLUDED.brand_id, category_id = EXCLUDED.category_id,
			description = EXCLUDED.description, image_url = EXCLUDED.image_url,
			images = EXCLUDED.images, canonical_specs = EXCLUDED.canonical_specs,
			min_price = EXCLUDED.min_price, max_price = EXCLUDED.max_price,
			avg_rating = EXCLUDED.avg_rating, total_reviews = EXCLUDED.total_reviews,
			source_count = EXCLUDED.source_count, quality_score = EXCLUDED.quality_score,
			quality_issues = EXCLUDED.quality_issues, needs_review = EXCLUDED.needs_review,
			is_active = EXCLUDED.is_active, updated_at = now()
		RETURNING id`,
		c.ID, c.Name, c.NameNormalized, c.Slug, c.BrandID, c.CategoryID, c.Description, c.ImageURL,
		idArray(c.Images), specsJSON(c.CanonicalSpecs), c.MinPrice, c.MaxPrice, c.AvgRating,
		c.TotalReviews, c.SourceCount, c.QualityScore, idArray(c.QualityIssues),
		c.NeedsReview, c.IsActive).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres: upsert canonical: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateCanonicalAggregates(ctx context.Context, c model.Canonical) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE canonicals SET name=$2, name_normalized=$3, brand_id=$4, category_id=$5,
			description=$6, min_price=$7, max_price=$8, avg_rating=$9, total_reviews=$10,
			source_count=$11, quality_score=$12, needs_review=$13, updated_at=now()
		WHERE id=$1`,
		c.ID, c.Name, c.NameNormalized, c.BrandID, c.CategoryID, c.Description,
		c.MinPrice, c.MaxPrice, c.AvgRating, c.TotalReviews, c.SourceCount, c.QualityScore, c.NeedsReview)
	if err != nil {
		return fmt.Errorf("postgres: update canonical aggregates: %w", err)
	}
	return nil
}

func (r *Repository) GetCanonical(ctx context.Context, id string) (model.Canonical, error) {
	var c model.Canonical
	var rawSpecs []byte
	err := r.db.QueryRowContext(ctx, `SELECT id, name, name_normalized, slug, brand_id, category_id,
		description, image_url, images, canonical_specs, min_price, max_price, avg_rating,
		total_reviews, source_count, quality_score, quality_issues, needs_review, is_active,
		created_at, updated_at
		FROM canonicals WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Slug, &c.BrandID,
		&c.CategoryID, &c.Description, &c.ImageURL, pq.Array(&c.Images), &rawSpecs, &c.MinPrice,
		&c.MaxPrice, &c.AvgRating, &c.TotalReviews, &c.SourceCount, &c.QualityScore,
		pq.Array(&c.QualityIssues), &c.NeedsReview, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return model.Canonical{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Canonical{}, fmt.Errorf("postgres: get canonical: %w", err)
	}
	c.CanonicalSpecs = decodeSpecs(rawSpecs)
	return c, nil
}

func (r *Repository) DeleteCanonicals(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM canonicals WHERE id = ANY($1)`, idArray(ids))
	if err != nil {
		return fmt.Errorf("postgres: delete canonicals: %w", err)
	}
	return nil
}

func (r *Repository) FindCanonicalBySlug(ctx context.Context, slug string) (model.Canonical, error) {
	var c model.Canonical
	var rawSpecs []byte
	err := r.db.QueryRowContext(ctx, `SELECT id, name, name_normalized, slug, brand_id, category_id,
		description, image_url, images, canonical_specs, min_price, max_price, avg_rating,
		total_reviews, source_count, quality_score, quality_issues, needs_review, is_active,
		created_at, updated_at
		FROM canonicals WHERE slug = $1`, slug).Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Slug, &c.BrandID,
		&c.CategoryID, &c.Description, &c.ImageURL, pq.Array(&c.Images), &rawSpecs, &c.MinPrice,
		&c.MaxPrice, &c.AvgRating, &c.TotalReviews, &c.SourceCount, &c.QualityScore,
		pq.Array(&c.QualityIssues), &c.NeedsReview, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return model.Canonical{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Canonical{}, fmt.Errorf("postgres: find canonical by slug: %w", err)
	}
	c.CanonicalSpecs = decodeSpecs(rawSpecs)
	return c, nil
}

func (r *Repository) SearchCanonicalsByNamePrefix(ctx context.Context, prefix string, limit int) ([]model.Canonical, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, name_normalized, slug, brand_id, category_id,
		description, image_url, images, canonical_specs, min_price, max_price, avg_rating,
		total_reviews, source_count, quality_score, quality_issues, needs_review, is_active,
		created_at, updated_at
		FROM canonicals WHERE name_normalized ILIKE '%' || $1 || '%' ORDER BY id LIMIT $2`, prefix, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: search canonicals by name prefix: %w", err)
	}
	defer rows.Close()

	var out []model.Canonical
	for rows.Next() {
		var c model.Canonical
		var rawSpecs []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Slug, &c.BrandID, &c.CategoryID,
			&c.Description, &c.ImageURL, pq.Array(&c.Images), &rawSpecs, &c.MinPrice, &c.MaxPrice,
			&c.AvgRating, &c.TotalReviews, &c.SourceCount, &c.QualityScore, pq.Array(&c.QualityIssues),
			&c.NeedsReview, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan canonical: %w", err)
		}
		c.CanonicalSpecs = decodeSpecs(rawSpecs)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) SearchRawListings(ctx context.Context, term, excludeSourceID string, limit int) ([]model.RawListing, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, source_id, external_id, external_url, name, name_normalized,
		brand_raw, category_raw, price, original_price, discount_percent, image_url, description,
		rating, review_count, sold_count, available, shop_id, dedup_status
		FROM raw_listings WHERE name_normalized ILIKE '%' || $1 || '%' AND source_id != $2
		ORDER BY id LIMIT $3`, term, excludeSourceID, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: search raw listings: %w", err)
	}
	defer rows.Close()

	var out []model.RawListing
	for rows.Next() {
		var l model.RawListing
		if err := rows.Scan(&l.ID, &l.SourceID, &l.ExternalID, &l.ExternalURL, &l.Name, &l.NameNormalized,
			&l.BrandRaw, &l.CategoryRaw, &l.Price, &l.OriginalPrice, &l.DiscountPercent, &l.ImageURL,
			&l.Description, &l.Rating, &l.ReviewCount, &l.SoldCount, &l.Available, &l.ShopID, &l.DedupStatus); err != nil {
			return nil, fmt.Errorf("postgres: scan raw listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) IsRawListingMapped(ctx context.Context, rawID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM mappings WHERE raw_id = $1)`, rawID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: is raw listing mapped: %w", err)
	}
	return exists, nil
}

func (r *Repository) GetMappingsForCanonical(ctx context.Context, canonicalID string) ([]model.Mapping, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT canonical_id, raw_id, confidence_score, matching_method
		FROM mappings WHERE canonical_id = $1`, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get mappings for canonical: %w", err)
	}
	defer rows.Close()

	var out []model.Mapping
	for rows.Next() {
		var m model.Mapping
		if err := rows.Scan(&m.CanonicalID, &m.RawID, &m.ConfidenceScore, &m.MatchingMethod); err != nil {
			return nil, fmt.Errorf("postgres: scan mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertMapping(ctx context.Context, m model.Mapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mappings (canonical_id, raw_id, confidence_score, matching_method)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (canonical_id, raw_id) DO UPDATE SET
			confidence_score = EXCLUDED.confidence_score, matching_method = EXCLUDED.matching_method`,
		m.CanonicalID, m.RawID, m.ConfidenceScore, m.MatchingMethod)
	if err != nil {
		return fmt.Errorf("postgres: upsert mapping: %w", err)
	}
	return nil
}

func (r *Repository) DeleteMappings(ctx context.Context, canonicalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mappings WHERE canonical_id = $1`, canonicalID)
	if err != nil {
		return fmt.Errorf("postgres: delete mappings: %w", err)
	}
	return nil
}

func (r *Repository) UpsertVariant(ctx context.Context, v model.Variant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO variants (canonical_id, variant_key, storage, ram, color, min_price, max_price, raw_ids)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (canonical_id, variant_key) DO UPDATE SET
			storage = EXCLUDED.storage, ram = EXCLUDED.ram, color = EXCLUDED.color,
			min_price = EXCLUDED.min_price, max_price = EXCLUDED.max_price, raw_ids = EXCLUDED.raw_ids`,
		v.CanonicalID, v.VariantKey, v.Storage, v.RAM, v.Color, v.MinPrice, v.MaxPrice, idArray(v.RawIDs))
	if err != nil {
		return fmt.Errorf("postgres: upsert variant: %w", err)
	}
	return nil
}

func (r *Repository) DeleteVariants(ctx context.Context, canonicalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM variants WHERE canonical_id = $1`, canonicalID)
	if err != nil {
		return fmt.Errorf("postgres: delete variants: %w", err)
	}
	return nil
}

func (r *Repository) InsertMatchingPair(ctx context.Context, p model.MatchingPair) error {
	err := WithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO matching_pairs (job_id, raw1, raw2, source1, source2, match_score, match_method, canonical_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (job_id, raw1, raw2) DO NOTHING`,
			p.JobID, p.Raw1, p.Raw2, p.Source1, p.Source2, p.MatchScore, p.MatchMethod, p.CanonicalID)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: insert matching pair: %w", err)
	}
	return nil
}

func (r *Repository) InsertHistoryEntry(ctx context.Context, e model.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history_entries (id, canonical_id, version, event, changes, diff, triggered_by, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.CanonicalID, e.Version, e.Event, changesJSON(e.Changes), e.Diff, e.TriggeredBy, e.CreatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert history entry: %w", err)
	}
	return nil
}

func (r *Repository) GetHistory(ctx context.Context, canonicalID string) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, canonical_id, version, event, changes, diff,
		triggered_by, created_by, created_at FROM history_entries WHERE canonical_id = $1 ORDER BY version`, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get history: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func (r *Repository) GetHistoryVersion(ctx context.Context, canonicalID string, version int) (model.HistoryEntry, error) {
	var e model.HistoryEntry
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT id, canonical_id, version, event, changes, diff,
		triggered_by, created_by, created_at FROM history_entries WHERE canonical_id = $1 AND version = $2`,
		canonicalID, version).Scan(&e.ID, &e.CanonicalID, &e.Version, &e.Event, &raw, &e.Diff, &e.TriggeredBy, &e.CreatedBy, &e.CreatedAt)
	if isNoRows(err) {
		return model.HistoryEntry{}, repository.ErrNotFound
	}
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("postgres: get history version: %w", err)
	}
	e.Changes = decodeChanges(raw)
	return e, nil
}

func (r *Repository) GetRecentChanges(ctx context.Context, since int) ([]model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, canonical_id, version, event, changes, diff,
		triggered_by, created_by, created_at FROM history_entries WHERE extract(epoch from created_at) >= $1
		ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: get recent changes: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

func (r *Repository) InsertReviewItems(ctx context.Context, items []model.ReviewItem) error {
	if len(items) == 0 {
		return nil
	}
	return InTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO review_items (id, type, payload, reason, priority, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`)
		if err != nil {
			return fmt.Errorf("postgres: prepare insert review items: %w", err)
		}
		defer stmt.Close()

		for _, it := range items {
			if _, err := stmt.ExecContext(ctx, it.ID, it.Type, payloadJSON(it.Payload), it.Reason, it.Priority, it.Status, it.CreatedAt); err != nil {
				return fmt.Errorf("postgres: insert review item: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) GetPendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, type, payload, reason, priority, status, reviewer,
		reviewed_at, created_at FROM review_items WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC LIMIT $1`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: get pending reviews: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewItem
	for rows.Next() {
		var it model.ReviewItem
		var raw []byte
		if err := rows.Scan(&it.ID, &it.Type, &raw, &it.Reason, &it.Priority, &it.Status, &it.Reviewer, &it.ReviewedAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan review item: %w", err)
		}
		it.Payload = decodePayload(raw)
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateReviewStatus(ctx context.Context, id string, status model.ReviewStatus, reviewer string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE review_items SET status=$2, reviewer=$3, reviewed_at=now() WHERE id=$1`, id, status, reviewer)
	if err != nil {
		return fmt.Errorf("postgres: update review status: %w", err)
	}
	return nil
}

func (r *Repository) ClearOldReviewed(ctx context.Context, olderThanDays int) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM review_items WHERE status != 'pending' AND reviewed_at < now() - ($1 || ' days')::interval`, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear old reviewed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *Repository) CreateJob(ctx context.Context, j model.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, mode, status, phase, total_raw, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, j.ID, j.Mode, j.Status, j.Phase, j.TotalRaw, j.StartedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, j model.Job) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status=$2, phase=$3, processed=$4, canonical_created=$5, mappings_created=$6,
			error_message=$7, source_breakdown=$8, updated_at=now() WHERE id=$1`,
		j.ID, j.Status, j.Phase, j.Processed, j.CanonicalCreated, j.MappingsCreated, j.ErrorMessage,
		jobMapJSON(j.SourceBreakdown))
	if err != nil {
		return fmt.Errorf("postgres: update job: %w", err)
	}
	return nil
}

func (r *Repository) FinalizeJob(ctx context.Context, j model.Job) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status=$2, phase=$3, processed=$4, canonical_created=$5, mappings_created=$6,
			error_message=$7, source_breakdown=$8, cross_source_matrix=$9, elapsed_ms=$10,
			finished_at=now(), updated_at=now() WHERE id=$1`,
		j.ID, j.Status, j.Phase, j.Processed, j.CanonicalCreated, j.MappingsCreated, j.ErrorMessage,
		jobMapJSON(j.SourceBreakdown), jobMatrixJSON(j.CrossSourceMatrix), j.ElapsedMs)
	if err != nil {
		return fmt.Errorf("postgres: finalize job: %w", err)
	}
	return nil
}

func (r *Repository) ResolveBrandID(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM brands WHERE lower(name) = lower($1)
		UNION ALL
		SELECT id FROM brands WHERE lower(name) LIKE '%' || lower($1) || '%' LIMIT 1`, name).Scan(&id)
	if isNoRows(err) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: resolve brand id: %w", err)
	}
	return id, nil
}

func (r *Repository) ResolveCategoryID(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM categories WHERE lower(name) = lower($1)
		UNION ALL
		SELECT id FROM categories WHERE lower(name) LIKE '%' || lower($1) || '%' LIMIT 1`, name).Scan(&id)
	if isNoRows(err) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres: resolve category id: %w", err)
	}
	return id, nil
}

func scanHistoryRows(rows *sql.Rows) ([]model.HistoryEntry, error) {
	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.CanonicalID, &e.Version, &e.Event, &raw, &e.Diff, &e.TriggeredBy, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan history entry: %w", err)
		}
		e.Changes = decodeChanges(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// limitOrAll maps a non-positive limit to NULL so the LIMIT clause means
// "no limit" rather than "zero rows".
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
