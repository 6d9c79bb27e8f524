// Package job implements the JobRunner orchestrator: the top-level
// deduplication run that drives every other catalog package end to
// end. A Runner owns no state across calls to Deduplicate; each run
// builds its own state accumulator.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vncatalog/dedup-engine/internal/catalog/history"
	"github.com/vncatalog/dedup-engine/internal/catalog/model"
	"github.com/vncatalog/dedup-engine/internal/catalog/repository"
	"github.com/vncatalog/dedup-engine/internal/catalog/review"
	"github.com/vncatalog/dedup-engine/internal/catalog/threshold"
	"github.com/vncatalog/dedup-engine/internal/catalog/vectorize"
	"github.com/vncatalog/dedup-engine/pkg/constants"
	"github.com/vncatalog/dedup-engine/pkg/events"
	"github.com/vncatalog/dedup-engine/pkg/interfaces"
)

// Runner wires the catalog packages into the six-phase run: init,
// cleanup, batch loop, cross-source linking, reconcile, finalize.
type Runner struct {
	repo       repository.CanonicalRepository
	vectorizer vectorize.Vectorizer
	oracle     *threshold.Oracle
	history    *history.Log
	reviews    *review.Queue
	producer   interfaces.StreamProducer
	logger     *slog.Logger
}

// New builds a Runner. vectorizer may be nil when Config.EmbeddingEnabled
// is always false for this deployment.
func New(repo repository.CanonicalRepository, vectorizer vectorize.Vectorizer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		repo:       repo,
		vectorizer: vectorizer,
		oracle:     threshold.New(),
		history:    history.New(repo),
		reviews:    review.New(repo),
		logger:     logger,
	}
}

// WithStreamProducer attaches an optional lifecycle-event publisher.
func (r *Runner) WithStreamProducer(p interfaces.StreamProducer) *Runner {
	r.producer = p
	return r
}

// Deduplicate runs one full dedup pass and returns the finalized Job row.
func (r *Runner) Deduplicate(ctx context.Context, cfg Config, onProgress ProgressFunc) (model.Job, error) {
	cfg = cfg.withDefaults()
	started := time.Now()

	st, sources, err := r.phaseInit(ctx, cfg)
	if err != nil {
		return model.Job{}, fmt.Errorf("%w: init: %v", ErrFatal, err)
	}
	r.publish(ctx, events.EventTypeJobStarted, st.job.ID, map[string]any{"mode": cfg.Mode, "total_raw": st.job.TotalRaw})
	onProgress.emit(st.progressEvent(model.JobPhaseInit, "job initialized", 0, 0))

	if cfg.Mode == model.JobModeFresh {
		if err := r.phaseCleanup(ctx); err != nil {
			return r.fail(ctx, st, fmt.Errorf("%w: cleanup: %v", ErrFatal, err))
		}
	}

	if err := r.phaseBatchLoop(ctx, cfg, st, onProgress); err != nil {
		return r.fail(ctx, st, err)
	}

	if cfg.CrossSourceEnabled {
		st.job.Phase = model.JobPhaseMatching
		r.publish(ctx, events.EventTypeJobPhaseChanged, st.job.ID, map[string]any{"phase": model.JobPhaseMatching})
		onProgress.emit(st.progressEvent(model.JobPhaseMatching, "cross-source linking", 0, 0))
		if err := r.phaseCrossSourceLink(ctx, cfg, st, sources); err != nil {
			return r.fail(ctx, st, fmt.Errorf("%w: cross-source linking: %v", ErrFatal, err))
		}
	}

	if err := r.phaseReconcile(ctx, st); err != nil {
		return r.fail(ctx, st, fmt.Errorf("%w: reconcile: %v", ErrFatal, err))
	}

	st.job.Status = model.JobStatusCompleted
	st.job.Phase = model.JobPhaseDone
	st.job.ElapsedMs = time.Since(started).Milliseconds()
	now := time.Now()
	st.job.FinishedAt = &now
	st.job.CrossSourceMatrix = st.matrix

	if err := r.repo.FinalizeJob(ctx, st.job); err != nil {
		return st.job, fmt.Errorf("%w: finalize: %v", ErrFatal, err)
	}
	r.publish(ctx, events.EventTypeJobCompleted, st.job.ID, map[string]any{
		"processed":         st.job.Processed,
		"canonical_created": st.job.CanonicalCreated,
		"mappings_created":  st.job.MappingsCreated,
		"elapsed_ms":        st.job.ElapsedMs,
	})
	onProgress.emit(st.progressEvent(model.JobPhaseDone, "job completed", 0, 0))
	return st.job, nil
}

// fail marks the job failed, persists it, publishes the failure event
// and returns err to the caller.
func (r *Runner) fail(ctx context.Context, st *state, cause error) (model.Job, error) {
	st.job.Status = model.JobStatusFailed
	st.job.Phase = model.JobPhaseError
	st.job.ErrorMessage = cause.Error()
	now := time.Now()
	st.job.FinishedAt = &now
	st.job.CrossSourceMatrix = st.matrix

	if err := r.repo.FinalizeJob(ctx, st.job); err != nil {
		r.logger.Error("job: failed to persist failed job", "job_id", st.job.ID, "persist_error", err, "cause", cause)
	}
	r.publish(ctx, events.EventTypeJobFailed, st.job.ID, map[string]any{"error": cause.Error()})
	return st.job, cause
}

// publish is a best-effort lifecycle event send: a stream outage never
// fails the run, since the producer is an observability side channel.
func (r *Runner) publish(ctx context.Context, eventType, jobID string, data any) {
	if r.producer == nil {
		return
	}
	e, err := events.New(eventType, "dedup-engine", jobID, data)
	if err != nil {
		r.logger.Warn("job: failed to build lifecycle event", "type", eventType, "error", err)
		return
	}
	if err := r.producer.PublishEvent(ctx, constants.StreamDedupJobs, e); err != nil {
		r.logger.Warn("job: failed to publish lifecycle event", "type", eventType, "error", err)
	}
}

func newJobID() string { return uuid.NewString() }
