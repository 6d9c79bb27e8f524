package job

import "errors"

// Sentinel errors the JobRunner wraps its failures in. Callers use
// errors.Is against these to decide whether a failure is worth retrying.
var (
	// ErrTransient marks a failure a retry is likely to clear (a dropped
	// connection, a timed-out query).
	ErrTransient = errors.New("job: transient error")

	// ErrSchemaMismatch marks a persisted row shaped differently than the
	// engine expects (a migration that hasn't run yet).
	ErrSchemaMismatch = errors.New("job: schema mismatch")

	// ErrParse marks a single listing the engine could not make sense of.
	// Always logged and skipped, never fatal to the batch.
	ErrParse = errors.New("job: parse error")

	// ErrServiceUnavailable marks a collaborator (embedding service,
	// stream producer) that did not respond.
	ErrServiceUnavailable = errors.New("job: service unavailable")

	// ErrConsistency marks an invariant violation discovered mid-run (a
	// mapping pointing at a raw listing that no longer exists).
	ErrConsistency = errors.New("job: consistency error")

	// ErrCancelled marks a run stopped because its context was cancelled.
	ErrCancelled = errors.New("job: cancelled")

	// ErrFatal marks a phase failure the run cannot recover from; the Job
	// row is marked failed and the error re-raised to the caller.
	ErrFatal = errors.New("job: fatal error")
)
