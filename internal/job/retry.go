package job

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// withTransientRetry retries fn with bounded exponential backoff before
// the caller gives up and wraps the final error as ErrTransient.
// Mirrors the postgres repository's own WithRetry helper
// (internal/catalog/repository/postgres/conn.go) so a dropped
// connection or timed-out query in the batch loop gets a few automatic
// retries rather than failing the whole run on the first hiccup.
func withTransientRetry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(fn, policy)
}
