package accounting

import (
	"context"
	"errors"
	"time"

	"github.com/simonvc/contaledger/internal/store"
)

const (
	maxAttempts  = 3
	retryBackoff = 10 * time.Millisecond
)

// withRetry runs fn again when a concurrent writer took the entry number
// or subsidiary code it was about to use, up to maxAttempts in total.
// Every other error, busy errors included, returns immediately.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, store.ErrKeyConflict) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		s.metrics.ConflictRetries.WithLabelValues(s.tenant, op).Inc()
		s.log.Debug("retrying after conflict", "operation", op, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}
