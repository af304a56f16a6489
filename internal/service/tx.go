package service

import (
	"context"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Clock returns the current instant. Services take one so tests can pin
// "today" for daily limits and invoice months.
type Clock func() time.Time

// UTCClock is the production clock. Timestamps are persisted in UTC.
func UTCClock() time.Time { return time.Now().UTC() }

// runTx executes fn inside a GORM transaction. Storage failures are
// classified so lock contention surfaces as ConcurrencyConflict.
func runTx(ctx context.Context, db *gorm.DB, what string, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	return apperror.FromDB(err, what)
}

// RetryPolicy bounds automatic retries of ConcurrencyConflict failures.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// WithRetry runs fn and retries it while it fails with a retryable error,
// up to p.MaxRetries extra attempts with linear backoff. Business-rule
// errors are returned at once.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var (
		res T
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = fn()
		if err == nil || !apperror.IsRetryable(err) || attempt >= p.MaxRetries {
			return res, err
		}
		retriesTotal.WithLabelValues(op).Inc()
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("concurrency conflict, retrying")

		wait := p.Backoff * time.Duration(attempt+1)
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(wait):
		}
	}
}
