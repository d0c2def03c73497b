package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/logger"
)

// retryAttempts is the total number of tries for transient store
// failures, including the first.
const retryAttempts = 3

// retryBaseDelay is the backoff before the first retry; it doubles on
// each subsequent one.
const retryBaseDelay = 100 * time.Millisecond

// withRetry runs op, retrying with exponential backoff while it fails
// with domain.ErrStoreUnavailable. Any other error, including
// permanent ones like domain.ErrInvalidPayload, returns immediately.
func withRetry(ctx context.Context, label string, op func() error) error {
	var err error
	delay := retryBaseDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		if attempt == retryAttempts {
			break
		}

		logger.Warn("%s: store unavailable (attempt %d/%d), retrying in %s",
			label, attempt, retryAttempts, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
