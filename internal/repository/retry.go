package repository

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/verinex/internal/logging"
)

type retryPolicy struct {
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func defaultRetryPolicy(logger *zap.Logger) retryPolicy {
	return retryPolicy{
		logger:         logger,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// executeWithRetry runs fn, retrying transient failures with exponential
// backoff. Every failure comes back as *logging.OperationError.
func (p retryPolicy) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	attempts := p.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	opLogger := logging.WithOperation(p.logger, operation, requestID)
	backoff := p.initialBackoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= p.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == attempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}
