package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/djvang/pdftron-sign-app/interfaces"
)

// RetryingBackend retries transient failures of the wrapped backend with
// exponential backoff. Missing content and integrity failures are not retried.
type RetryingBackend struct {
	interfaces.StorageBackend

	newBackOff func() backoff.BackOff
	log        *slog.Logger
}

// NewRetryingBackend wraps backend. maxElapsed bounds the total time spent
// retrying a single call.
func NewRetryingBackend(backend interfaces.StorageBackend, maxElapsed time.Duration, log *slog.Logger) *RetryingBackend {
	return &RetryingBackend{
		StorageBackend: backend,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = maxElapsed
			return b
		},
		log: log,
	}
}

func isPermanentStorageError(err error) bool {
	return errors.Is(err, interfaces.ErrContentNotFound) || errors.Is(err, interfaces.ErrPayloadIntegrity)
}

func (r *RetryingBackend) notify(op string) backoff.Notify {
	return func(err error, next time.Duration) {
		r.log.Warn("storage operation failed, retrying",
			slog.String("backend", r.StorageBackend.Name()),
			slog.String("op", op),
			slog.Duration("next", next),
			"err", err)
	}
}

// Fetch retrieves data, retrying transient failures.
func (r *RetryingBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	return backoff.RetryNotifyWithData(func() ([]byte, error) {
		data, err := r.StorageBackend.Fetch(ctx, id)
		if err != nil && isPermanentStorageError(err) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}, backoff.WithContext(r.newBackOff(), ctx), r.notify("fetch"))
}

// Store saves data, retrying transient failures.
func (r *RetryingBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	return backoff.RetryNotifyWithData(func() (interfaces.ContentID, error) {
		return r.StorageBackend.Store(ctx, data)
	}, backoff.WithContext(r.newBackOff(), ctx), r.notify("store"))
}
