// Package accesscontrol encrypts blobs so that they can only be opened by the
// identities named in an access predicate. The symmetric key of every blob is
// escrowed on a key custody network that enforces the predicate on release.
package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
)

// RetryPolicy bounds retries of transient custody failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsedTime:  15 * time.Second,
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// Module is the access-control crypto module.
type Module struct {
	network interfaces.CustodyNetwork
	retry   RetryPolicy
	log     *slog.Logger
}

// NewModule returns a module backed by the shared custody network.
func NewModule(network interfaces.CustodyNetwork, retry RetryPolicy, log *slog.Logger) *Module {
	return &Module{
		network: network,
		retry:   retry,
		log:     log,
	}
}

// waitReady blocks until the custody network is ready. Calls made before the
// network finished connecting are queued here rather than failed.
func (m *Module) waitReady(ctx context.Context) error {
	select {
	case <-m.network.Ready():
		return nil
	default:
	}

	m.log.Debug("waiting for key custody network")
	select {
	case <-m.network.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", interfaces.ErrCustodyUnavailable, ctx.Err())
	}
}

// retryTransient retries op while it fails with ErrCustodyUnavailable. Any other
// error, including ErrAccessDenied, is returned immediately.
func retryTransient[T any](ctx context.Context, m *Module, opName string, op func() (T, error)) (T, error) {
	return backoff.RetryNotifyWithData(func() (T, error) {
		res, err := op()
		if err != nil && !errors.Is(err, interfaces.ErrCustodyUnavailable) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, m.retry.backOff(ctx), func(err error, next time.Duration) {
		m.log.Warn("custody operation failed, retrying",
			slog.String("op", opName),
			slog.Duration("next", next),
			"err", err)
	})
}

// Encrypt seals blob under a fresh symmetric key and escrows the key behind
// predicate. proof identifies the caller to the custody network.
func (m *Module) Encrypt(ctx context.Context, blob []byte, predicate interfaces.Predicate, proof interfaces.AuthProof) (*interfaces.AccessControlEnvelope, error) {
	if err := predicate.Validate(); err != nil {
		return nil, err
	}

	key, err := cryptoutils.GenerateSymmetricKey()
	if err != nil {
		return nil, err
	}

	sealed, err := cryptoutils.SealWithKey(key, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to seal blob: %w", err)
	}

	if err := m.waitReady(ctx); err != nil {
		return nil, err
	}

	handle, err := retryTransient(ctx, m, "escrow", func() (interfaces.KeyHandle, error) {
		return m.network.EscrowKey(ctx, key, predicate, proof)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to escrow key: %w", err)
	}

	return &interfaces.AccessControlEnvelope{
		EncryptedData:           sealed,
		EncryptedSymmetricKey:   string(handle),
		AccessControlConditions: predicate.Descriptor(),
	}, nil
}

// Decrypt releases the envelope's key from the custody network and opens the
// data. It fails with ErrAccessDenied if the proven identity does not satisfy the
// envelope's predicate, ErrCustodyUnavailable once retries are exhausted, and
// ErrDecryption if the released key does not open the data.
func (m *Module) Decrypt(ctx context.Context, envelope *interfaces.AccessControlEnvelope, proof interfaces.AuthProof) ([]byte, error) {
	if envelope == nil {
		return nil, fmt.Errorf("%w: missing envelope", interfaces.ErrPayloadIntegrity)
	}

	predicate, err := interfaces.ParsePredicate(envelope.AccessControlConditions)
	if err != nil {
		return nil, err
	}

	if err := m.waitReady(ctx); err != nil {
		return nil, err
	}

	handle := interfaces.KeyHandle(envelope.EncryptedSymmetricKey)
	key, err := retryTransient(ctx, m, "release", func() ([]byte, error) {
		return m.network.ReleaseKey(ctx, handle, predicate, proof)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to release key: %w", err)
	}

	return cryptoutils.OpenWithKey(key, envelope.EncryptedData)
}
