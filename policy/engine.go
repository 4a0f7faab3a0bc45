package policy

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/djvang/pdftron-sign-app/accesscontrol"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/metrics"
)

// noneModePassword is the well-known key of ModeNone payloads.
const noneModePassword = ""

// EnvelopeCrypto seals and opens access-control envelopes.
// *accesscontrol.Module implements it.
type EnvelopeCrypto interface {
	Encrypt(ctx context.Context, blob []byte, predicate interfaces.Predicate, proof interfaces.AuthProof) (*interfaces.AccessControlEnvelope, error)
	Decrypt(ctx context.Context, envelope *interfaces.AccessControlEnvelope, proof interfaces.AuthProof) ([]byte, error)
}

// KeyMaterial is what the caller knows: the contract password for
// ModePassword, or an auth proof for ModeAccessControl.
type KeyMaterial struct {
	Password  string
	AuthProof *interfaces.AuthProof
}

// Opened is a decrypted payload.
type Opened struct {
	File    []byte
	Overlay string
}

// Engine seals and opens payloads according to the contract's encryption mode.
type Engine struct {
	envelopes EnvelopeCrypto
	metrics   *metrics.Signing
	log       *slog.Logger
}

// NewEngine creates a policy engine. envelopes may be nil when access-control
// contracts are not used; such payloads then fail with ErrUnsupportedMode.
func NewEngine(envelopes EnvelopeCrypto, m *metrics.Signing, log *slog.Logger) *Engine {
	return &Engine{
		envelopes: envelopes,
		metrics:   m,
		log:       log,
	}
}

// SealPayload encrypts the file and its overlay for mode. For
// ModeAccessControl the key release predicate is built from signers.
func (e *Engine) SealPayload(ctx context.Context, mode interfaces.EncryptionMode, file []byte, overlay string, keys KeyMaterial, signers []interfaces.Identity) (*interfaces.Payload, error) {
	payload := &interfaces.Payload{
		Mode: mode,
		Meta: interfaces.PayloadMeta{Version: interfaces.PayloadVersion},
	}

	switch mode {
	case interfaces.ModeNone, interfaces.ModePassword:
		password, err := symmetricPassword(mode, keys)
		if err != nil {
			return nil, err
		}

		if payload.File.CipherText, err = cryptoutils.EncryptWithPassword(file, password); err != nil {
			return nil, fmt.Errorf("failed to encrypt file: %w", err)
		}
		if payload.Overlay.CipherText, err = cryptoutils.EncryptStringWithPassword(overlay, password); err != nil {
			return nil, fmt.Errorf("failed to encrypt overlay: %w", err)
		}

	case interfaces.ModeAccessControl:
		proof, err := e.accessControlProof(keys)
		if err != nil {
			return nil, err
		}

		predicate, err := accesscontrol.PredicateForIdentities(signers)
		if err != nil {
			return nil, err
		}

		if payload.File.Envelope, err = e.envelopes.Encrypt(ctx, file, predicate, proof); err != nil {
			return nil, fmt.Errorf("failed to encrypt file: %w", err)
		}
		if payload.Overlay.Envelope, err = e.envelopes.Encrypt(ctx, []byte(overlay), predicate, proof); err != nil {
			return nil, fmt.Errorf("failed to encrypt overlay: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %d", interfaces.ErrUnsupportedMode, mode)
	}

	e.metrics.PayloadSealed(mode.String())
	e.log.Debug("payload sealed", slog.String("mode", mode.String()), slog.Int("fileSize", len(file)))
	return payload, nil
}

// OpenPayload decrypts a payload of a contract with the given mode. A payload
// sealed under a different mode fails with ErrPayloadIntegrity.
func (e *Engine) OpenPayload(ctx context.Context, mode interfaces.EncryptionMode, payload *interfaces.Payload, keys KeyMaterial) (opened *Opened, err error) {
	defer func() {
		if mode.Valid() {
			e.metrics.PayloadOpened(mode.String(), err)
		}
	}()

	if payload == nil {
		return nil, fmt.Errorf("%w: missing payload", interfaces.ErrPayloadIntegrity)
	}
	if err := checkShape(mode, payload); err != nil {
		return nil, err
	}

	switch mode {
	case interfaces.ModeNone, interfaces.ModePassword:
		password, err := symmetricPassword(mode, keys)
		if err != nil {
			return nil, err
		}

		file, err := cryptoutils.DecryptWithPassword(payload.File.CipherText, password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt file: %w", err)
		}
		overlay, err := cryptoutils.DecryptStringWithPassword(payload.Overlay.CipherText, password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt overlay: %w", err)
		}
		return &Opened{File: file, Overlay: overlay}, nil

	case interfaces.ModeAccessControl:
		proof, err := e.accessControlProof(keys)
		if err != nil {
			return nil, err
		}

		file, err := e.envelopes.Decrypt(ctx, payload.File.Envelope, proof)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt file: %w", err)
		}
		overlay, err := e.envelopes.Decrypt(ctx, payload.Overlay.Envelope, proof)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt overlay: %w", err)
		}
		if !utf8.Valid(overlay) {
			return nil, fmt.Errorf("failed to decrypt overlay: %w: plaintext is not valid UTF-8", interfaces.ErrDecryption)
		}
		return &Opened{File: file, Overlay: string(overlay)}, nil

	default:
		return nil, fmt.Errorf("%w: %d", interfaces.ErrUnsupportedMode, mode)
	}
}

// OpenStored decodes stored payload bytes and opens them.
func (e *Engine) OpenStored(ctx context.Context, mode interfaces.EncryptionMode, data []byte, keys KeyMaterial) (*Opened, error) {
	payload, err := DecodePayload(mode, data)
	if err != nil {
		return nil, err
	}
	return e.OpenPayload(ctx, mode, payload, keys)
}

func symmetricPassword(mode interfaces.EncryptionMode, keys KeyMaterial) (string, error) {
	if mode == interfaces.ModeNone {
		return noneModePassword, nil
	}
	if keys.Password == "" {
		return "", fmt.Errorf("%w: password required for %s contracts", interfaces.ErrMissingKeyMaterial, mode)
	}
	return keys.Password, nil
}

func (e *Engine) accessControlProof(keys KeyMaterial) (interfaces.AuthProof, error) {
	if e.envelopes == nil {
		return interfaces.AuthProof{}, fmt.Errorf("%w: access control is not configured", interfaces.ErrUnsupportedMode)
	}
	if keys.AuthProof == nil {
		return interfaces.AuthProof{}, fmt.Errorf("%w: auth proof required for %s contracts", interfaces.ErrMissingKeyMaterial, interfaces.ModeAccessControl)
	}
	return *keys.AuthProof, nil
}
