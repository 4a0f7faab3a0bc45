package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/metrics"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
)

const defaultFetchConcurrency = 8

// Engine builds sessions over shared ledger, content store and policy engine.
type Engine struct {
	ledger  interfaces.Ledger
	store   interfaces.StorageBackend
	policy  *policy.Engine
	metrics *metrics.Signing
	log     *slog.Logger

	// FetchConcurrency bounds concurrent step fetches per session.
	FetchConcurrency int
}

func NewEngine(ledger interfaces.Ledger, store interfaces.StorageBackend, policyEngine *policy.Engine, m *metrics.Signing, log *slog.Logger) *Engine {
	return &Engine{
		ledger:           ledger,
		store:            store,
		policy:           policyEngine,
		metrics:          m,
		log:              log,
		FetchConcurrency: defaultFetchConcurrency,
	}
}

// CreateRequest describes a new contract.
type CreateRequest struct {
	Name      string
	Mode      interfaces.EncryptionMode
	Initiator interfaces.Identity
	Signers   []interfaces.Identity
	// File is the base document.
	File []byte
	// Overlay is an optional XFDF overlay to start from.
	Overlay string
	// Fields are declared empty on the root overlay.
	Fields []overlay.FieldTag
	// Keys seal the root payload: the password, or the initiator's auth proof.
	Keys policy.KeyMaterial
}

// CreateContract seals and stores the root payload, then records the contract
// on the ledger. It returns the contract id.
func (e *Engine) CreateContract(ctx context.Context, req CreateRequest) (string, error) {
	draft := interfaces.ContractDraft{
		Name:           req.Name,
		EncryptionMode: req.Mode,
		Initiator:      req.Initiator,
		// Replaced by the stored payload's id below.
		ContractHash: interfaces.ComputeContentID(req.File),
	}
	for _, s := range req.Signers {
		draft.Signers = append(draft.Signers, interfaces.Signer{Address: s})
	}
	if err := draft.Validate(); err != nil {
		return "", fmt.Errorf("invalid contract: %w", err)
	}

	root, err := overlay.Parse(req.Overlay)
	if err != nil {
		return "", err
	}
	for _, tag := range req.Fields {
		if !slices.Contains(req.Signers, tag.Signer) {
			return "", fmt.Errorf("field %s: %w", tag.Name(), interfaces.ErrUnknownSigner)
		}
		if _, exists := root.Field(tag.Name()); exists {
			return "", fmt.Errorf("field %s is declared twice", tag.Name())
		}
		root.Fields = append(root.Fields, overlay.Field{Name: tag.Name()})
	}
	rootOverlay, err := root.String()
	if err != nil {
		return "", err
	}

	payload, err := e.policy.SealPayload(ctx, req.Mode, req.File, rootOverlay, req.Keys, audience(req.Initiator, req.Signers))
	if err != nil {
		return "", fmt.Errorf("failed to seal root payload: %w", err)
	}

	data, err := policy.EncodePayload(payload)
	if err != nil {
		return "", err
	}

	hash, err := e.store.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to store root payload: %w", err)
	}
	draft.ContractHash = hash

	id, err := e.ledger.CreateContract(ctx, draft)
	if err != nil {
		return "", ledgerError("create contract", err)
	}

	e.log.Info("contract created",
		slog.String("contractID", id),
		slog.String("mode", req.Mode.String()),
		slog.String("root", hash.String()),
		slog.Int("signers", len(req.Signers)))
	return id, nil
}

// Inbox lists the contracts of participant grouped by signing progress.
func (e *Engine) Inbox(ctx context.Context, participant interfaces.Identity) (*Inbox, error) {
	contracts, err := e.ledger.ListContracts(ctx, interfaces.ContractFilter{Participant: &participant})
	if err != nil {
		return nil, ledgerError("list contracts", err)
	}

	inbox := &Inbox{}
	for _, c := range contracts {
		switch {
		case c.FullySigned():
			inbox.Completed = append(inbox.Completed, c)
		case c.HasSigner(participant) && !c.SignedBy(participant):
			inbox.ToSign = append(inbox.ToSign, c)
		default:
			inbox.Waiting = append(inbox.Waiting, c)
		}
	}
	return inbox, nil
}

// NewSession prepares a session without loading it.
func (e *Engine) NewSession(contractID string, viewer Viewer) *Session {
	return &Session{
		engine:     e,
		contractID: contractID,
		viewer:     viewer,
		state:      StateLoading,
		pending:    make(map[string]string),
		log: e.log.With(
			slog.String("contractID", contractID),
			slog.String("viewer", interfaces.IdentityTag(viewer.Identity)),
			slog.String("view", viewer.Mode.String())),
	}
}

// Open creates a session and loads it.
func (e *Engine) Open(ctx context.Context, contractID string, viewer Viewer) (*Session, error) {
	s := e.NewSession(contractID, viewer)
	if err := s.Load(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// audience is who may open a contract's access-controlled payloads: the
// signers and the initiator.
func audience(initiator interfaces.Identity, signers []interfaces.Identity) []interfaces.Identity {
	out := slices.Clone(signers)
	if !slices.Contains(out, initiator) {
		out = append(out, initiator)
	}
	return out
}

// ledgerError maps ledger failures to ErrLedgerUnavailable, keeping the
// sentinels callers act on.
func ledgerError(op string, err error) error {
	switch {
	case errors.Is(err, interfaces.ErrContractNotFound),
		errors.Is(err, interfaces.ErrUnknownSigner),
		errors.Is(err, interfaces.ErrAccessDenied),
		errors.Is(err, interfaces.ErrLedgerUnavailable):
		return fmt.Errorf("failed to %s: %w", op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w: %w", op, interfaces.ErrLedgerUnavailable, err)
	default:
		return fmt.Errorf("failed to %s: %w: %v", op, interfaces.ErrLedgerUnavailable, err)
	}
}

func now() time.Time {
	return time.Now().UTC()
}
