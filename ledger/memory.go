package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/google/uuid"
)

var errPayloadRequired = fmt.Errorf("%w: step payload is required", interfaces.ErrInvalidContract)

// MemoryLedger is an in-memory interfaces.Ledger.
type MemoryLedger struct {
	mu        sync.RWMutex
	contracts map[string]*interfaces.Contract
	// order holds contract ids in creation order.
	order []string
	now   func() time.Time
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		contracts: make(map[string]*interfaces.Contract),
		now:       time.Now,
	}
}

// CreateContract validates the draft and records it under a fresh id.
func (l *MemoryLedger) CreateContract(_ context.Context, draft interfaces.ContractDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", fmt.Errorf("invalid contract draft: %w", err)
	}

	contract := &interfaces.Contract{
		ID:             uuid.NewString(),
		Name:           draft.Name,
		EncryptionMode: draft.EncryptionMode,
		ContractHash:   draft.ContractHash,
		Initiator:      draft.Initiator,
		Signers:        slices.Clone(draft.Signers),
		CreatedAt:      l.now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.contracts[contract.ID] = contract
	l.order = append(l.order, contract.ID)
	return contract.ID, nil
}

// CreateStep appends a step by signer to the contract.
func (l *MemoryLedger) CreateStep(_ context.Context, contractID string, signer interfaces.Identity, payload interfaces.ContentID) (string, error) {
	if !payload.Defined() {
		return "", errPayloadRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	contract, ok := l.contracts[contractID]
	if !ok {
		return "", fmt.Errorf("%w: %s", interfaces.ErrContractNotFound, contractID)
	}
	if !contract.HasSigner(signer) {
		return "", fmt.Errorf("%w: %s", interfaces.ErrUnknownSigner, signer.Hex())
	}

	step := interfaces.Step{
		ID:           uuid.NewString(),
		ContractID:   contractID,
		Index:        len(contract.Steps),
		Signer:       signer,
		ContractHash: payload,
		CreatedAt:    l.now().UTC(),
	}
	contract.Steps = append(contract.Steps, step)
	return step.ID, nil
}

// GetContract returns a copy of the contract with its steps in ledger order.
func (l *MemoryLedger) GetContract(_ context.Context, contractID string) (*interfaces.Contract, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	contract, ok := l.contracts[contractID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContractNotFound, contractID)
	}
	return cloneContract(contract), nil
}

// ListContracts returns copies of the matching contracts, newest first.
func (l *MemoryLedger) ListContracts(_ context.Context, filter interfaces.ContractFilter) ([]*interfaces.Contract, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := []*interfaces.Contract{}
	for i := len(l.order) - 1; i >= 0; i-- {
		contract := l.contracts[l.order[i]]
		if filter.Matches(contract) {
			result = append(result, cloneContract(contract))
		}
	}
	return result, nil
}

func cloneContract(c *interfaces.Contract) *interfaces.Contract {
	clone := *c
	clone.Signers = slices.Clone(c.Signers)
	clone.Steps = slices.Clone(c.Steps)
	return &clone
}
