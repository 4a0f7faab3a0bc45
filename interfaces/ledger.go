package interfaces

import "context"

// Ledger records contracts and the ordered, append-only steps of their signers.
type Ledger interface {
	// CreateContract validates and records a draft, returning the new contract id.
	CreateContract(ctx context.Context, draft ContractDraft) (string, error)

	// CreateStep appends a step for signer. Fails with ErrUnknownSigner if signer
	// is not declared on the contract and ErrContractNotFound for unknown ids.
	CreateStep(ctx context.Context, contractID string, signer Identity, payload ContentID) (string, error)

	// GetContract returns the contract with its steps in ledger order.
	GetContract(ctx context.Context, contractID string) (*Contract, error)

	// ListContracts returns contracts matching filter, newest first.
	ListContracts(ctx context.Context, filter ContractFilter) ([]*Contract, error)
}
