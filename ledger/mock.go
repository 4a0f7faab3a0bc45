package ledger

import (
	"context"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a testify mock of interfaces.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateContract(ctx context.Context, draft interfaces.ContractDraft) (string, error) {
	args := m.Called(ctx, draft)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) CreateStep(ctx context.Context, contractID string, signer interfaces.Identity, payload interfaces.ContentID) (string, error) {
	args := m.Called(ctx, contractID, signer, payload)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) GetContract(ctx context.Context, contractID string) (*interfaces.Contract, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.Contract), args.Error(1)
}

func (m *MockLedger) ListContracts(ctx context.Context, filter interfaces.ContractFilter) ([]*interfaces.Contract, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*interfaces.Contract), args.Error(1)
}
