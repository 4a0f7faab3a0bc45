package custody

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/ethereum/go-ethereum/common"
)

type heldShare struct {
	share         []byte
	predicateHash common.Hash
	depositor     common.Address
	escrowedAt    time.Time
}

// LocalNode is a custody node keeping shares in memory.
type LocalNode struct {
	name        string
	proofMaxAge time.Duration

	mu     sync.RWMutex
	shares map[string]heldShare
}

// NewLocalNode creates an empty node. Auth proofs older than proofMaxAge are
// rejected; zero accepts proofs of any age.
func NewLocalNode(name string, proofMaxAge time.Duration) *LocalNode {
	return &LocalNode{
		name:        name,
		proofMaxAge: proofMaxAge,
		shares:      make(map[string]heldShare),
	}
}

func (n *LocalNode) Name() string {
	return n.name
}

func (n *LocalNode) Ping(ctx context.Context) error {
	return ctx.Err()
}

// EscrowShare stores a share bound to the request's predicate. Any valid auth
// proof may escrow. Re-escrowing an identical share is accepted.
func (n *LocalNode) EscrowShare(ctx context.Context, req interfaces.ShareEscrowRequest) error {
	depositor, err := cryptoutils.VerifyAuthProof(req.Proof, n.proofMaxAge)
	if err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrAccessDenied, err)
	}

	predicate, err := interfaces.ParsePredicate(req.Predicate)
	if err != nil {
		return err
	}
	if req.HandleID == "" || len(req.Share) == 0 {
		return fmt.Errorf("%w: empty handle or share", interfaces.ErrInvalidPredicate)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, ok := n.shares[req.HandleID]; ok {
		if existing.predicateHash == predicate.Hash() && bytes.Equal(existing.share, req.Share) {
			return nil
		}
		return fmt.Errorf("%w: handle %s already escrowed", interfaces.ErrAccessDenied, req.HandleID)
	}

	n.shares[req.HandleID] = heldShare{
		share:         append([]byte(nil), req.Share...),
		predicateHash: predicate.Hash(),
		depositor:     depositor,
		escrowedAt:    time.Now(),
	}
	return nil
}

// ReleaseShare returns the share if the proof recovers to an address satisfying
// the predicate the share was escrowed under. Unknown handles and predicate
// mismatches are reported as ErrAccessDenied.
func (n *LocalNode) ReleaseShare(ctx context.Context, req interfaces.ShareReleaseRequest) ([]byte, error) {
	caller, err := cryptoutils.VerifyAuthProof(req.Proof, n.proofMaxAge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrAccessDenied, err)
	}

	predicate, err := interfaces.ParsePredicate(req.Predicate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrAccessDenied, err)
	}

	n.mu.RLock()
	held, ok := n.shares[req.HandleID]
	n.mu.RUnlock()

	if !ok || held.predicateHash != predicate.Hash() {
		return nil, fmt.Errorf("%w: no share for handle under this predicate", interfaces.ErrAccessDenied)
	}
	if !predicate.Satisfied(caller) {
		return nil, fmt.Errorf("%w: %s does not satisfy the predicate", interfaces.ErrAccessDenied, caller.Hex())
	}

	return append([]byte(nil), held.share...), nil
}

// Len returns the number of shares held.
func (n *LocalNode) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.shares)
}
