package custody

import (
	"context"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalNodeEscrowRelease(t *testing.T) {
	node := NewLocalNode("local", time.Hour)
	alice, bob := newIdentity(t), newIdentity(t)
	descriptor := predicateFor(alice.addr).Descriptor()

	escrow := interfaces.ShareEscrowRequest{
		HandleID:  "h1",
		Share:     []byte{1, 2, 3},
		Predicate: descriptor,
		Proof:     bob.proof,
	}
	require.NoError(t, node.EscrowShare(context.Background(), escrow))
	require.NoError(t, node.EscrowShare(context.Background(), escrow), "identical re-escrow is accepted")

	conflicting := escrow
	conflicting.Share = []byte{9}
	assert.ErrorIs(t, node.EscrowShare(context.Background(), conflicting), interfaces.ErrAccessDenied)

	share, err := node.ReleaseShare(context.Background(), interfaces.ShareReleaseRequest{
		HandleID:  "h1",
		Predicate: descriptor,
		Proof:     alice.proof,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, share)

	tests := []struct {
		name string
		req  interfaces.ShareReleaseRequest
	}{
		{name: "not in predicate", req: interfaces.ShareReleaseRequest{HandleID: "h1", Predicate: descriptor, Proof: bob.proof}},
		{name: "unknown handle", req: interfaces.ShareReleaseRequest{HandleID: "h2", Predicate: descriptor, Proof: alice.proof}},
		{name: "other predicate", req: interfaces.ShareReleaseRequest{HandleID: "h1", Predicate: predicateFor(alice.addr, bob.addr).Descriptor(), Proof: bob.proof}},
		{name: "bad predicate", req: interfaces.ShareReleaseRequest{HandleID: "h1", Predicate: "[]", Proof: alice.proof}},
		{name: "forged proof", req: interfaces.ShareReleaseRequest{HandleID: "h1", Predicate: descriptor, Proof: interfaces.AuthProof{
			Sig: bob.proof.Sig, DerivedVia: bob.proof.DerivedVia, SignedMessage: bob.proof.SignedMessage, Address: alice.addr.Hex(),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := node.ReleaseShare(context.Background(), tt.req)
			assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
		})
	}
}

func TestLocalNodeRejectsStaleProofs(t *testing.T) {
	node := NewLocalNode("local", time.Minute)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	stale, err := cryptoutils.SignAuthProof(key, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	err = node.EscrowShare(context.Background(), interfaces.ShareEscrowRequest{
		HandleID:  "h1",
		Share:     []byte{1},
		Predicate: predicateFor(crypto.PubkeyToAddress(key.PublicKey)).Descriptor(),
		Proof:     stale,
	})
	assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
	assert.Equal(t, 0, node.Len())
}
