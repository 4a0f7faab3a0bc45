package interfaces

import "context"

// KeyHandle identifies a key escrowed on the custody network. It is safe to
// publish: without satisfying the predicate it reveals nothing about the key.
type KeyHandle string

// CustodyNetwork escrows symmetric keys behind an access predicate. A process uses
// a single instance that is connected once and shared by all callers.
type CustodyNetwork interface {
	// Connect starts warming up the network. It returns once connection attempts
	// have been started; Ready is closed when enough nodes are reachable.
	Connect(ctx context.Context) error

	// Ready is closed once the network can serve escrow and release calls.
	Ready() <-chan struct{}

	// EscrowKey stores key so that it is only released to identities satisfying predicate.
	EscrowKey(ctx context.Context, key []byte, predicate Predicate, proof AuthProof) (KeyHandle, error)

	// ReleaseKey returns the key if the identity proven by proof satisfies predicate.
	// Fails with ErrAccessDenied or ErrCustodyUnavailable.
	ReleaseKey(ctx context.Context, handle KeyHandle, predicate Predicate, proof AuthProof) ([]byte, error)
}

// ShareEscrowRequest asks a node to hold one share of a key.
type ShareEscrowRequest struct {
	HandleID  string    `json:"handleId"`
	Share     []byte    `json:"share"`
	Predicate string    `json:"predicate"`
	Proof     AuthProof `json:"proof"`
}

// ShareReleaseRequest asks a node to release its share of a key.
type ShareReleaseRequest struct {
	HandleID  string    `json:"handleId"`
	Predicate string    `json:"predicate"`
	Proof     AuthProof `json:"proof"`
}

// CustodyNode holds one share of every escrowed key and enforces the predicate
// on release.
type CustodyNode interface {
	Ping(ctx context.Context) error
	EscrowShare(ctx context.Context, req ShareEscrowRequest) error
	ReleaseShare(ctx context.Context, req ShareReleaseRequest) ([]byte, error)
	Name() string
}
