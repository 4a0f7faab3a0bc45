package custody

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/hashicorp/vault/shamir"
)

const handleIDSize = 32

// Network coordinates escrow and release across custody nodes with a T-of-N
// threshold. It is safe for concurrent use.
type Network struct {
	nodes     []interfaces.CustodyNode
	threshold int
	log       *slog.Logger

	// ConnectBackOff controls how Connect retries pinging nodes.
	ConnectBackOff func() backoff.BackOff

	connectOnce sync.Once
	readyOnce   sync.Once
	ready       chan struct{}
}

// NewNetwork creates a network over nodes requiring threshold of them to
// reconstruct a key. A threshold of 1 replicates whole keys to every node.
func NewNetwork(nodes []interfaces.CustodyNode, threshold int, log *slog.Logger) (*Network, error) {
	if len(nodes) == 0 {
		return nil, errors.New("at least one custody node is required")
	}
	if threshold < 1 || threshold > len(nodes) {
		return nil, fmt.Errorf("threshold %d out of range for %d nodes", threshold, len(nodes))
	}
	if len(nodes) > 255 {
		return nil, errors.New("at most 255 custody nodes are supported")
	}

	return &Network{
		nodes:     nodes,
		threshold: threshold,
		log:       log,
		ConnectBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			b.MaxInterval = 10 * time.Second
			return b
		},
		ready: make(chan struct{}),
	}, nil
}

// Threshold returns the number of shares needed to reconstruct a key.
func (n *Network) Threshold() int {
	return n.threshold
}

// Ready is closed once at least threshold nodes answered a ping.
func (n *Network) Ready() <-chan struct{} {
	return n.ready
}

// Connect starts pinging nodes in the background until at least threshold of
// them are reachable, then closes Ready. Subsequent calls are no-ops. Warm-up
// stops when ctx is cancelled.
func (n *Network) Connect(ctx context.Context) error {
	n.connectOnce.Do(func() {
		go n.warmUp(ctx)
	})
	return nil
}

func (n *Network) warmUp(ctx context.Context) {
	err := backoff.RetryNotify(func() error {
		up := n.reachableNodes(ctx)
		if up < n.threshold {
			return fmt.Errorf("%w: %d of %d required nodes reachable", interfaces.ErrCustodyUnavailable, up, n.threshold)
		}
		return nil
	}, backoff.WithContext(n.ConnectBackOff(), ctx), func(err error, next time.Duration) {
		n.log.Warn("custody network not ready", "err", err, slog.Duration("next", next))
	})
	if err != nil {
		n.log.Error("custody network warm-up stopped", "err", err)
		return
	}

	n.readyOnce.Do(func() { close(n.ready) })
	n.log.Info("custody network ready", slog.Int("nodes", len(n.nodes)), slog.Int("threshold", n.threshold))
}

func (n *Network) reachableNodes(ctx context.Context) int {
	var (
		mu sync.Mutex
		up int
	)
	var wg sync.WaitGroup
	for _, node := range n.nodes {
		wg.Add(1)
		go func(node interfaces.CustodyNode) {
			defer wg.Done()
			if err := node.Ping(ctx); err != nil {
				n.log.Debug("custody node unreachable", slog.String("node", node.Name()), "err", err)
				return
			}
			mu.Lock()
			up++
			mu.Unlock()
		}(node)
	}
	wg.Wait()
	return up
}

func (n *Network) splitKey(key []byte) ([][]byte, error) {
	if n.threshold == 1 {
		shares := make([][]byte, len(n.nodes))
		for i := range shares {
			shares[i] = append([]byte(nil), key...)
		}
		return shares, nil
	}
	return shamir.Split(key, len(n.nodes), n.threshold)
}

func (n *Network) combineShares(shares [][]byte) ([]byte, error) {
	if n.threshold == 1 {
		return shares[0], nil
	}
	return shamir.Combine(shares[:n.threshold])
}

// EscrowKey splits key and stores one share per node. At least threshold nodes
// must accept their share. A node rejecting the auth proof fails the escrow with
// ErrAccessDenied.
func (n *Network) EscrowKey(ctx context.Context, key []byte, predicate interfaces.Predicate, proof interfaces.AuthProof) (interfaces.KeyHandle, error) {
	if err := predicate.Validate(); err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", errors.New("empty key")
	}

	id := make([]byte, handleIDSize)
	if _, err := io.ReadFull(rand.Reader, id); err != nil {
		return "", fmt.Errorf("failed to generate handle: %w", err)
	}
	handleID := hex.EncodeToString(id)

	shares, err := n.splitKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to split key: %w", err)
	}

	descriptor := predicate.Descriptor()
	results := make([]error, len(n.nodes))

	var wg sync.WaitGroup
	for i, node := range n.nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = node.EscrowShare(ctx, interfaces.ShareEscrowRequest{
				HandleID:  handleID,
				Share:     shares[i],
				Predicate: descriptor,
				Proof:     proof,
			})
		}()
	}
	wg.Wait()

	accepted, denied := 0, 0
	for i, err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, interfaces.ErrAccessDenied):
			denied++
			n.log.Debug("custody node denied escrow", slog.String("node", n.nodes[i].Name()), "err", err)
		default:
			n.log.Warn("custody node failed escrow", slog.String("node", n.nodes[i].Name()), "err", err)
		}
	}

	if denied > 0 {
		return "", fmt.Errorf("%w: %d nodes rejected the auth proof", interfaces.ErrAccessDenied, denied)
	}
	if accepted < n.threshold {
		return "", fmt.Errorf("%w: only %d of %d required nodes stored a share", interfaces.ErrCustodyUnavailable, accepted, n.threshold)
	}

	return interfaces.KeyHandle(handleID), nil
}

// ReleaseKey collects shares until threshold are gathered and reconstructs the key.
//
// If threshold nodes deny the request, or a majority of nodes deny it, the call
// fails with ErrAccessDenied. Otherwise, if fewer than threshold shares could be
// collected, it fails with ErrCustodyUnavailable.
func (n *Network) ReleaseKey(ctx context.Context, handle interfaces.KeyHandle, predicate interfaces.Predicate, proof interfaces.AuthProof) ([]byte, error) {
	if err := predicate.Validate(); err != nil {
		return nil, err
	}
	if _, err := hex.DecodeString(string(handle)); err != nil || len(handle) != 2*handleIDSize {
		return nil, fmt.Errorf("%w: malformed key handle", interfaces.ErrAccessDenied)
	}

	req := interfaces.ShareReleaseRequest{
		HandleID:  string(handle),
		Predicate: predicate.Descriptor(),
		Proof:     proof,
	}

	type result struct {
		share []byte
		err   error
	}
	results := make([]result, len(n.nodes))

	var wg sync.WaitGroup
	for i, node := range n.nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			share, err := node.ReleaseShare(ctx, req)
			results[i] = result{share: share, err: err}
		}()
	}
	wg.Wait()

	var shares [][]byte
	denied := 0
	for i, res := range results {
		switch {
		case res.err == nil:
			shares = append(shares, res.share)
		case errors.Is(res.err, interfaces.ErrAccessDenied):
			denied++
		default:
			n.log.Warn("custody node failed release", slog.String("node", n.nodes[i].Name()), "err", res.err)
		}
	}

	if len(shares) >= n.threshold {
		key, err := n.combineShares(shares)
		if err != nil {
			return nil, fmt.Errorf("failed to combine shares: %w", err)
		}
		return key, nil
	}

	if denied >= n.threshold || 2*denied > len(n.nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes denied release", interfaces.ErrAccessDenied, denied, len(n.nodes))
	}
	return nil, fmt.Errorf("%w: %d of %d required shares collected", interfaces.ErrCustodyUnavailable, len(shares), n.threshold)
}
