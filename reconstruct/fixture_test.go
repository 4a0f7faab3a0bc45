package reconstruct

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/accesscontrol"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/custody"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/ledger"
	"github.com/djvang/pdftron-sign-app/metrics"
	"github.com/djvang/pdftron-sign-app/overlay"
	"github.com/djvang/pdftron-sign-app/policy"
	"github.com/djvang/pdftron-sign-app/storage"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const baseDocument = "%PDF-1.7 master services agreement"

type wallet struct {
	addr  interfaces.Identity
	proof *interfaces.AuthProof
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	proof, err := cryptoutils.SignAuthProof(key, time.Now())
	require.NoError(t, err)
	return wallet{addr: crypto.PubkeyToAddress(key.PublicKey), proof: &proof}
}

func (w wallet) password(viewMode ViewMode, password string) Viewer {
	return Viewer{Identity: w.addr, Mode: viewMode, Keys: policy.KeyMaterial{Password: password}}
}

func (w wallet) proven(viewMode ViewMode) Viewer {
	return Viewer{Identity: w.addr, Mode: viewMode, Keys: policy.KeyMaterial{AuthProof: w.proof}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// hookStore lets tests intercept content store calls.
type hookStore struct {
	interfaces.StorageBackend
	onFetch func(ctx context.Context, id interfaces.ContentID)
	onStore func(ctx context.Context) error
}

func (h *hookStore) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	if h.onFetch != nil {
		h.onFetch(ctx, id)
	}
	return h.StorageBackend.Fetch(ctx, id)
}

func (h *hookStore) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	if h.onStore != nil {
		if err := h.onStore(ctx); err != nil {
			return interfaces.ContentID{}, err
		}
	}
	return h.StorageBackend.Store(ctx, data)
}

type fixture struct {
	ledger    *ledger.MemoryLedger
	store     *hookStore
	policy    *policy.Engine
	metrics   *metrics.Signing
	engine    *Engine
	initiator wallet
	alice     wallet
	bob       wallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger()

	badger, err := storage.NewBadgerBackend("", log)
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })

	nodes := []interfaces.CustodyNode{
		custody.NewLocalNode("node-0", time.Hour),
		custody.NewLocalNode("node-1", time.Hour),
		custody.NewLocalNode("node-2", time.Hour),
	}
	network, err := custody.NewNetwork(nodes, 2, log)
	require.NoError(t, err)
	require.NoError(t, network.Connect(context.Background()))

	m, err := metrics.NewSigning("test", prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		ledger:    ledger.NewMemoryLedger(),
		store:     &hookStore{StorageBackend: badger},
		policy:    policy.NewEngine(accesscontrol.NewModule(network, accesscontrol.DefaultRetryPolicy, log), m, log),
		metrics:   m,
		initiator: newWallet(t),
		alice:     newWallet(t),
		bob:       newWallet(t),
	}
	f.engine = NewEngine(f.ledger, f.store, f.policy, m, log)
	return f
}

func (f *fixture) aliceSignature() overlay.FieldTag {
	return overlay.FieldTag{Signer: f.alice.addr, Type: overlay.FieldSignature, Timestamp: time.UnixMilli(1000)}
}

func (f *fixture) bobName() overlay.FieldTag {
	return overlay.FieldTag{Signer: f.bob.addr, Type: overlay.FieldText, Timestamp: time.UnixMilli(2000)}
}

// createPasswordContract creates a "secret123" contract for alice and bob with
// one field each.
func (f *fixture) createPasswordContract(t *testing.T) string {
	t.Helper()
	id, err := f.engine.CreateContract(context.Background(), CreateRequest{
		Name:      "msa",
		Mode:      interfaces.ModePassword,
		Initiator: f.initiator.addr,
		Signers:   []interfaces.Identity{f.alice.addr, f.bob.addr},
		File:      []byte(baseDocument),
		Fields:    []overlay.FieldTag{f.aliceSignature(), f.bobName()},
		Keys:      policy.KeyMaterial{Password: "secret123"},
	})
	require.NoError(t, err)
	return id
}

// appendStep seals fields as a step authored by author, bypassing sessions.
func (f *fixture) appendStep(t *testing.T, contractID string, author interfaces.Identity, keys policy.KeyMaterial, fields ...overlay.Field) {
	t.Helper()
	ctx := context.Background()

	contract, err := f.ledger.GetContract(ctx, contractID)
	require.NoError(t, err)

	xfdf, err := (&overlay.Document{Fields: fields}).String()
	require.NoError(t, err)

	payload, err := f.policy.SealPayload(ctx, contract.EncryptionMode, []byte(baseDocument), xfdf, keys, contract.SignerAddresses())
	require.NoError(t, err)
	f.appendRawStep(t, contractID, author, payload)
}

func (f *fixture) appendRawStep(t *testing.T, contractID string, author interfaces.Identity, payload *interfaces.Payload) {
	t.Helper()
	ctx := context.Background()

	data, err := policy.EncodePayload(payload)
	require.NoError(t, err)
	id, err := f.store.Store(ctx, data)
	require.NoError(t, err)
	_, err = f.ledger.CreateStep(ctx, contractID, author, id)
	require.NoError(t, err)
}

func fieldValues(views []FieldView) map[string]string {
	out := make(map[string]string, len(views))
	for _, v := range views {
		out[v.Name] = v.Value
	}
	return out
}

// gate blocks callers until released.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) wait() {
	g.once.Do(func() { close(g.entered) })
	<-g.release
}
