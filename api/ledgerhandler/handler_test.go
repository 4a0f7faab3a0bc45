package ledgerhandler

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/djvang/pdftron-sign-app/api"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/djvang/pdftron-sign-app/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	aliceKey   = mustKey()
	bobKey     = mustKey()
	malloryKey = mustKey()

	initiator = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice     = crypto.PubkeyToAddress(aliceKey.PublicKey)
	bob       = crypto.PubkeyToAddress(bobKey.PublicKey)
	mallory   = crypto.PubkeyToAddress(malloryKey.PublicKey)
)

func mustKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}

func authProof(t *testing.T, key *ecdsa.PrivateKey) interfaces.AuthProof {
	t.Helper()
	proof, err := cryptoutils.SignAuthProof(key, time.Now())
	require.NoError(t, err)
	return proof
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouter(l interfaces.Ledger) chi.Router {
	mux := chi.NewRouter()
	NewHandler(l, time.Hour, testLogger()).RegisterRoutes(mux)
	return mux
}

func newTestClient(t *testing.T, l interfaces.Ledger) *Client {
	srv := httptest.NewServer(newRouter(l))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func draft(name string, signers ...interfaces.Identity) interfaces.ContractDraft {
	d := interfaces.ContractDraft{
		Name:           name,
		EncryptionMode: interfaces.ModePassword,
		ContractHash:   interfaces.ComputeContentID([]byte(name)),
		Initiator:      initiator,
	}
	for _, s := range signers {
		d.Signers = append(d.Signers, interfaces.Signer{Address: s})
	}
	return d
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, ledger.NewMemoryLedger())

	id, err := client.CreateContract(ctx, draft("nda", alice, bob))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	payload := interfaces.ComputeContentID([]byte("step-0"))
	stepID, err := client.WithAuthProof(authProof(t, aliceKey)).CreateStep(ctx, id, alice, payload)
	require.NoError(t, err)

	contract, err := client.GetContract(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "nda", contract.Name)
	assert.Equal(t, interfaces.ModePassword, contract.EncryptionMode)
	assert.Equal(t, initiator, contract.Initiator)
	assert.Equal(t, []interfaces.Identity{alice, bob}, contract.SignerAddresses())
	require.Len(t, contract.Steps, 1)
	assert.Equal(t, stepID, contract.Steps[0].ID)
	assert.Equal(t, 0, contract.Steps[0].Index)
	assert.True(t, payload.Equal(contract.Steps[0].ContractHash))

	other, err := client.CreateContract(ctx, draft("lease", bob))
	require.NoError(t, err)

	all, err := client.ListContracts(ctx, interfaces.ContractFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other, all[0].ID)

	mine, err := client.ListContracts(ctx, interfaces.ContractFilter{Participant: &alice})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	none, err := client.ListContracts(ctx, interfaces.ContractFilter{Participant: &mallory})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, ledger.NewMemoryLedger())

	id, err := client.CreateContract(ctx, draft("nda", alice))
	require.NoError(t, err)

	_, err = client.WithAuthProof(authProof(t, malloryKey)).CreateStep(ctx, id, mallory, interfaces.ComputeContentID([]byte("x")))
	assert.ErrorIs(t, err, interfaces.ErrUnknownSigner)

	_, err = client.WithAuthProof(authProof(t, aliceKey)).CreateStep(ctx, "missing", alice, interfaces.ComputeContentID([]byte("x")))
	assert.ErrorIs(t, err, interfaces.ErrContractNotFound)

	_, err = client.GetContract(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrContractNotFound)

	_, err = client.CreateContract(ctx, draft("empty"))
	assert.ErrorIs(t, err, interfaces.ErrInvalidContract)
}

func TestClientUnavailable(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream timeout", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetContract(ctx, "c-1")
	assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)
	assert.Contains(t, err.Error(), "upstream timeout")

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = NewClient(closed.URL).ListContracts(ctx, interfaces.ContractFilter{})
	assert.ErrorIs(t, err, interfaces.ErrLedgerUnavailable)
}

func TestHandlerStatusCodes(t *testing.T) {
	mockLedger := &ledger.MockLedger{}
	mockLedger.On("GetContract", mock.Anything, "down").Return(nil, interfaces.ErrLedgerUnavailable)
	mockLedger.On("GetContract", mock.Anything, "boom").Return(nil, errors.New("boom"))
	mockLedger.On("CreateStep", mock.Anything, "c-1", mallory, mock.Anything).Return("", interfaces.ErrUnknownSigner)
	mux := newRouter(mockLedger)

	malloryProof := authProof(t, malloryKey)
	validStep, err := json.Marshal(api.CreateStepRequest{
		Signer:       mallory,
		ContractHash: interfaces.ComputeContentID([]byte("x")),
		Proof:        &malloryProof,
	})
	require.NoError(t, err)
	unsignedStep, err := json.Marshal(api.CreateStepRequest{Signer: mallory, ContractHash: interfaces.ComputeContentID([]byte("x"))})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "ledger down", method: http.MethodGet, path: "/api/contracts/down", want: http.StatusServiceUnavailable},
		{name: "unexpected failure", method: http.MethodGet, path: "/api/contracts/boom", want: http.StatusInternalServerError},
		{name: "not a signer", method: http.MethodPost, path: "/api/contracts/c-1/steps", body: string(validStep), want: http.StatusForbidden},
		{name: "step without proof", method: http.MethodPost, path: "/api/contracts/c-1/steps", body: string(unsignedStep), want: http.StatusUnauthorized},
		{name: "step without payload", method: http.MethodPost, path: "/api/contracts/c-1/steps", body: `{"signer":"` + alice.Hex() + `"}`, want: http.StatusBadRequest},
		{name: "malformed json", method: http.MethodPost, path: "/api/contracts", body: `{"name":`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/api/contracts", body: `{"title":"nda"}`, want: http.StatusBadRequest},
		{name: "bad participant", method: http.MethodGet, path: "/api/contracts?participant=alice", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewReader([]byte(tt.body)))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandleCreateContract(t *testing.T) {
	mux := newRouter(ledger.NewMemoryLedger())

	body, err := json.Marshal(draft("nda", alice))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var created api.CreateContractResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/contracts/"+created.ID, nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"encryptionMode":1`))
}

func TestCreateStepRequiresSignerProof(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemoryLedger()
	client := newTestClient(t, l)

	id, err := client.CreateContract(ctx, draft("nda", alice, bob))
	require.NoError(t, err)
	payload := interfaces.ComputeContentID([]byte("forged"))

	stale, err := cryptoutils.SignAuthProof(aliceKey, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	forged := authProof(t, bobKey)
	forged.Address = alice.Hex()

	tests := []struct {
		name   string
		client *Client
	}{
		{name: "no proof", client: client},
		{name: "proof of another signer", client: client.WithAuthProof(authProof(t, bobKey))},
		{name: "proof of an outsider", client: client.WithAuthProof(authProof(t, malloryKey))},
		{name: "forged address", client: client.WithAuthProof(forged)},
		{name: "expired proof", client: client.WithAuthProof(stale)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.CreateStep(ctx, id, alice, payload)
			assert.ErrorIs(t, err, interfaces.ErrAccessDenied)
		})
	}

	contract, err := l.GetContract(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, contract.Steps)
	assert.False(t, contract.SignedBy(alice))

	_, err = client.WithAuthProof(authProof(t, aliceKey)).CreateStep(ctx, id, alice, payload)
	require.NoError(t, err)
}
