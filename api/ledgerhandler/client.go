package ledgerhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/djvang/pdftron-sign-app/api"
	"github.com/djvang/pdftron-sign-app/interfaces"
)

var statusErrors = map[int]error{
	http.StatusBadRequest:   interfaces.ErrInvalidContract,
	http.StatusUnauthorized: interfaces.ErrAccessDenied,
	http.StatusForbidden:    interfaces.ErrUnknownSigner,
	http.StatusNotFound:     interfaces.ErrContractNotFound,
}

// Client is an interfaces.Ledger backed by a remote ledger service.
// Transport failures and 5xx responses wrap interfaces.ErrLedgerUnavailable.
type Client struct {
	BaseURL string
	Client  *http.Client
	// Proof authenticates the steps this client appends. Steps can only be
	// appended for the address it recovers to.
	Proof *interfaces.AuthProof
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Client: http.DefaultClient}
}

// WithAuthProof returns a copy of the client that signs steps with proof.
func (c *Client) WithAuthProof(proof interfaces.AuthProof) *Client {
	cp := *c
	cp.Proof = &proof
	return &cp
}

func (c *Client) CreateContract(ctx context.Context, draft interfaces.ContractDraft) (string, error) {
	var resp api.CreateContractResponse
	if err := c.do(ctx, http.MethodPost, "/api/contracts", draft, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) CreateStep(ctx context.Context, contractID string, signer interfaces.Identity, payload interfaces.ContentID) (string, error) {
	req := api.CreateStepRequest{Signer: signer, ContractHash: payload, Proof: c.Proof}

	var resp api.CreateStepResponse
	if err := c.do(ctx, http.MethodPost, "/api/contracts/"+url.PathEscape(contractID)+"/steps", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) GetContract(ctx context.Context, contractID string) (*interfaces.Contract, error) {
	var contract interfaces.Contract
	if err := c.do(ctx, http.MethodGet, "/api/contracts/"+url.PathEscape(contractID), nil, &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

func (c *Client) ListContracts(ctx context.Context, filter interfaces.ContractFilter) ([]*interfaces.Contract, error) {
	path := "/api/contracts"
	if filter.Participant != nil {
		path += "?participant=" + url.QueryEscape(filter.Participant.Hex())
	}

	contracts := []*interfaces.Contract{}
	if err := c.do(ctx, http.MethodGet, path, nil, &contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: could not request ledger: %w", interfaces.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return api.ResponseError(resp, statusErrors, interfaces.ErrLedgerUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: could not parse ledger response: %v", interfaces.ErrLedgerUnavailable, err)
	}
	return nil
}
