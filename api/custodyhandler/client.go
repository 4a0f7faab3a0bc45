package custodyhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/djvang/pdftron-sign-app/api"
	"github.com/djvang/pdftron-sign-app/interfaces"
)

var statusErrors = map[int]error{
	http.StatusBadRequest: interfaces.ErrInvalidPredicate,
	http.StatusForbidden:  interfaces.ErrAccessDenied,
	http.StatusNotFound:   interfaces.ErrAccessDenied,
}

// Client is an interfaces.CustodyNode reached over HTTP. Anything other than a
// denial wraps interfaces.ErrCustodyUnavailable, which custody.Network counts
// as an unreachable node.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Client: http.DefaultClient}
}

// Name identifies the node by its URL.
func (c *Client) Name() string {
	return c.BaseURL
}

func (c *Client) Ping(ctx context.Context) error {
	var resp api.PingResponse
	return c.do(ctx, http.MethodGet, "/api/custody/ping", nil, &resp)
}

func (c *Client) EscrowShare(ctx context.Context, req interfaces.ShareEscrowRequest) error {
	return c.do(ctx, http.MethodPost, "/api/custody/escrow", req, nil)
}

func (c *Client) ReleaseShare(ctx context.Context, req interfaces.ShareReleaseRequest) ([]byte, error) {
	var resp api.ReleaseShareResponse
	if err := c.do(ctx, http.MethodPost, "/api/custody/release", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Share) == 0 {
		return nil, fmt.Errorf("%w: node %s returned an empty share", interfaces.ErrCustodyUnavailable, c.BaseURL)
	}
	return resp.Share, nil
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
		return fmt.Errorf("%w: could not reach custody node %s: %w", interfaces.ErrCustodyUnavailable, c.BaseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	default:
		return api.ResponseError(resp, statusErrors, interfaces.ErrCustodyUnavailable)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: could not parse custody node response: %v", interfaces.ErrCustodyUnavailable, err)
	}
	return nil
}
