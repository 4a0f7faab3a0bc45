package api

import "github.com/djvang/pdftron-sign-app/interfaces"

// CreateContractResponse is returned by POST /api/contracts.
type CreateContractResponse struct {
	ID string `json:"id"`
}

// CreateStepRequest is the body of POST /api/contracts/{id}/steps. Proof must
// recover to Signer.
type CreateStepRequest struct {
	Signer       interfaces.Identity   `json:"signer"`
	ContractHash interfaces.ContentID  `json:"contractHash"`
	Proof        *interfaces.AuthProof `json:"proof,omitempty"`
}

// CreateStepResponse is returned by POST /api/contracts/{id}/steps.
type CreateStepResponse struct {
	ID string `json:"id"`
}

// ReleaseShareResponse is returned by POST /api/custody/release.
type ReleaseShareResponse struct {
	Share []byte `json:"share"`
}

// PingResponse is returned by GET /api/custody/ping.
type PingResponse struct {
	Status string `json:"status"`
	Node   string `json:"node"`
}
