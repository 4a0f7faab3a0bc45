package ledgerhandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/djvang/pdftron-sign-app/api"
	"github.com/djvang/pdftron-sign-app/cryptoutils"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds request bodies. Requests carry ids and hashes only.
const maxBodySize = 64 * 1024

// Handler exposes an interfaces.Ledger over HTTP.
type Handler struct {
	ledger      interfaces.Ledger
	proofMaxAge time.Duration
	log         *slog.Logger
}

// NewHandler serves ledger. Step auth proofs older than proofMaxAge are
// rejected; zero accepts proofs of any age.
func NewHandler(ledger interfaces.Ledger, proofMaxAge time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		ledger:      ledger,
		proofMaxAge: proofMaxAge,
		log:         log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/contracts", h.HandleCreateContract)
	r.Get("/api/contracts", h.HandleListContracts)
	r.Get("/api/contracts/{id}", h.HandleGetContract)
	r.Post("/api/contracts/{id}/steps", h.HandleCreateStep)
}

// HandleCreateContract records a contract.
//
// Request body: JSON interfaces.ContractDraft.
// Response: JSON api.CreateContractResponse with the assigned id.
func (h *Handler) HandleCreateContract(w http.ResponseWriter, r *http.Request) {
	var draft interfaces.ContractDraft
	if err := decodeBody(w, r, &draft); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	id, err := h.ledger.CreateContract(r.Context(), draft)
	if err != nil {
		h.log.Debug("create contract failed", "err", err)
		api.WriteError(w, err)
		return
	}

	h.log.Info("contract created", slog.String("contractID", id), slog.String("initiator", draft.Initiator.Hex()))
	h.writeJSON(w, http.StatusCreated, api.CreateContractResponse{ID: id})
}

// HandleListContracts lists contracts, optionally restricted to those a
// participant initiated or signs.
func (h *Handler) HandleListContracts(w http.ResponseWriter, r *http.Request) {
	var filter interfaces.ContractFilter
	if raw := r.URL.Query().Get("participant"); raw != "" {
		participant, err := interfaces.ParseIdentity(raw)
		if err != nil {
			http.Error(w, fmt.Errorf("invalid participant: %w", err).Error(), http.StatusBadRequest)
			return
		}
		filter.Participant = &participant
	}

	contracts, err := h.ledger.ListContracts(r.Context(), filter)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contracts)
}

func (h *Handler) HandleGetContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.ledger.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, contract)
}

// HandleCreateStep appends a step to a contract. The request's auth proof must
// recover to the signer (401 otherwise) and the signer must be declared on the
// contract (403 otherwise).
func (h *Handler) HandleCreateStep(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "id")

	var req api.CreateStepRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}
	if !req.ContractHash.Defined() {
		http.Error(w, "contractHash is required", http.StatusBadRequest)
		return
	}
	if err := h.authenticate(req); err != nil {
		h.log.Debug("step rejected", slog.String("contractID", contractID), "err", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	stepID, err := h.ledger.CreateStep(r.Context(), contractID, req.Signer, req.ContractHash)
	if err != nil {
		h.log.Debug("create step failed", slog.String("contractID", contractID), "err", err)
		api.WriteError(w, err)
		return
	}

	h.log.Info("step appended",
		slog.String("contractID", contractID),
		slog.String("stepID", stepID),
		slog.String("signer", req.Signer.Hex()))
	h.writeJSON(w, http.StatusCreated, api.CreateStepResponse{ID: stepID})
}

func (h *Handler) authenticate(req api.CreateStepRequest) error {
	if req.Proof == nil {
		return fmt.Errorf("%w: auth proof is required", interfaces.ErrAccessDenied)
	}
	addr, err := cryptoutils.VerifyAuthProof(*req.Proof, h.proofMaxAge)
	if err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrAccessDenied, err)
	}
	if addr != req.Signer {
		return fmt.Errorf("%w: proof is for %s, not %s", interfaces.ErrAccessDenied, addr.Hex(), req.Signer.Hex())
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
