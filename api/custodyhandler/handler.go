package custodyhandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/djvang/pdftron-sign-app/api"
	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds request bodies; a share is a few dozen bytes.
const maxBodySize = 64 * 1024

// Handler exposes a custody node over HTTP.
type Handler struct {
	node interfaces.CustodyNode
	log  *slog.Logger
}

func NewHandler(node interfaces.CustodyNode, log *slog.Logger) *Handler {
	return &Handler{
		node: node,
		log:  log.With(slog.String("node", node.Name())),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/custody/ping", h.HandlePing)
	r.Post("/api/custody/escrow", h.HandleEscrow)
	r.Post("/api/custody/release", h.HandleRelease)
}

func (h *Handler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if err := h.node.Ping(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, api.PingResponse{Status: "ok", Node: h.node.Name()})
}

// HandleEscrow stores a key share.
//
// Request body: JSON interfaces.ShareEscrowRequest.
// Responds 204 on success, 403 if the depositor's proof is invalid or the
// handle is taken by a different share.
func (h *Handler) HandleEscrow(w http.ResponseWriter, r *http.Request) {
	var req interfaces.ShareEscrowRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	if err := h.node.EscrowShare(r.Context(), req); err != nil {
		h.log.Info("escrow rejected", slog.String("handle", req.HandleID), "err", err)
		api.WriteError(w, err)
		return
	}

	h.log.Debug("share escrowed", slog.String("handle", req.HandleID), slog.String("depositor", req.Proof.Address))
	w.WriteHeader(http.StatusNoContent)
}

// HandleRelease returns a key share to a caller satisfying its predicate.
//
// Request body: JSON interfaces.ShareReleaseRequest.
// Response: JSON api.ReleaseShareResponse, or 403.
func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	var req interfaces.ShareReleaseRequest
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusBadRequest)
		return
	}

	share, err := h.node.ReleaseShare(r.Context(), req)
	if err != nil {
		h.log.Info("release denied", slog.String("handle", req.HandleID), slog.String("caller", req.Proof.Address), "err", err)
		api.WriteError(w, err)
		return
	}

	h.writeJSON(w, api.ReleaseShareResponse{Share: share})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
