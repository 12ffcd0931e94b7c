package handlers

import (
	"net/http"

	"compras/internal/lifecycle"

	"github.com/go-chi/chi/v5"
)

// SubmitProposalHandler обрабатывает POST /api/demands/{demandId}/proposals
func (h *Handler) SubmitProposalHandler(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.ProposalInput
	if !readJSON(w, r, &in, false) {
		return
	}

	p, err := h.Engine.SubmitProposal(r.Context(), chi.URLParam(r, "demandId"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type declineRequest struct {
	SupplierID string `json:"supplierId"`
	Reason     string `json:"reason"`
}

func (h *Handler) DeclineDemandHandler(w http.ResponseWriter, r *http.Request) {
	var req declineRequest
	if !readJSON(w, r, &req, true) {
		return
	}

	p, err := h.Engine.Decline(r.Context(), chi.URLParam(r, "demandId"), req.SupplierID, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
