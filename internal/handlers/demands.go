package handlers

import (
	"io"
	"net/http"
	"time"

	"compras/db"
	"compras/internal/winner"
	"compras/models"

	"github.com/go-chi/chi/v5"
)

// CreateDemandHandler обрабатывает POST /api/demands/new
func (h *Handler) CreateDemandHandler(w http.ResponseWriter, r *http.Request) {
	var in models.Demand
	if !readJSON(w, r, &in, false) {
		return
	}

	d, err := h.Engine.Create(r.Context(), &in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetDemandsHandler возвращает список деманд с фильтром по статусу и секретарии
func (h *Handler) GetDemandsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	f := db.DemandFilter{
		Status:       models.DemandStatus(r.URL.Query().Get("status")),
		DepartmentID: r.URL.Query().Get("departmentId"),
		Limit:        params.Limit,
		Offset:       params.Offset,
	}

	demands, err := h.Engine.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demands)
}

func (h *Handler) GetDemandHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.Get(r.Context(), chi.URLParam(r, "demandId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateItemsHandler заменяет позиции черновика
func (h *Handler) UpdateItemsHandler(w http.ResponseWriter, r *http.Request) {
	var items []models.Item
	if !readJSON(w, r, &items, false) {
		return
	}

	d, err := h.Engine.UpdateItems(r.Context(), chi.URLParam(r, "demandId"), items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type publishRequest struct {
	ProposalDeadline *time.Time `json:"proposalDeadline"`
}

type demandResponse struct {
	Demand        *models.Demand `json:"demand"`
	Notifications notifications  `json:"notifications"`
}

// PublishDemandHandler открывает приём предложений; тело со сроком необязательно
func (h *Handler) PublishDemandHandler(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !readJSON(w, r, &req, true) {
		return
	}

	d, rep, err := h.Engine.Publish(r.Context(), chi.URLParam(r, "demandId"), req.ProposalDeadline)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, demandResponse{Demand: d, Notifications: summarize(rep)})
}

func (h *Handler) CloseProposalsHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.Engine.CloseProposals(r.Context(), chi.URLParam(r, "demandId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MoveToReviewHandler - PUT /api/demands/{demandId}/review?target=EM_ANALISE
func (h *Handler) MoveToReviewHandler(w http.ResponseWriter, r *http.Request) {
	target := models.DemandStatus(r.URL.Query().Get("target"))
	if target == "" {
		target = models.StatusUnderReview
	}

	d, err := h.Engine.MoveToReview(r.Context(), chi.URLParam(r, "demandId"), target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type winnerResponse struct {
	Result        *winner.Result `json:"result"`
	Notifications notifications  `json:"notifications"`
}

// DefineWinnerHandler принимает решение {mode, supplierName, totalValue, items}
func (h *Handler) DefineWinnerHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	dec, err := winner.DecodeDecision(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, rep, err := h.Engine.DefineWinner(r.Context(), chi.URLParam(r, "demandId"), dec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, winnerResponse{Result: res, Notifications: summarize(rep)})
}

type reasonRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *Handler) RejectDemandHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !readJSON(w, r, &req, false) {
		return
	}
	d, err := h.Engine.Reject(r.Context(), chi.URLParam(r, "demandId"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CancelDemandHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !readJSON(w, r, &req, false) {
		return
	}
	d, err := h.Engine.Cancel(r.Context(), chi.URLParam(r, "demandId"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CompleteDemandHandler(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !readJSON(w, r, &req, true) {
		return
	}
	d, err := h.Engine.Complete(r.Context(), chi.URLParam(r, "demandId"), req.Notes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) DeleteDemandHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Delete(r.Context(), chi.URLParam(r, "demandId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRankingHandler - справочный рейтинг предложений
func (h *Handler) GetRankingHandler(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.Engine.Ranking(r.Context(), chi.URLParam(r, "demandId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// GetPendingSuppliersHandler - подходящие поставщики без активного предложения
func (h *Handler) GetPendingSuppliersHandler(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.Engine.PendingSuppliers(r.Context(), chi.URLParam(r, "demandId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}
