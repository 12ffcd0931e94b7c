package handlers

import (
	"net/http"

	"compras/models"

	"github.com/go-chi/chi/v5"
)

type questionRequest struct {
	SupplierID string `json:"supplierId"`
	Question   string `json:"question"`
}

func (h *Handler) AskQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !readJSON(w, r, &req, false) {
		return
	}

	q, err := h.Engine.AskQuestion(r.Context(), chi.URLParam(r, "demandId"), req.SupplierID, req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type answerResponse struct {
	Question      *models.Question `json:"question"`
	Notifications notifications    `json:"notifications"`
}

func (h *Handler) AnswerQuestionHandler(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !readJSON(w, r, &req, false) {
		return
	}

	q, rep, err := h.Engine.AnswerQuestion(r.Context(), chi.URLParam(r, "questionId"), req.Answer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Question: q, Notifications: summarize(rep)})
}

func (h *Handler) MarkQuestionReadHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.MarkQuestionRead(r.Context(), chi.URLParam(r, "questionId")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUnreadAnswersHandler - непрочитанные ответы для поставщика текущего пользователя
func (h *Handler) GetUnreadAnswersHandler(w http.ResponseWriter, r *http.Request) {
	questions, err := h.Engine.UnreadAnswers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}
