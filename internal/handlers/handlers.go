package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"compras/db"
	"compras/internal/identity"
	"compras/internal/lifecycle"
	"compras/internal/notify"
	"compras/internal/winner"

	"github.com/sirupsen/logrus"
)

// Handler оборачивает движок и хранилище для HTTP
type Handler struct {
	Engine *lifecycle.Engine
	Store  StorageInterface
	Log    logrus.FieldLogger
}

// NewHandler создает новый Handler
func NewHandler(engine *lifecycle.Engine, store StorageInterface, log logrus.FieldLogger) *Handler {
	return &Handler{Engine: engine, Store: store, Log: log}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Identify находит пользователя по query-параметру username и кладёт его в контекст.
func (h *Handler) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			http.Error(w, "Missing username parameter", http.StatusBadRequest)
			return
		}
		user, err := h.Store.GetUserByUsername(r.Context(), username)
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		if err != nil {
			h.Log.WithError(err).Error("cannot resolve user")
			http.Error(w, "Failed to resolve user", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), *user)))
	})
}

// readJSON читает тело запроса в v. Пустое тело допустимо, если allowEmpty.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 && allowEmpty {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fail переводит ошибку движка в HTTP-статус.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lifecycle.ErrValidation), errors.Is(err, winner.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "Internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// notifications - краткий итог рассылки для ответа клиенту.
type notifications struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

func summarize(rep notify.Report) notifications {
	n := notifications{Sent: rep.Sent}
	for _, o := range rep.Failed {
		n.Failed = append(n.Failed, o.To)
	}
	return n
}
