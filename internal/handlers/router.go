package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Group(func(r chi.Router) {
			r.Use(h.Identify)

			// деманды
			r.Post("/demands/new", h.CreateDemandHandler)
			r.Get("/demands", h.GetDemandsHandler)
			r.Get("/demands/{demandId}", h.GetDemandHandler)
			r.Delete("/demands/{demandId}", h.DeleteDemandHandler)
			r.Put("/demands/{demandId}/items", h.UpdateItemsHandler)
			r.Put("/demands/{demandId}/publish", h.PublishDemandHandler)
			r.Put("/demands/{demandId}/close", h.CloseProposalsHandler)
			r.Put("/demands/{demandId}/review", h.MoveToReviewHandler)
			r.Put("/demands/{demandId}/winner", h.DefineWinnerHandler)
			r.Put("/demands/{demandId}/reject", h.RejectDemandHandler)
			r.Put("/demands/{demandId}/cancel", h.CancelDemandHandler)
			r.Put("/demands/{demandId}/complete", h.CompleteDemandHandler)
			r.Get("/demands/{demandId}/ranking", h.GetRankingHandler)
			r.Get("/demands/{demandId}/pending-suppliers", h.GetPendingSuppliersHandler)

			// предложения
			r.Post("/demands/{demandId}/proposals", h.SubmitProposalHandler)
			r.Post("/demands/{demandId}/decline", h.DeclineDemandHandler)

			// вопросы
			r.Post("/demands/{demandId}/questions", h.AskQuestionHandler)
			r.Put("/questions/{questionId}/answer", h.AnswerQuestionHandler)
			r.Put("/questions/{questionId}/read", h.MarkQuestionReadHandler)
			r.Get("/questions/unread", h.GetUnreadAnswersHandler)

			r.Get("/audit", h.GetAuditHandler)

			// справочники
			r.Post("/departments", h.CreateDepartmentHandler)
			r.Post("/groups", h.CreateGroupHandler)
			r.Get("/groups", h.GetGroupsHandler)
			r.Post("/suppliers", h.CreateSupplierHandler)
			r.Get("/suppliers", h.GetSuppliersHandler)
			r.Get("/suppliers/{supplierId}", h.GetSupplierHandler)
			r.Put("/suppliers/{supplierId}/status", h.UpdateSupplierStatusHandler)
			r.Put("/suppliers/{supplierId}/groups", h.SetSupplierGroupsHandler)
			r.Post("/suppliers/{supplierId}/documents", h.AddSupplierDocumentHandler)
			r.Post("/users", h.CreateUserHandler)
		})
	})
	return r
}
