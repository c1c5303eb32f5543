package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/hazirhay-backend/internal/middleware"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Post("/match", h.MatchProviders)
		r.Get("/prices/estimate", h.EstimatePrice)
		r.Get("/providers/{id}", h.GetProvider)
		r.Get("/providers/{id}/status", h.ProviderStatus)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)

			r.With(custommiddleware.RequireRole(model.RoleCustomer)).
				Post("/providers/{id}/reviews", h.AddReview)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleShopkeeper))

				r.Post("/providers", h.CreateProvider)
				r.Get("/provider", h.GetOwnProvider)
				r.Put("/provider/catalog", h.UpdateCatalog)
				r.Put("/provider/location", h.UpdateProviderLocation)
				r.Put("/provider/live", h.SetProviderLive)

				r.Post("/workers", h.CreateWorker)
				r.Get("/workers", h.ListWorkers)

				r.Post("/orders/{id}/respond", h.RespondToOrder)
				r.Post("/orders/assign", h.AssignWorkers)
				r.Post("/orders/cancel", h.CancelOrders)
				r.Post("/orders/{id}/unassign", h.UnassignOrder)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleWorker))

				r.Get("/worker", h.GetWorker)
				r.Put("/worker/location", h.UpdateWorkerLocation)
				r.Post("/orders/progress", h.ProgressOrders)
				r.Post("/orders/complete", h.CompleteOrders)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleCustomer))

				r.Post("/orders", h.SubmitIntent)
				r.Get("/cart", h.GetCart)
				r.Post("/cart", h.SaveCartItem)
				r.Delete("/cart", h.ClearCart)
			})
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)

			r.Post("/transactions", h.Settle)
			r.Get("/transactions", h.ListTransactions)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Delete("/", h.ClearNotifications)
				r.Post("/seen", h.MarkNotificationsSeen)
				r.Get("/ws", h.NotificationStream)
				r.Delete("/{id}", h.DeleteNotification)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleAdmin))

				r.Post("/accounts/{id}/verify", h.VerifyAccount)
				r.Post("/providers/{id}/reset-cancel", h.ResetCancelCount)
				r.Delete("/orders/{id}", h.AdminDeleteOrder)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
