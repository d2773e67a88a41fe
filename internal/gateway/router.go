package gateway

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/api/middleware"
)

// NewRouter создаёт маршрутизатор B2B Gateway.
// Health и metrics публичны, все B2B маршруты требуют capability "b2b".
func NewRouter(logger *slog.Logger, auth *Auth, handler *Handler, health *handlers.HealthHandler) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware("b2b-gateway"))
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware())

		r.Route("/api/b2b/v1", func(r chi.Router) {
			r.Get("/cars", handler.ListCars)
			r.Get("/cars/available", handler.ListAvailableCars)
			r.Post("/reservations", handler.CreateReservation)
			r.Get("/reports/monthly", handler.GetMonthlyReport)
		})
	})

	return router
}
