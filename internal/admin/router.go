package admin

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/api/middleware"
)

// NewRouter создаёт маршрутизатор Admin Panel.
// Auth flow (login, callback, logout) и health публичны,
// страницы панели требуют сессию и допуск.
func NewRouter(logger *slog.Logger, handler *Handler, health *handlers.HealthHandler) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware("admin-panel"))
	router.Use(middleware.RequestLogger(logger))

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Get("/login", handler.Login)
	router.Get("/callback", handler.Callback)
	router.Get("/logout", handler.Logout)
	router.Post("/logout", handler.Logout)

	router.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)

		r.Get("/", handler.Dashboard)
		r.Post("/add-car", handler.AddCar)
		r.Get("/edit-car", handler.EditCarForm)
		r.Post("/update-car", handler.UpdateCar)
		r.Post("/delete-car", handler.DeleteCar)
		r.Post("/update-reservation-status", handler.UpdateReservationStatus)
		r.Post("/delete-reservation", handler.DeleteReservation)
		r.Get("/auth-status", handler.AuthStatus)
		r.Get("/check-roles", handler.CheckRoles)
	})

	return router
}
