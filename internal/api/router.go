// Пакет api — сборка HTTP-маршрутов Resource Server.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/api/middleware"
)

// NewRouter собирает маршруты Resource Server.
// Каталог автомобилей читается публично; изменяющие операции и
// бронирования требуют JWT.
func NewRouter(
	logger *slog.Logger,
	jwtAuth *middleware.JWTAuth,
	cars *handlers.CarsHandler,
	reservations *handlers.ReservationsHandler,
	health *handlers.HealthHandler,
) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware("resource-server"))
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без авторизации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	// Публичный каталог. Статический маршрут available имеет приоритет
	// над шаблоном {id}.
	router.Get("/api/cars", cars.List)
	router.Get("/api/cars/available", cars.ListAvailable)
	router.Get("/api/cars/{id}", cars.Get)

	// Защищённые маршруты
	router.Group(func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.Post("/api/cars", cars.Create)
		r.Put("/api/cars/{id}", cars.Update)
		r.Delete("/api/cars/{id}", cars.Delete)

		r.Get("/api/reservations", reservations.List)
		r.Get("/api/reservations/my", reservations.ListMy)
		r.Post("/api/reservations", reservations.Create)
		r.Put("/api/reservations/{id}/status", reservations.UpdateStatus)
		r.Delete("/api/reservations/{id}", reservations.Delete)
	})

	return router
}
