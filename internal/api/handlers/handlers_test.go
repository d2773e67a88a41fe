package handlers

// Общие помощники для тестов обработчиков: стабы репозиториев,
// разбор стандартного конверта ошибки и сборка тестового роутера.

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/carrental/internal/api/middleware"
	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/repository"
	"github.com/arturkryukov/carrental/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubCarRepo — стаб CarRepository с переопределяемыми методами.
type stubCarRepo struct {
	createFn        func(ctx context.Context, car *model.Car) error
	getByIDFn       func(ctx context.Context, id int64) (*model.Car, error)
	listFn          func(ctx context.Context) ([]*model.Car, error)
	listAvailableFn func(ctx context.Context) ([]*model.Car, error)
	updateFn        func(ctx context.Context, car *model.Car) error
	deleteFn        func(ctx context.Context, id int64) error
}

func (s *stubCarRepo) Create(ctx context.Context, car *model.Car) error {
	if s.createFn != nil {
		return s.createFn(ctx, car)
	}
	return nil
}

func (s *stubCarRepo) GetByID(ctx context.Context, id int64) (*model.Car, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (s *stubCarRepo) List(ctx context.Context) ([]*model.Car, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubCarRepo) ListAvailable(ctx context.Context) ([]*model.Car, error) {
	if s.listAvailableFn != nil {
		return s.listAvailableFn(ctx)
	}
	return nil, nil
}

func (s *stubCarRepo) Update(ctx context.Context, car *model.Car) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, car)
	}
	return nil
}

func (s *stubCarRepo) Delete(ctx context.Context, id int64) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

// stubReservationRepo — стаб ReservationRepository с переопределяемыми методами.
type stubReservationRepo struct {
	createFn       func(ctx context.Context, res *model.Reservation) error
	getByIDFn      func(ctx context.Context, id int64) (*model.Reservation, error)
	listFn         func(ctx context.Context) ([]*model.Reservation, error)
	listByUserFn   func(ctx context.Context, userID string) ([]*model.Reservation, error)
	updateStatusFn func(ctx context.Context, id int64, status model.ReservationStatus) error
	deleteFn       func(ctx context.Context, id int64) error
}

func (s *stubReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if s.createFn != nil {
		return s.createFn(ctx, res)
	}
	return nil
}

func (s *stubReservationRepo) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (s *stubReservationRepo) List(ctx context.Context) ([]*model.Reservation, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return nil, nil
}

func (s *stubReservationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	if s.listByUserFn != nil {
		return s.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubReservationRepo) UpdateStatus(ctx context.Context, id int64, status model.ReservationStatus) error {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (s *stubReservationRepo) Delete(ctx context.Context, id int64) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

// newCarsRouter собирает chi-роутер с обработчиками автомобилей
// поверх стаба репозитория.
func newCarsRouter(repo *stubCarRepo) *chi.Mux {
	h := NewCarsHandler(service.NewCarService(repo, testLogger()), testLogger())

	r := chi.NewRouter()
	r.Get("/api/cars", h.List)
	r.Get("/api/cars/available", h.ListAvailable)
	r.Get("/api/cars/{id}", h.Get)
	r.Post("/api/cars", h.Create)
	r.Put("/api/cars/{id}", h.Update)
	r.Delete("/api/cars/{id}", h.Delete)
	return r
}

// newReservationsRouter собирает chi-роутер с обработчиками бронирований.
func newReservationsRouter(cars *stubCarRepo, reservations *stubReservationRepo) *chi.Mux {
	svc := service.NewReservationService(reservations, cars, nil, testLogger())
	h := NewReservationsHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Get("/api/reservations", h.List)
	r.Get("/api/reservations/my", h.ListMy)
	r.Post("/api/reservations", h.Create)
	r.Put("/api/reservations/{id}/status", h.UpdateStatus)
	r.Delete("/api/reservations/{id}", h.Delete)
	return r
}

// withClaims кладёт claims в контекст запроса, минуя JWT middleware.
func withClaims(r *http.Request, claims *middleware.AuthClaims) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyClaims, claims)
	return r.WithContext(ctx)
}

// apiError — разобранный конверт ошибки API.
type apiError struct {
	Code    string
	Message string
	Fields  map[string]string
}

// decodeError разбирает стандартный конверт {"error": {...}}.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()

	var envelope struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("Ошибка разбора конверта ошибки: %v", err)
	}
	return apiError{
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Fields:  envelope.Error.Fields,
	}
}
