// reservations.go — сервис бронирований: расчёт стоимости,
// жизненный цикл статусов и контроль доступа владельца.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/domain/pricing"
	"github.com/arturkryukov/carrental/internal/repository"
)

// Prometheus-метрики бронирований.
var (
	reservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rs_reservations_created_total",
		Help: "Общее количество созданных бронирований.",
	})
	reservationStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rs_reservation_status_changes_total",
		Help: "Количество смен статуса бронирований по целевому статусу.",
	}, []string{"status"})
)

// ErrInvalidDateRange — диапазон дат не покрывает ни одного платного дня.
var ErrInvalidDateRange = pricing.ErrInvalidDateRange

// Requester — сведения о пользователе, выполняющем операцию.
type Requester struct {
	// UserID — subject JWT.
	UserID string
	// IsAdmin — наличие роли admin.
	IsAdmin bool
}

// TxRunner — выполнение операции над репозиториями в одной транзакции.
// Реализуется repository.TxRunner; nil — операции идут напрямую через пул.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos repository.Repos) error) error
}

// ReservationService — сервис бронирований.
type ReservationService struct {
	reservations repository.ReservationRepository
	cars         repository.CarRepository
	tx           TxRunner
	logger       *slog.Logger
}

// NewReservationService создаёт сервис бронирований.
func NewReservationService(
	reservations repository.ReservationRepository,
	cars repository.CarRepository,
	tx TxRunner,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		cars:         cars,
		tx:           tx,
		logger:       logger.With(slog.String("component", "reservation_service")),
	}
}

// Create создаёт бронирование со статусом PENDING.
// Стоимость считается по суточной ставке автомобиля на момент создания:
// дни округляются вверх, итог — до двух знаков.
// При наличии TxRunner чтение автомобиля и вставка идут в одной транзакции.
func (s *ReservationService) Create(ctx context.Context, userID string, carID int64, start, end time.Time) (*model.Reservation, error) {
	if s.tx == nil {
		return s.create(ctx, s.cars, s.reservations, userID, carID, start, end)
	}

	var res *model.Reservation
	err := s.tx.RunInTx(ctx, func(repos repository.Repos) error {
		var createErr error
		res, createErr = s.create(ctx, repos.Cars, repos.Reservations, userID, carID, start, end)
		return createErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// create — чтение автомобиля, расчёт стоимости и вставка бронирования
// через переданную пару репозиториев.
func (s *ReservationService) create(
	ctx context.Context,
	cars repository.CarRepository,
	reservations repository.ReservationRepository,
	userID string, carID int64, start, end time.Time,
) (*model.Reservation, error) {
	car, err := cars.GetByID(ctx, carID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("получение автомобиля: %w", err)
	}

	total, err := pricing.Total(car.DailyRate, start, end)
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		CarID:      car.ID,
		UserID:     userID,
		StartDate:  start,
		EndDate:    end,
		TotalPrice: total,
		Status:     model.StatusPending,
	}
	if err := reservations.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("создание бронирования: %w", err)
	}
	summary := car.Summary()
	res.Car = &summary

	reservationsCreatedTotal.Inc()
	s.logger.Info("Бронирование создано",
		slog.Int64("reservation_id", res.ID),
		slog.Int64("car_id", car.ID),
		slog.String("user_id", userID),
		slog.Float64("total_price", total),
	)
	return res, nil
}

// List возвращает все бронирования (для администратора).
func (s *ReservationService) List(ctx context.Context) ([]*model.Reservation, error) {
	list, err := s.reservations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("список бронирований: %w", err)
	}
	return list, nil
}

// ListForUser возвращает бронирования пользователя, новые первыми.
func (s *ReservationService) ListForUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("список бронирований пользователя: %w", err)
	}
	return list, nil
}

// Get возвращает бронирование. Доступно владельцу и администратору.
func (s *ReservationService) Get(ctx context.Context, id int64, req Requester) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("получение бронирования: %w", err)
	}
	if res.UserID != req.UserID && !req.IsAdmin {
		return nil, ErrNotAuthorized
	}
	return res, nil
}

// SetStatus изменяет статус бронирования на любой допустимый.
// Переходы между статусами не ограничены.
func (s *ReservationService) SetStatus(ctx context.Context, id int64, status model.ReservationStatus) (*model.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.reservations.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("смена статуса бронирования: %w", err)
	}

	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение бронирования после смены статуса: %w", err)
	}

	reservationStatusTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("Статус бронирования изменён",
		slog.Int64("reservation_id", id),
		slog.String("status", string(status)),
	)
	return res, nil
}

// Delete удаляет бронирование. Доступно владельцу и администратору.
func (s *ReservationService) Delete(ctx context.Context, id int64, req Requester) error {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("получение бронирования: %w", err)
	}
	if res.UserID != req.UserID && !req.IsAdmin {
		return ErrNotAuthorized
	}

	if err := s.reservations.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		return fmt.Errorf("удаление бронирования: %w", err)
	}

	s.logger.Info("Бронирование удалено",
		slog.Int64("reservation_id", id),
		slog.String("user_id", req.UserID),
	)
	return nil
}
