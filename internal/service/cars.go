// cars.go — сервис управления автопарком.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/repository"
)

// Prometheus-метрики автопарка.
var (
	carsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rs_cars_created_total",
		Help: "Общее количество добавленных автомобилей.",
	})
	carsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rs_cars_deleted_total",
		Help: "Общее количество удалённых автомобилей.",
	})
)

// CarService — сервис управления автомобилями автопарка.
type CarService struct {
	cars   repository.CarRepository
	logger *slog.Logger
}

// NewCarService создаёт сервис автопарка.
func NewCarService(cars repository.CarRepository, logger *slog.Logger) *CarService {
	return &CarService{
		cars:   cars,
		logger: logger.With(slog.String("component", "car_service")),
	}
}

// List возвращает все автомобили автопарка.
func (s *CarService) List(ctx context.Context) ([]*model.Car, error) {
	cars, err := s.cars.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("список автомобилей: %w", err)
	}
	return cars, nil
}

// ListAvailable возвращает автомобили, доступные для бронирования.
func (s *CarService) ListAvailable(ctx context.Context) ([]*model.Car, error) {
	cars, err := s.cars.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("список доступных автомобилей: %w", err)
	}
	return cars, nil
}

// Get возвращает автомобиль по идентификатору.
func (s *CarService) Get(ctx context.Context, id int64) (*model.Car, error) {
	car, err := s.cars.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("получение автомобиля: %w", err)
	}
	return car, nil
}

// Create добавляет автомобиль в автопарк.
func (s *CarService) Create(ctx context.Context, car *model.Car) error {
	if err := s.cars.Create(ctx, car); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("создание автомобиля: %w", err)
	}

	carsCreatedTotal.Inc()
	s.logger.Info("Автомобиль добавлен в автопарк",
		slog.Int64("car_id", car.ID),
		slog.String("registration_number", car.RegistrationNumber),
	)
	return nil
}

// Update обновляет данные автомобиля.
func (s *CarService) Update(ctx context.Context, car *model.Car) error {
	if err := s.cars.Update(ctx, car); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCarNotFound
		}
		if errors.Is(err, repository.ErrConflict) {
			return ErrDuplicateRegistration
		}
		return fmt.Errorf("обновление автомобиля: %w", err)
	}

	s.logger.Info("Автомобиль обновлён", slog.Int64("car_id", car.ID))
	return nil
}

// Delete удаляет автомобиль из автопарка.
// Автомобиль с бронированиями удалить нельзя (FK без каскада).
func (s *CarService) Delete(ctx context.Context, id int64) error {
	if err := s.cars.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCarNotFound
		}
		if errors.Is(err, repository.ErrReferenced) {
			return ErrCarHasReservations
		}
		return fmt.Errorf("удаление автомобиля: %w", err)
	}

	carsDeletedTotal.Inc()
	s.logger.Info("Автомобиль удалён из автопарка", slog.Int64("car_id", id))
	return nil
}
