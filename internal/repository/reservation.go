package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/carrental/internal/domain/model"
)

// ReservationRepository — интерфейс CRUD для таблицы reservations.
// Выборки присоединяют краткие данные автомобиля (JOIN cars).
type ReservationRepository interface {
	// Create создаёт бронирование.
	Create(ctx context.Context, res *model.Reservation) error
	// GetByID возвращает бронирование по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	// List возвращает все бронирования.
	List(ctx context.Context) ([]*model.Reservation, error)
	// ListByUser возвращает бронирования пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error)
	// UpdateStatus изменяет статус бронирования.
	UpdateStatus(ctx context.Context, id int64, status model.ReservationStatus) error
	// Delete удаляет бронирование.
	Delete(ctx context.Context, id int64) error
}

// reservationRepo — реализация ReservationRepository.
type reservationRepo struct {
	db DBTX
}

// NewReservationRepository создаёт репозиторий бронирований.
func NewReservationRepository(db DBTX) ReservationRepository {
	return &reservationRepo{db: db}
}

// selectWithCar — базовый SELECT бронирования с данными автомобиля.
const selectWithCar = `
	SELECT r.id, r.car_id, r.user_id, r.start_date, r.end_date,
		r.total_price, r.status, r.created_at, r.updated_at,
		c.brand, c.model, c.registration_number, c.daily_rate
	FROM reservations r
	JOIN cars c ON c.id = r.car_id`

func (r *reservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	query := `
		INSERT INTO reservations (car_id, user_id, start_date, end_date, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		res.CarID, res.UserID, res.StartDate, res.EndDate, res.TotalPrice, res.Status,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: автомобиль не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка создания бронирования: %w", err)
	}
	return nil
}

func (r *reservationRepo) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	res := &model.Reservation{}
	car := &model.CarSummary{}
	err := r.db.QueryRow(ctx, selectWithCar+` WHERE r.id = $1`, id).Scan(
		&res.ID, &res.CarID, &res.UserID, &res.StartDate, &res.EndDate,
		&res.TotalPrice, &res.Status, &res.CreatedAt, &res.UpdatedAt,
		&car.Brand, &car.Model, &car.RegistrationNumber, &car.DailyRate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения бронирования: %w", err)
	}
	res.Car = car
	return res, nil
}

func (r *reservationRepo) List(ctx context.Context) ([]*model.Reservation, error) {
	return r.list(ctx, selectWithCar+` ORDER BY r.created_at DESC`)
}

func (r *reservationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	return r.list(ctx, selectWithCar+` WHERE r.user_id = $1 ORDER BY r.created_at DESC`, userID)
}

func (r *reservationRepo) list(ctx context.Context, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка бронирований: %w", err)
	}
	defer rows.Close()

	var result []*model.Reservation
	for rows.Next() {
		res := &model.Reservation{}
		car := &model.CarSummary{}
		if err := rows.Scan(
			&res.ID, &res.CarID, &res.UserID, &res.StartDate, &res.EndDate,
			&res.TotalPrice, &res.Status, &res.CreatedAt, &res.UpdatedAt,
			&car.Brand, &car.Model, &car.RegistrationNumber, &car.DailyRate,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования бронирования: %w", err)
		}
		res.Car = car
		result = append(result, res)
	}
	return result, rows.Err()
}

func (r *reservationRepo) UpdateStatus(ctx context.Context, id int64, status model.ReservationStatus) error {
	query := `
		UPDATE reservations
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, id, status).Scan(&updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления статуса бронирования: %w", err)
	}
	return nil
}

func (r *reservationRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления бронирования: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
