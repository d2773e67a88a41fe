package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arturkryukov/carrental/internal/domain/model"
)

// CarRepository — интерфейс CRUD для таблицы cars.
type CarRepository interface {
	// Create добавляет автомобиль в автопарк.
	Create(ctx context.Context, car *model.Car) error
	// GetByID возвращает автомобиль по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.Car, error)
	// List возвращает все автомобили автопарка.
	List(ctx context.Context) ([]*model.Car, error)
	// ListAvailable возвращает только доступные для бронирования автомобили.
	ListAvailable(ctx context.Context) ([]*model.Car, error)
	// Update обновляет данные автомобиля.
	Update(ctx context.Context, car *model.Car) error
	// Delete удаляет автомобиль из автопарка.
	Delete(ctx context.Context, id int64) error
}

// carRepo — реализация CarRepository.
type carRepo struct {
	db DBTX
}

// NewCarRepository создаёт репозиторий автомобилей.
func NewCarRepository(db DBTX) CarRepository {
	return &carRepo{db: db}
}

func (r *carRepo) Create(ctx context.Context, car *model.Car) error {
	query := `
		INSERT INTO cars (brand, model, registration_number, daily_rate, available, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		car.Brand, car.Model, car.RegistrationNumber, car.DailyRate, car.Available, car.ImageURL,
	).Scan(&car.ID, &car.CreatedAt, &car.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: registration_number уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания автомобиля: %w", err)
	}
	return nil
}

func (r *carRepo) GetByID(ctx context.Context, id int64) (*model.Car, error) {
	query := `
		SELECT id, brand, model, registration_number, daily_rate, available, image_url,
			created_at, updated_at
		FROM cars
		WHERE id = $1`

	car := &model.Car{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&car.ID, &car.Brand, &car.Model, &car.RegistrationNumber,
		&car.DailyRate, &car.Available, &car.ImageURL,
		&car.CreatedAt, &car.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения автомобиля: %w", err)
	}
	return car, nil
}

func (r *carRepo) List(ctx context.Context) ([]*model.Car, error) {
	return r.list(ctx, "")
}

func (r *carRepo) ListAvailable(ctx context.Context) ([]*model.Car, error) {
	return r.list(ctx, "WHERE available = TRUE")
}

func (r *carRepo) list(ctx context.Context, where string) ([]*model.Car, error) {
	query := fmt.Sprintf(`
		SELECT id, brand, model, registration_number, daily_rate, available, image_url,
			created_at, updated_at
		FROM cars
		%s
		ORDER BY id`, where)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка автомобилей: %w", err)
	}
	defer rows.Close()

	var result []*model.Car
	for rows.Next() {
		car := &model.Car{}
		if err := rows.Scan(
			&car.ID, &car.Brand, &car.Model, &car.RegistrationNumber,
			&car.DailyRate, &car.Available, &car.ImageURL,
			&car.CreatedAt, &car.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования автомобиля: %w", err)
		}
		result = append(result, car)
	}
	return result, rows.Err()
}

func (r *carRepo) Update(ctx context.Context, car *model.Car) error {
	query := `
		UPDATE cars
		SET brand = $2, model = $3, registration_number = $4,
			daily_rate = $5, available = $6, image_url = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		car.ID, car.Brand, car.Model, car.RegistrationNumber,
		car.DailyRate, car.Available, car.ImageURL,
	).Scan(&car.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: registration_number уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления автомобиля: %w", err)
	}
	return nil
}

func (r *carRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: у автомобиля есть бронирования", ErrReferenced)
		}
		return fmt.Errorf("ошибка удаления автомобиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
