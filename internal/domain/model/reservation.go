package model

import "time"

// ReservationStatus — статус резервации (строковый enum, UPPERCASE).
type ReservationStatus string

// Статусы резервации.
// COMPLETED выставляется внешним процессом, переход в него здесь не моделируется.
const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusCompleted ReservationStatus = "COMPLETED"
)

// Valid проверяет, является ли значение допустимым статусом.
// Сравнение регистрозависимое: API принимает только UPPERCASE значения.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Reservation — резервация автомобиля.
// Владелец (UserID) — sub из токена создавшего её пользователя.
// StartDate, EndDate и TotalPrice после создания не изменяются:
// операции переноса резервации не существует.
type Reservation struct {
	ID int64 `json:"id"`
	// CarID — ссылка на автомобиль.
	CarID int64 `json:"carId"`
	// UserID — sub владельца из токена.
	UserID string `json:"userId"`
	// StartDate — начало аренды.
	StartDate time.Time `json:"startDate"`
	// EndDate — конец аренды (строго позже StartDate).
	EndDate time.Time `json:"endDate"`
	// TotalPrice — итоговая стоимость, вычисляется на сервере (pricing).
	TotalPrice float64 `json:"totalPrice"`
	// Status — текущий статус.
	Status ReservationStatus `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Car — вложенные данные автомобиля (заполняется при выборке с JOIN).
	Car *CarSummary `json:"car,omitempty"`
}
