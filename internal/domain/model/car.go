// Пакет model — доменные модели Car Rental.
package model

import "time"

// Car — автомобиль в каталоге проката.
type Car struct {
	// ID — суррогатный идентификатор, присваивается при создании.
	ID int64 `json:"id"`
	// Brand — марка автомобиля.
	Brand string `json:"brand"`
	// Model — модель автомобиля.
	Model string `json:"model"`
	// RegistrationNumber — регистрационный номер (уникальный).
	RegistrationNumber string `json:"registrationNumber"`
	// DailyRate — стоимость аренды за сутки (неотрицательная, 2 знака).
	DailyRate float64 `json:"dailyRate"`
	// Available — доступен ли автомобиль для бронирования.
	Available bool `json:"available"`
	// ImageURL — ссылка на изображение (опционально).
	ImageURL *string `json:"imageUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CarSummary — сокращённые данные автомобиля для вложения в резервацию.
type CarSummary struct {
	Brand              string  `json:"brand"`
	Model              string  `json:"model"`
	RegistrationNumber string  `json:"registrationNumber"`
	DailyRate          float64 `json:"dailyRate"`
}

// Summary возвращает сокращённое представление автомобиля.
func (c *Car) Summary() CarSummary {
	return CarSummary{
		Brand:              c.Brand,
		Model:              c.Model,
		RegistrationNumber: c.RegistrationNumber,
		DailyRate:          c.DailyRate,
	}
}
