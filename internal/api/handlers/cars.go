// cars.go — REST-обработчики каталога автомобилей.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/arturkryukov/carrental/internal/api/errors"
	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/service"
)

// CarsHandler — обработчик endpoints /api/cars.
type CarsHandler struct {
	cars   *service.CarService
	logger *slog.Logger
}

// NewCarsHandler создаёт обработчик каталога автомобилей.
func NewCarsHandler(cars *service.CarService, logger *slog.Logger) *CarsHandler {
	return &CarsHandler{
		cars:   cars,
		logger: logger.With(slog.String("component", "cars_handler")),
	}
}

// carRequest — тело запроса создания/обновления автомобиля.
type carRequest struct {
	Brand              string  `json:"brand"`
	Model              string  `json:"model"`
	RegistrationNumber string  `json:"registrationNumber"`
	DailyRate          float64 `json:"dailyRate"`
	Available          *bool   `json:"available"`
	ImageURL           *string `json:"imageUrl"`
}

// validate проверяет обязательные поля. Возвращает карту поле → сообщение.
func (req *carRequest) validate() map[string]string {
	fields := make(map[string]string)
	if req.Brand == "" {
		fields["brand"] = "обязательное поле"
	}
	if req.Model == "" {
		fields["model"] = "обязательное поле"
	}
	if req.RegistrationNumber == "" {
		fields["registrationNumber"] = "обязательное поле"
	}
	if req.DailyRate < 0 {
		fields["dailyRate"] = "не может быть отрицательной"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// toModel преобразует запрос в доменную модель.
func (req *carRequest) toModel() *model.Car {
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return &model.Car{
		Brand:              req.Brand,
		Model:              req.Model,
		RegistrationNumber: req.RegistrationNumber,
		DailyRate:          req.DailyRate,
		Available:          available,
		ImageURL:           req.ImageURL,
	}
}

// List — GET /api/cars. Публичный список автомобилей.
func (h *CarsHandler) List(w http.ResponseWriter, r *http.Request) {
	cars, err := h.cars.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка автомобилей", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения списка автомобилей")
		return
	}
	if cars == nil {
		cars = []*model.Car{}
	}
	writeJSON(w, http.StatusOK, cars)
}

// ListAvailable — GET /api/cars/available. Публичный список автомобилей,
// доступных для бронирования (фильтр на стороне БД).
func (h *CarsHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	cars, err := h.cars.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка доступных автомобилей", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения списка доступных автомобилей")
		return
	}
	if cars == nil {
		cars = []*model.Car{}
	}
	writeJSON(w, http.StatusOK, cars)
}

// Get — GET /api/cars/{id}. Публичная карточка автомобиля.
func (h *CarsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	car, err := h.cars.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCarNotFound) {
			apierrors.NotFound(w, "Автомобиль не найден")
			return
		}
		h.logger.Error("Ошибка получения автомобиля", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения автомобиля")
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// Create — POST /api/cars. Требует аутентификации.
func (h *CarsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if fields := req.validate(); fields != nil {
		apierrors.ValidationErrorFields(w, "Ошибка валидации", fields)
		return
	}

	car := req.toModel()
	if err := h.cars.Create(r.Context(), car); err != nil {
		if errors.Is(err, service.ErrDuplicateRegistration) {
			apierrors.ValidationErrorFields(w, "Ошибка валидации", map[string]string{
				"registrationNumber": "уже зарегистрирован",
			})
			return
		}
		h.logger.Error("Ошибка создания автомобиля", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка создания автомобиля")
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

// Update — PUT /api/cars/{id}. Полное обновление, требует аутентификации.
func (h *CarsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req carRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if fields := req.validate(); fields != nil {
		apierrors.ValidationErrorFields(w, "Ошибка валидации", fields)
		return
	}

	car := req.toModel()
	car.ID = id
	if err := h.cars.Update(r.Context(), car); err != nil {
		switch {
		case errors.Is(err, service.ErrCarNotFound):
			apierrors.NotFound(w, "Автомобиль не найден")
		case errors.Is(err, service.ErrDuplicateRegistration):
			apierrors.ValidationErrorFields(w, "Ошибка валидации", map[string]string{
				"registrationNumber": "уже зарегистрирован",
			})
		default:
			h.logger.Error("Ошибка обновления автомобиля", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка обновления автомобиля")
		}
		return
	}
	writeJSON(w, http.StatusOK, car)
}

// Delete — DELETE /api/cars/{id}. Требует аутентификации.
func (h *CarsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.cars.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrCarNotFound):
			apierrors.NotFound(w, "Автомобиль не найден")
		case errors.Is(err, service.ErrCarHasReservations):
			apierrors.Conflict(w, "У автомобиля есть бронирования")
		default:
			h.logger.Error("Ошибка удаления автомобиля", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка удаления автомобиля")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// idParam извлекает и валидирует параметр {id} из пути.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, "Некорректный идентификатор")
		return 0, false
	}
	return id, true
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
