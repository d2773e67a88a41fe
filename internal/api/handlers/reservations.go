// reservations.go — REST-обработчики бронирований.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/arturkryukov/carrental/internal/api/errors"
	"github.com/arturkryukov/carrental/internal/api/middleware"
	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/service"
)

// ReservationsHandler — обработчик endpoints /api/reservations.
type ReservationsHandler struct {
	reservations *service.ReservationService
	logger       *slog.Logger
}

// NewReservationsHandler создаёт обработчик бронирований.
func NewReservationsHandler(reservations *service.ReservationService, logger *slog.Logger) *ReservationsHandler {
	return &ReservationsHandler{
		reservations: reservations,
		logger:       logger.With(slog.String("component", "reservations_handler")),
	}
}

// reservationRequest — тело запроса создания бронирования.
// totalPrice клиента игнорируется: стоимость всегда считается на сервере.
type reservationRequest struct {
	CarID     int64     `json:"carId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// validate проверяет обязательные поля запроса.
func (req *reservationRequest) validate() map[string]string {
	fields := make(map[string]string)
	if req.CarID <= 0 {
		fields["carId"] = "обязательное поле"
	}
	if req.StartDate.IsZero() {
		fields["startDate"] = "обязательное поле"
	}
	if req.EndDate.IsZero() {
		fields["endDate"] = "обязательное поле"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// statusRequest — тело запроса смены статуса.
type statusRequest struct {
	Status string `json:"status"`
}

// List — GET /api/reservations. Все бронирования с данными автомобилей.
func (h *ReservationsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.reservations.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка бронирований", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения списка бронирований")
		return
	}
	if list == nil {
		list = []*model.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMy — GET /api/reservations/my. Бронирования вызывающего, новые первыми.
func (h *ReservationsHandler) ListMy(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	list, err := h.reservations.ListForUser(r.Context(), claims.Subject)
	if err != nil {
		h.logger.Error("Ошибка получения бронирований пользователя", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения бронирований")
		return
	}
	if list == nil {
		list = []*model.Reservation{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create — POST /api/reservations. Создание со статусом PENDING,
// владелец — subject токена, стоимость считается на сервере.
func (h *ReservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}
	if fields := req.validate(); fields != nil {
		apierrors.ValidationErrorFields(w, "Ошибка валидации", fields)
		return
	}

	res, err := h.reservations.Create(r.Context(), claims.Subject, req.CarID, req.StartDate, req.EndDate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCarNotFound):
			apierrors.NotFound(w, "Автомобиль не найден")
		case errors.Is(err, service.ErrInvalidDateRange):
			apierrors.ValidationErrorFields(w, "Ошибка валидации", map[string]string{
				"endDate": "должна быть позже startDate",
			})
		default:
			h.logger.Error("Ошибка создания бронирования", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка создания бронирования")
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// UpdateStatus — PUT /api/reservations/{id}/status. Переход в любой
// допустимый статус без ограничений на порядок переходов.
func (h *ReservationsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	res, err := h.reservations.SetStatus(r.Context(), id, model.ReservationStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			apierrors.ValidationErrorFields(w, "Ошибка валидации", map[string]string{
				"status": "допустимые значения: PENDING, CONFIRMED, CANCELLED, COMPLETED",
			})
		case errors.Is(err, service.ErrReservationNotFound):
			apierrors.NotFound(w, "Бронирование не найдено")
		default:
			h.logger.Error("Ошибка смены статуса бронирования", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка смены статуса бронирования")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Delete — DELETE /api/reservations/{id}. Только владелец или администратор.
func (h *ReservationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	req := service.Requester{UserID: claims.Subject, IsAdmin: claims.IsAdmin}
	if err := h.reservations.Delete(r.Context(), id, req); err != nil {
		switch {
		case errors.Is(err, service.ErrReservationNotFound):
			apierrors.NotFound(w, "Бронирование не найдено")
		case errors.Is(err, service.ErrNotAuthorized):
			apierrors.Forbidden(w, "Удаление доступно владельцу или администратору")
		default:
			h.logger.Error("Ошибка удаления бронирования", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Ошибка удаления бронирования")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
