package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/arturkryukov/carrental/internal/api/errors"
	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/rsclient"
)

// Handler — обработчики B2B API.
type Handler struct {
	rs     *rsclient.Client
	logger *slog.Logger
}

// NewHandler создаёт обработчики B2B API.
func NewHandler(rs *rsclient.Client, logger *slog.Logger) *Handler {
	return &Handler{
		rs:     rs,
		logger: logger.With(slog.String("component", "b2b_handler")),
	}
}

// ListCars проксирует каталог автомобилей.
// GET /api/b2b/v1/cars
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	cars, err := h.rs.ListCars(r.Context(), caller.RawToken)
	if err != nil {
		h.upstreamError(w, "получение каталога автомобилей", err)
		return
	}
	if cars == nil {
		cars = []*model.Car{}
	}
	writeJSON(w, http.StatusOK, cars)
}

// ListAvailableCars проксирует список доступных автомобилей.
// GET /api/b2b/v1/cars/available
func (h *Handler) ListAvailableCars(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	cars, err := h.rs.ListAvailableCars(r.Context(), caller.RawToken)
	if err != nil {
		h.upstreamError(w, "получение доступных автомобилей", err)
		return
	}
	if cars == nil {
		cars = []*model.Car{}
	}
	writeJSON(w, http.StatusOK, cars)
}

// b2bReservationRequest — тело запроса партнёрского бронирования.
// employeeId и companyReference — сопроводительные поля партнёра,
// в Resource Server не передаются.
type b2bReservationRequest struct {
	EmployeeID       string          `json:"employeeId"`
	CarID            json.RawMessage `json:"carId"`
	StartDate        string          `json:"startDate"`
	EndDate          string          `json:"endDate"`
	CompanyReference string          `json:"companyReference"`
}

// validate проверяет поля запроса. Возвращает carId и карту ошибок по полям.
func (req *b2bReservationRequest) validate() (int64, map[string]string) {
	fields := make(map[string]string)

	if req.EmployeeID == "" {
		fields["employeeId"] = "обязательное поле"
	}
	if req.CompanyReference == "" {
		fields["companyReference"] = "обязательное поле"
	}

	// carId должен быть целым числом JSON, не строкой и не дробью.
	var carID int64
	if len(req.CarID) == 0 {
		fields["carId"] = "обязательное поле"
	} else if err := json.Unmarshal(req.CarID, &carID); err != nil || carID <= 0 {
		fields["carId"] = "должен быть положительным целым числом"
	}

	start, startErr := time.Parse(time.RFC3339, req.StartDate)
	if req.StartDate == "" {
		fields["startDate"] = "обязательное поле"
	} else if startErr != nil {
		fields["startDate"] = "дата должна быть в формате ISO-8601"
	}

	end, endErr := time.Parse(time.RFC3339, req.EndDate)
	if req.EndDate == "" {
		fields["endDate"] = "обязательное поле"
	} else if endErr != nil {
		fields["endDate"] = "дата должна быть в формате ISO-8601"
	} else if startErr == nil && req.StartDate != "" && !end.After(start) {
		fields["endDate"] = "дата окончания должна быть позже даты начала"
	}

	if len(fields) > 0 {
		return 0, fields
	}
	return carID, nil
}

// CreateReservation валидирует партнёрский запрос и пересылает его
// в Resource Server с токеном вызывающего. Ответ 201 передаётся как есть.
// POST /api/b2b/v1/reservations
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req b2bReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	carID, fields := req.validate()
	if fields != nil {
		apierrors.ValidationErrorFields(w, "некорректные данные бронирования", fields)
		return
	}

	created, err := h.rs.CreateReservation(r.Context(), caller.RawToken, &rsclient.ReservationRequest{
		CarID:     carID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.upstreamError(w, "создание бронирования", err)
		return
	}

	h.logger.Info("Партнёрское бронирование создано",
		slog.Int64("reservation_id", created.ID),
		slog.String("employee_id", req.EmployeeID),
		slog.String("company_reference", req.CompanyReference),
		slog.String("caller", caller.Username),
	)
	writeJSON(w, http.StatusCreated, created)
}

// MonthlyReport — агрегат бронирований за месяц.
type MonthlyReport struct {
	Month             int     `json:"month"`
	Year              int     `json:"year"`
	TotalReservations int     `json:"totalReservations"`
	TotalCost         float64 `json:"totalCost"`
	// ReservationsByModel — количество бронирований на модель автомобиля.
	ReservationsByModel map[string]int `json:"reservationsByModel"`
}

// GetMonthlyReport строит отчёт по бронированиям за месяц.
// Фильтр по месяцу и году даты начала аренды.
// GET /api/b2b/v1/reports/monthly?month=&year=
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		apierrors.ValidationErrorFields(w, "некорректные параметры отчёта", map[string]string{
			"month": "должен быть числом от 1 до 12",
		})
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		apierrors.ValidationErrorFields(w, "некорректные параметры отчёта", map[string]string{
			"year": "должен быть числом от 2000 до 2100",
		})
		return
	}

	reservations, err := h.rs.ListReservations(r.Context(), caller.RawToken)
	if err != nil {
		h.upstreamError(w, "получение бронирований", err)
		return
	}

	report := MonthlyReport{
		Month:               month,
		Year:                year,
		ReservationsByModel: make(map[string]int),
	}
	for _, res := range reservations {
		if int(res.StartDate.Month()) != month || res.StartDate.Year() != year {
			continue
		}
		report.TotalReservations++
		report.TotalCost += res.TotalPrice

		modelName := "unknown"
		if res.Car != nil {
			modelName = res.Car.Brand + " " + res.Car.Model
		}
		report.ReservationsByModel[modelName]++
	}

	writeJSON(w, http.StatusOK, report)
}

// upstreamError транслирует ошибку Resource Server вызывающему.
// Ответы со статусом передаются как есть, сетевые ошибки — 502.
func (h *Handler) upstreamError(w http.ResponseWriter, action string, err error) {
	if se, ok := rsclient.AsStatusError(err); ok {
		h.logger.Warn("Resource Server вернул ошибку",
			slog.String("action", action),
			slog.Int("status", se.StatusCode),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(se.StatusCode)
		w.Write(se.Body)
		return
	}

	h.logger.Error("Resource Server недоступен",
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
	apierrors.RSUnavailable(w, "Resource Server временно недоступен")
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
