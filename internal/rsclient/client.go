// Пакет rsclient — HTTP-клиент Resource Server для B2B Gateway и
// Admin Panel. Токен вызывающего передаётся насквозь в Authorization.
// Поддерживает TLS с кастомным CA.
package rsclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/arturkryukov/carrental/internal/domain/model"
)

// StatusError — ошибка с HTTP-статусом и телом ответа Resource Server.
// Позволяет вызывающему пробросить статус и тело дальше.
type StatusError struct {
	// StatusCode — HTTP-статус ответа.
	StatusCode int
	// Body — тело ответа (обычно JSON error envelope).
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resource server вернул статус %d: %s", e.StatusCode, string(e.Body))
}

// AsStatusError извлекает StatusError из цепочки ошибок.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Client — HTTP-клиент Resource Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент Resource Server.
// baseURL — адрес Resource Server (без trailing slash).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
func New(baseURL, caCertPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата Resource Server: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат Resource Server добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "rs_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// do выполняет запрос к Resource Server и декодирует JSON-ответ в out.
// token добавляется в Authorization как есть (Bearer вызывающего).
// Статусы вне wantStatus возвращаются как *StatusError.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any, wantStatus int) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("кодирование тела запроса: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("декодирование ответа %s %s: %w", method, path, err)
		}
	}
	return nil
}

// --- Автомобили ---

// ListCars возвращает каталог автомобилей. Публичный endpoint, token опционален.
func (c *Client) ListCars(ctx context.Context, token string) ([]*model.Car, error) {
	var cars []*model.Car
	if err := c.do(ctx, http.MethodGet, "/api/cars", token, nil, &cars, http.StatusOK); err != nil {
		return nil, err
	}
	return cars, nil
}

// ListAvailableCars возвращает автомобили, доступные для бронирования.
func (c *Client) ListAvailableCars(ctx context.Context, token string) ([]*model.Car, error) {
	var cars []*model.Car
	if err := c.do(ctx, http.MethodGet, "/api/cars/available", token, nil, &cars, http.StatusOK); err != nil {
		return nil, err
	}
	return cars, nil
}

// GetCar возвращает автомобиль по идентификатору.
func (c *Client) GetCar(ctx context.Context, token string, id int64) (*model.Car, error) {
	car := &model.Car{}
	path := fmt.Sprintf("/api/cars/%d", id)
	if err := c.do(ctx, http.MethodGet, path, token, nil, car, http.StatusOK); err != nil {
		return nil, err
	}
	return car, nil
}

// CreateCar создаёт автомобиль от имени вызывающего.
func (c *Client) CreateCar(ctx context.Context, token string, car *model.Car) (*model.Car, error) {
	created := &model.Car{}
	if err := c.do(ctx, http.MethodPost, "/api/cars", token, car, created, http.StatusCreated); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateCar полностью обновляет автомобиль.
func (c *Client) UpdateCar(ctx context.Context, token string, car *model.Car) (*model.Car, error) {
	updated := &model.Car{}
	path := fmt.Sprintf("/api/cars/%d", car.ID)
	if err := c.do(ctx, http.MethodPut, path, token, car, updated, http.StatusOK); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCar удаляет автомобиль.
func (c *Client) DeleteCar(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/api/cars/%d", id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil, http.StatusNoContent)
}

// --- Бронирования ---

// ReservationRequest — тело запроса создания бронирования.
type ReservationRequest struct {
	CarID     int64  `json:"carId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ListReservations возвращает все бронирования вызывающего контекста.
func (c *Client) ListReservations(ctx context.Context, token string) ([]*model.Reservation, error) {
	var list []*model.Reservation
	if err := c.do(ctx, http.MethodGet, "/api/reservations", token, nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateReservation создаёт бронирование от имени вызывающего.
func (c *Client) CreateReservation(ctx context.Context, token string, req *ReservationRequest) (*model.Reservation, error) {
	created := &model.Reservation{}
	if err := c.do(ctx, http.MethodPost, "/api/reservations", token, req, created, http.StatusCreated); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateReservationStatus изменяет статус бронирования.
func (c *Client) UpdateReservationStatus(ctx context.Context, token string, id int64, status string) (*model.Reservation, error) {
	updated := &model.Reservation{}
	path := fmt.Sprintf("/api/reservations/%d/status", id)
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPut, path, token, body, updated, http.StatusOK); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteReservation удаляет бронирование.
func (c *Client) DeleteReservation(ctx context.Context, token string, id int64) error {
	path := fmt.Sprintf("/api/reservations/%d", id)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil, http.StatusNoContent)
}

// CheckReady — проверка доступности Resource Server для readiness probe.
// Опрашивает liveness endpoint Resource Server.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.do(ctx, http.MethodGet, "/health/live", "", nil, nil, http.StatusOK); err != nil {
		return "fail", fmt.Sprintf("resource server недоступен: %v", err)
	}
	return "ok", ""
}
