package rsclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/arturkryukov/carrental/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockRS создаёт mock HTTP-сервер Resource Server.
func setupMockRS(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newTestClient создаёт клиент к mock-серверу.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(baseURL, "", 5*time.Second, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// TestClient_ListCars проверяет ListCars (GET /api/cars).
func TestClient_ListCars(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cars" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Каталог публичный, token опционален
		if r.Header.Get("Authorization") != "" {
			t.Error("ListCars без токена не должен передавать Authorization header")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]*model.Car{
			{ID: 1, Brand: "Toyota", Model: "Corolla", RegistrationNumber: "А001АА77", DailyRate: 55.00, Available: true},
			{ID: 2, Brand: "BMW", Model: "X5", RegistrationNumber: "В002ВВ77", DailyRate: 120.00, Available: false},
		})
	})

	client := newTestClient(t, server.URL)

	cars, err := client.ListCars(context.Background(), "")
	if err != nil {
		t.Fatalf("Ошибка ListCars: %v", err)
	}

	if len(cars) != 2 {
		t.Fatalf("ожидалось 2 автомобиля, получено %d", len(cars))
	}
	if cars[0].Brand != "Toyota" {
		t.Errorf("ожидался Brand=Toyota, получен %s", cars[0].Brand)
	}
	if cars[1].Available {
		t.Error("ожидался Available=false для второго автомобиля")
	}
}

// TestClient_GetCar проверяет GetCar (GET /api/cars/{id}).
func TestClient_GetCar(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cars/7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&model.Car{ID: 7, Brand: "Kia", Model: "Rio", DailyRate: 40.00, Available: true})
	})

	client := newTestClient(t, server.URL)

	car, err := client.GetCar(context.Background(), "", 7)
	if err != nil {
		t.Fatalf("Ошибка GetCar: %v", err)
	}
	if car.ID != 7 {
		t.Errorf("ожидался ID=7, получен %d", car.ID)
	}
	if car.Model != "Rio" {
		t.Errorf("ожидался Model=Rio, получен %s", car.Model)
	}
}

// TestClient_GetCar_NotFound проверяет 404 от Resource Server.
func TestClient_GetCar_NotFound(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"автомобиль не найден"}}`))
	})

	client := newTestClient(t, server.URL)

	_, err := client.GetCar(context.Background(), "", 99)
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}

	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("ожидался StatusError, получен %T", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался StatusCode=404, получен %d", se.StatusCode)
	}
	if len(se.Body) == 0 {
		t.Error("ожидалось непустое тело ошибки")
	}
}

// TestClient_CreateCar проверяет CreateCar с передачей токена.
func TestClient_CreateCar(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cars" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("ожидался Content-Type=application/json, получен %s", ct)
		}

		var car model.Car
		if err := json.NewDecoder(r.Body).Decode(&car); err != nil {
			t.Fatalf("Ошибка декодирования тела: %v", err)
		}
		car.ID = 42

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&car)
	})

	client := newTestClient(t, server.URL)

	created, err := client.CreateCar(context.Background(), "admin-token", &model.Car{
		Brand:              "Lada",
		Model:              "Vesta",
		RegistrationNumber: "С003СС77",
		DailyRate:          25.00,
		Available:          true,
	})
	if err != nil {
		t.Fatalf("Ошибка CreateCar: %v", err)
	}
	if created.ID != 42 {
		t.Errorf("ожидался ID=42, получен %d", created.ID)
	}
	if created.Brand != "Lada" {
		t.Errorf("ожидался Brand=Lada, получен %s", created.Brand)
	}
}

// TestClient_DeleteCar проверяет DeleteCar (204 без тела).
func TestClient_DeleteCar(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/cars/5" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, server.URL)

	if err := client.DeleteCar(context.Background(), "admin-token", 5); err != nil {
		t.Fatalf("Ошибка DeleteCar: %v", err)
	}
}

// TestClient_DeleteCar_Conflict проверяет 409 при активных бронированиях.
func TestClient_DeleteCar_Conflict(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"CONFLICT","message":"автомобиль имеет бронирования"}}`))
	})

	client := newTestClient(t, server.URL)

	err := client.DeleteCar(context.Background(), "admin-token", 5)
	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("ожидался StatusError, получен %v", err)
	}
	if se.StatusCode != http.StatusConflict {
		t.Errorf("ожидался StatusCode=409, получен %d", se.StatusCode)
	}
}

// TestClient_CreateReservation проверяет CreateReservation.
func TestClient_CreateReservation(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/reservations" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req ReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Ошибка декодирования тела: %v", err)
		}
		if req.CarID != 3 {
			t.Errorf("ожидался carId=3, получен %d", req.CarID)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&model.Reservation{
			ID:         11,
			CarID:      req.CarID,
			UserID:     "user-1",
			Status:     model.StatusPending,
			TotalPrice: 110.00,
		})
	})

	client := newTestClient(t, server.URL)

	res, err := client.CreateReservation(context.Background(), "user-token", &ReservationRequest{
		CarID:     3,
		StartDate: "2026-09-01T10:00:00Z",
		EndDate:   "2026-09-03T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("Ошибка CreateReservation: %v", err)
	}
	if res.ID != 11 {
		t.Errorf("ожидался ID=11, получен %d", res.ID)
	}
	if res.Status != model.StatusPending {
		t.Errorf("ожидался Status=PENDING, получен %s", res.Status)
	}
}

// TestClient_UpdateReservationStatus проверяет смену статуса.
func TestClient_UpdateReservationStatus(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/reservations/11/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Ошибка декодирования тела: %v", err)
		}
		if body["status"] != "CONFIRMED" {
			t.Errorf("ожидался status=CONFIRMED, получен %s", body["status"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&model.Reservation{ID: 11, Status: model.StatusConfirmed})
	})

	client := newTestClient(t, server.URL)

	res, err := client.UpdateReservationStatus(context.Background(), "admin-token", 11, "CONFIRMED")
	if err != nil {
		t.Fatalf("Ошибка UpdateReservationStatus: %v", err)
	}
	if res.Status != model.StatusConfirmed {
		t.Errorf("ожидался Status=CONFIRMED, получен %s", res.Status)
	}
}

// TestClient_Unreachable проверяет обработку недоступного Resource Server.
func TestClient_Unreachable(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")

	_, err := client.ListCars(context.Background(), "")
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
	if _, ok := AsStatusError(err); ok {
		t.Error("сетевая ошибка не должна быть StatusError")
	}
}

// TestClient_TrailingSlash проверяет нормализацию базового URL.
func TestClient_TrailingSlash(t *testing.T) {
	server := setupMockRS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cars" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]*model.Car{})
	})

	client := newTestClient(t, server.URL+"/")

	cars, err := client.ListCars(context.Background(), "")
	if err != nil {
		t.Fatalf("Ошибка ListCars: %v", err)
	}
	if len(cars) != 0 {
		t.Errorf("ожидался пустой список, получено %d", len(cars))
	}
}
