package pricing

import (
	"errors"
	"testing"
	"time"
)

// date — вспомогательная функция для дат в тестах.
func date(day, hour int) time.Time {
	return time.Date(2026, 9, day, hour, 0, 0, 0, time.UTC)
}

// TestDays проверяет расчёт оплачиваемых суток с округлением вверх.
func TestDays(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{"ровно сутки", date(1, 10), date(2, 10), 1},
		{"ровно двое суток", date(1, 10), date(3, 10), 2},
		{"неполные сутки округляются вверх", date(1, 10), date(1, 16), 1},
		{"сутки с хвостом", date(1, 10), date(2, 11), 2},
		{"час аренды", date(1, 10), date(1, 11), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := Days(tt.start, tt.end)
			if err != nil {
				t.Fatalf("Ошибка Days: %v", err)
			}
			if days != tt.expected {
				t.Errorf("ожидалось %d суток, получено %d", tt.expected, days)
			}
		})
	}
}

// TestDays_InvalidRange проверяет отклонение пустого и обратного диапазона.
func TestDays_InvalidRange(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"нулевой диапазон", date(1, 10), date(1, 10)},
		{"конец раньше начала", date(3, 10), date(1, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Days(tt.start, tt.end)
			if !errors.Is(err, ErrInvalidDateRange) {
				t.Errorf("ожидалась ErrInvalidDateRange, получена %v", err)
			}
		})
	}
}

// TestTotal проверяет расчёт стоимости с округлением до копеек.
func TestTotal(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		start    time.Time
		end      time.Time
		expected float64
	}{
		{"двое суток по 50", 50.00, date(1, 10), date(3, 10), 100.00},
		{"неполные сутки по 33.33", 33.33, date(1, 10), date(1, 16), 33.33},
		{"трое суток по 33.33", 33.33, date(1, 10), date(4, 10), 99.99},
		{"округление до копеек", 45.678, date(1, 10), date(2, 10), 45.68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := Total(tt.rate, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Ошибка Total: %v", err)
			}
			if total != tt.expected {
				t.Errorf("ожидалось %.2f, получено %.2f", tt.expected, total)
			}
		})
	}
}

// TestTotal_InvalidRange проверяет проброс ошибки диапазона.
func TestTotal_InvalidRange(t *testing.T) {
	_, err := Total(50.00, date(3, 10), date(1, 10))
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("ожидалась ErrInvalidDateRange, получена %v", err)
	}
}

// TestRound2 проверяет округление half away from zero.
func TestRound2(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{1.004, 1.00},
		{1.006, 1.01},
		{-1.006, -1.01},
		{45.678, 45.68},
		{99.999, 100.00},
	}

	for _, tt := range tests {
		if got := Round2(tt.input); got != tt.expected {
			t.Errorf("Round2(%v): ожидалось %v, получено %v", tt.input, tt.expected, got)
		}
	}
}
