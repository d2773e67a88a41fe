// Пакет pricing — детерминированный расчёт стоимости резервации.
// Расчёт авторитетен: цена, присланная клиентом, всегда игнорируется
// и пересчитывается на сервере (защита от подмены цены).
package pricing

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDateRange — конец не позже начала (days <= 0).
var ErrInvalidDateRange = errors.New("конец аренды должен быть позже начала")

// day — расчётные сутки аренды.
const day = 24 * time.Hour

// Days возвращает количество оплачиваемых суток: ceil((end-start)/24h).
// Неполные сутки округляются вверх. Ошибка при days <= 0.
func Days(start, end time.Time) (int, error) {
	days := int(math.Ceil(end.Sub(start).Hours() / day.Hours()))
	if days <= 0 {
		return 0, ErrInvalidDateRange
	}
	return days, nil
}

// Total вычисляет итоговую стоимость: round(dailyRate * days, 2 знака).
// Чистая, идемпотентная функция.
func Total(dailyRate float64, start, end time.Time) (float64, error) {
	days, err := Days(start, end)
	if err != nil {
		return 0, err
	}
	return Round2(dailyRate * float64(days)), nil
}

// Round2 округляет до двух десятичных знаков (half away from zero).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
