// Пакет service — бизнес-логика проката: автопарк и бронирования.
// Координирует repository, расчёт стоимости и Prometheus-метрики.
package service

import "errors"

// Ошибки сервисного слоя.
var (
	// ErrCarNotFound — автомобиль не найден.
	ErrCarNotFound = errors.New("автомобиль не найден")
	// ErrReservationNotFound — бронирование не найдено.
	ErrReservationNotFound = errors.New("бронирование не найдено")
	// ErrDuplicateRegistration — регистрационный номер уже занят.
	ErrDuplicateRegistration = errors.New("регистрационный номер уже зарегистрирован")
	// ErrCarHasReservations — у автомобиля есть бронирования, удаление запрещено.
	ErrCarHasReservations = errors.New("у автомобиля есть бронирования")
	// ErrInvalidStatus — недопустимый статус бронирования.
	ErrInvalidStatus = errors.New("недопустимый статус бронирования")
	// ErrNotAuthorized — операция доступна только владельцу или администратору.
	ErrNotAuthorized = errors.New("операция не разрешена для этого пользователя")
)
