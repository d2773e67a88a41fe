// Пакет token — декодирование compact JWT без проверки подписи.
// Используется там, где нужна только инспекция payload (Admin Panel,
// извлечение kid перед верификацией). Для доверенной проверки — пакет verify.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedToken — строка не является корректным compact JWT:
// не три сегмента через точку, либо сегмент не base64/JSON.
var ErrMalformedToken = errors.New("некорректный формат токена")

// Header — декодированный заголовок токена.
type Header struct {
	// Alg — алгоритм подписи (ожидается RS256).
	Alg string `json:"alg"`
	// Kid — идентификатор ключа подписи.
	Kid string `json:"kid"`
	// Typ — тип токена.
	Typ string `json:"typ,omitempty"`
}

// RoleList — список ролей с терпимым парсингом: если claim присутствует,
// но не является массивом строк, он игнорируется (как в исходных токенах
// разных issuer'ов, где форма claim'а различается).
type RoleList []string

// UnmarshalJSON принимает JSON-массив строк; любую другую форму игнорирует.
func (r *RoleList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		*r = nil
		return nil
	}
	*r = list
	return nil
}

// RealmAccess — вложенная структура realm_access.
type RealmAccess struct {
	Roles RoleList `json:"roles"`
}

// ClientAccess — роли одного клиента в resource_access.
type ClientAccess struct {
	Roles RoleList `json:"roles"`
}

// Claims — распознаваемые поля payload токена.
// Payload моделируется фиксированным набором опциональных полей:
// только они когда-либо используются downstream. Claims неизменяемы
// после извлечения из токена.
type Claims struct {
	// Subject — sub, уникальный идентификатор вызывающего.
	Subject string `json:"sub"`
	// PreferredUsername — человекочитаемое имя логина (опционально).
	PreferredUsername string `json:"preferred_username"`
	// ExpiresAt — exp, Unix-секунды.
	ExpiresAt int64 `json:"exp"`
	// DirectRoles — legacy-claim role: плоский список ролей (у части issuer'ов).
	DirectRoles RoleList `json:"role"`
	// RealmAccess — роли уровня realm.
	RealmAccess *RealmAccess `json:"realm_access,omitempty"`
	// ResourceAccess — роли, скоупированные по клиентам.
	ResourceAccess map[string]ClientAccess `json:"resource_access,omitempty"`
}

// Expired сообщает, истёк ли срок действия claims на момент now.
// Токены без exp считаются неистёкшими (решение об обязательности exp
// принимает верификатор).
func (c Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == 0 {
		return false
	}
	return now.Unix() >= c.ExpiresAt
}

// Decoded — результат декодирования токена.
type Decoded struct {
	Header Header
	Claims Claims
	// Payload — полный payload как map, для диагностических страниц.
	Payload map[string]any
}

// Decode разбирает compact JWT (header.payload.signature) БЕЗ проверки
// подписи. Возвращает ErrMalformedToken, если строка не состоит ровно
// из трёх сегментов или первые два не декодируются как base64url/JSON.
// Чистая функция, сетевых вызовов не выполняет.
func Decode(raw string) (*Decoded, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: ожидалось 3 сегмента, получено %d", ErrMalformedToken, len(parts))
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: заголовок: %v", ErrMalformedToken, err)
	}
	payloadJSON, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}

	d := &Decoded{}
	if err := json.Unmarshal(headerJSON, &d.Header); err != nil {
		return nil, fmt.Errorf("%w: заголовок не является JSON: %v", ErrMalformedToken, err)
	}
	if err := json.Unmarshal(payloadJSON, &d.Claims); err != nil {
		return nil, fmt.Errorf("%w: payload не является JSON: %v", ErrMalformedToken, err)
	}
	if err := json.Unmarshal(payloadJSON, &d.Payload); err != nil {
		return nil, fmt.Errorf("%w: payload не является JSON-объектом: %v", ErrMalformedToken, err)
	}

	return d, nil
}

// decodeSegment декодирует base64url-сегмент токена.
// Терпим к padding: принимает как raw, так и padded формы.
func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}
