// Пакет verify — криптографическая проверка токенов для B2B Gateway.
// Подпись проверяется ключом из keyset.Cache (RS256); после проверки
// агрегированный набор ролей должен содержать требуемую capability.
// Любая структурная или криптографическая аномалия — отказ (fail closed).
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arturkryukov/carrental/internal/auth/keyset"
	"github.com/arturkryukov/carrental/internal/auth/roles"
	"github.com/arturkryukov/carrental/internal/auth/token"
)

// Ошибки верификации. Каждая завершает запрос отказом; повторов на этом
// уровне нет — единственный retry принадлежит keyset.Cache.
var (
	// ErrMissingToken — токен не передан.
	ErrMissingToken = errors.New("токен не передан")
	// ErrUnknownKey — kid токена не разрешается даже после обновления key set.
	ErrUnknownKey = errors.New("неизвестный ключ подписи")
	// ErrInvalidSignature — подпись или структура токена невалидны.
	ErrInvalidSignature = errors.New("невалидная подпись токена")
	// ErrExpiredToken — срок действия токена истёк.
	ErrExpiredToken = errors.New("срок действия токена истёк")
	// ErrInsufficientCapability — в агрегированных ролях нет требуемой capability.
	ErrInsufficientCapability = errors.New("недостаточно прав: отсутствует требуемая capability")
)

// verifiedClaims — raw claims для jwt.ParseWithClaims.
type verifiedClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string                        `json:"preferred_username"`
	DirectRoles       token.RoleList                `json:"role"`
	RealmAccess       *token.RealmAccess            `json:"realm_access,omitempty"`
	ResourceAccess    map[string]token.ClientAccess `json:"resource_access,omitempty"`
}

// toTokenClaims конвертирует проверенные raw claims в token.Claims.
func (v *verifiedClaims) toTokenClaims() token.Claims {
	c := token.Claims{
		Subject:           v.Subject,
		PreferredUsername: v.PreferredUsername,
		DirectRoles:       v.DirectRoles,
		RealmAccess:       v.RealmAccess,
		ResourceAccess:    v.ResourceAccess,
	}
	if v.ExpiresAt != nil {
		c.ExpiresAt = v.ExpiresAt.Unix()
	}
	return c
}

// Verifier — проверка подписи и capability входящих токенов.
type Verifier struct {
	keys *keyset.Cache
}

// New создаёт Verifier поверх кэша ключей.
func New(keys *keyset.Cache) *Verifier {
	return &Verifier{keys: keys}
}

// Verify проверяет compact JWT и наличие capability.
// Шаги: заголовок → kid → ключ из keyset.Cache → подпись RS256 →
// exp → агрегация ролей → членство capability (регистрозависимое —
// это B2B-политика, сознательно отличная от регистронезависимой
// политики Admin Panel).
func (v *Verifier) Verify(ctx context.Context, raw, capability string) (token.Claims, roles.Resolution, error) {
	if raw == "" {
		return token.Claims{}, roles.Resolution{}, ErrMissingToken
	}

	// Заголовок нужен до криптопроверки: из него берётся kid.
	decoded, err := token.Decode(raw)
	if err != nil {
		return token.Claims{}, roles.Resolution{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	key, err := v.keys.Key(ctx, decoded.Header.Kid)
	if err != nil {
		if errors.Is(err, keyset.ErrKeyNotFound) {
			return token.Claims{}, roles.Resolution{}, fmt.Errorf("%w: kid=%q", ErrUnknownKey, decoded.Header.Kid)
		}
		return token.Claims{}, roles.Resolution{}, fmt.Errorf("разрешение ключа подписи: %w", err)
	}

	vc := &verifiedClaims{}
	parsed, err := jwt.ParseWithClaims(raw, vc,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return token.Claims{}, roles.Resolution{}, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return token.Claims{}, roles.Resolution{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Valid {
		return token.Claims{}, roles.Resolution{}, ErrInvalidSignature
	}

	claims := vc.toTokenClaims()
	resolution := roles.Resolve(claims)

	if !resolution.Has(capability) {
		return token.Claims{}, roles.Resolution{}, fmt.Errorf("%w: %q", ErrInsufficientCapability, capability)
	}

	return claims, resolution, nil
}
