// Пакет gateway — B2B Gateway: проксирование подмножества API
// Resource Server для партнёрских систем. Каждый запрос проходит
// криптографическую проверку токена с capability "b2b".
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/arturkryukov/carrental/internal/api/errors"
	"github.com/arturkryukov/carrental/internal/auth/roles"
	"github.com/arturkryukov/carrental/internal/auth/verify"
)

// Capability — роль, требуемая для доступа к B2B API.
const Capability = "b2b"

type contextKey string

// ContextKeyCaller — ключ контекста для данных вызывающего.
const ContextKeyCaller contextKey = "b2b_caller"

// Caller — проверенный вызывающий B2B API.
type Caller struct {
	// Subject — sub из токена.
	Subject string
	// Username — preferred_username из токена.
	Username string
	// RawToken — исходный compact JWT для передачи в Resource Server.
	RawToken string
	// Roles — агрегированный набор ролей.
	Roles roles.Resolution
}

// Auth — middleware проверки токена для B2B маршрутов.
type Auth struct {
	verifier *verify.Verifier
	logger   *slog.Logger
}

// NewAuth создаёт middleware поверх верификатора.
func NewAuth(verifier *verify.Verifier, logger *slog.Logger) *Auth {
	return &Auth{
		verifier: verifier,
		logger:   logger.With(slog.String("component", "b2b_auth")),
	}
}

// Middleware проверяет Bearer-токен и capability "b2b".
// Отсутствие или невалидность токена — 401, отсутствие capability — 403,
// недоступность IdP при обновлении key set — 502.
func (a *Auth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)

			claims, resolution, err := a.verifier.Verify(r.Context(), raw, Capability)
			if err != nil {
				a.reject(w, r, err)
				return
			}

			caller := Caller{
				Subject:  claims.Subject,
				Username: claims.PreferredUsername,
				RawToken: raw,
				Roles:    resolution,
			}
			ctx := context.WithValue(r.Context(), ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// reject завершает запрос ошибкой в зависимости от причины отказа.
func (a *Auth) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, verify.ErrMissingToken):
		apierrors.Unauthorized(w, "требуется Bearer токен")
	case errors.Is(err, verify.ErrExpiredToken):
		apierrors.Unauthorized(w, "срок действия токена истёк")
	case errors.Is(err, verify.ErrUnknownKey), errors.Is(err, verify.ErrInvalidSignature):
		apierrors.Unauthorized(w, "невалидный токен")
	case errors.Is(err, verify.ErrInsufficientCapability):
		apierrors.Forbidden(w, "доступ к B2B API требует роль "+Capability)
	default:
		// Сюда попадают ошибки обновления key set: IdP недоступен.
		a.logger.Error("Проверка токена не выполнена",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.IDPUnavailable(w, "проверка токена временно недоступна")
		return
	}

	a.logger.Warn("Отказ в доступе к B2B API",
		slog.String("path", r.URL.Path),
		slog.String("reason", err.Error()),
	)
}

// bearerToken извлекает compact JWT из Authorization header.
// Пустая строка, если заголовок отсутствует или имеет неверную схему.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CallerFromContext возвращает данные вызывающего из контекста.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(ContextKeyCaller).(Caller)
	return caller, ok
}
