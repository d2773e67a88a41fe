// Пакет admin — SSR-панель управления каталогом и бронированиями.
// Доступ решается декодированием токена из cookie без проверки подписи:
// панель — тонкий клиент, последнее слово остаётся за Resource Server,
// который проверяет подпись каждого проксируемого запроса.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arturkryukov/carrental/internal/auth/roles"
	"github.com/arturkryukov/carrental/internal/auth/token"
)

// sessionCookieName — cookie с access token пользователя панели.
const sessionCookieName = "carrental_admin_token"

// stateCookieName — short-lived cookie со state на время auth flow.
const stateCookieName = "carrental_auth_state"

// stateCookieMaxAge — максимальный возраст state cookie (5 минут).
const stateCookieMaxAge = 5 * 60

type contextKey string

// contextKeySession — данные сессии панели в контексте запроса.
const contextKeySession contextKey = "admin_session"

// Session — данные аутентифицированного пользователя панели.
type Session struct {
	// RawToken — access token для проксирования в Resource Server.
	RawToken string
	// Subject — sub из токена.
	Subject string
	// Username — preferred_username из токена.
	Username string
	// Roles — агрегированный набор ролей с разбивкой по источникам.
	Roles roles.Resolution
	// Payload — полный payload токена для диагностических страниц.
	Payload map[string]any
}

// RequireAuth проверяет cookie сессии и допуск пользователя.
// Отсутствие или повреждение cookie — redirect на /login.
// Валидный токен без допуска — диагностическая страница 403.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		decoded, err := token.Decode(cookie.Value)
		if err != nil {
			h.logger.Debug("Повреждённый токен в cookie, redirect на login",
				slog.String("error", err.Error()),
			)
			clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if decoded.Claims.Expired(time.Now()) {
			clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		session := &Session{
			RawToken: cookie.Value,
			Subject:  decoded.Claims.Subject,
			Username: decoded.Claims.PreferredUsername,
			Roles:    roles.Resolve(decoded.Claims),
			Payload:  decoded.Payload,
		}

		if !roles.IsAdmitted(session.Roles.Roles, session.Username, h.allowedRoles, h.fallbackUsernames) {
			h.logger.Warn("Отказ в доступе к панели",
				slog.String("username", session.Username),
				slog.Any("roles", session.Roles.Roles),
			)
			h.renderForbidden(w, session)
			return
		}

		ctx := context.WithValue(r.Context(), contextKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext извлекает сессию из контекста запроса.
// nil, если запрос не прошёл через RequireAuth.
func sessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}

// setSessionCookie устанавливает cookie сессии со сроком жизни токена.
func setSessionCookie(w http.ResponseWriter, rawToken string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    rawToken,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie удаляет cookie сессии.
func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
