package admin

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	adminauth "github.com/arturkryukov/carrental/internal/admin/auth"
	"github.com/arturkryukov/carrental/internal/auth/roles"
	"github.com/arturkryukov/carrental/internal/config"
	"github.com/arturkryukov/carrental/internal/domain/model"
	"github.com/arturkryukov/carrental/internal/rsclient"
)

// Handler — обработчики страниц Admin Panel.
type Handler struct {
	rs        *rsclient.Client
	oidc      *adminauth.OIDCClient
	templates *template.Template
	logger    *slog.Logger

	allowedRoles      []string
	fallbackUsernames []string
	// panelBaseURL — базовый URL панели (из redirect URI).
	panelBaseURL string
}

// NewHandler создаёт обработчики панели.
func NewHandler(cfg *config.AdminConfig, rs *rsclient.Client, oidc *adminauth.OIDCClient, logger *slog.Logger) *Handler {
	return &Handler{
		rs:                rs,
		oidc:              oidc,
		templates:         loadTemplates(),
		logger:            logger.With(slog.String("component", "admin_panel")),
		allowedRoles:      cfg.AdminRoles,
		fallbackUsernames: cfg.FallbackUsernames,
		panelBaseURL:      strings.TrimSuffix(cfg.RedirectURI, "/callback"),
	}
}

// dashboardData — данные шаблона dashboard.
type dashboardData struct {
	Username     string
	Cars         []*model.Car
	Reservations []*model.Reservation
	Error        string
}

// Dashboard — GET /
// Каталог автомобилей и список бронирований из Resource Server.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	data := dashboardData{
		Username: session.Username,
		Error:    r.URL.Query().Get("error"),
	}

	cars, err := h.rs.ListCars(r.Context(), session.RawToken)
	if err != nil {
		h.logger.Error("Ошибка получения автомобилей", slog.String("error", err.Error()))
		data.Error = "Не удалось получить каталог: " + upstreamMessage(err)
	}
	data.Cars = cars

	reservations, err := h.rs.ListReservations(r.Context(), session.RawToken)
	if err != nil {
		h.logger.Error("Ошибка получения бронирований", slog.String("error", err.Error()))
		if data.Error == "" {
			data.Error = "Не удалось получить бронирования: " + upstreamMessage(err)
		}
	}
	data.Reservations = reservations

	h.render(w, http.StatusOK, "dashboard", data)
}

// carFromForm собирает модель автомобиля из HTML-формы.
func carFromForm(r *http.Request) (*model.Car, error) {
	rate, err := strconv.ParseFloat(r.PostFormValue("dailyRate"), 64)
	if err != nil {
		return nil, err
	}

	car := &model.Car{
		Brand:              strings.TrimSpace(r.PostFormValue("brand")),
		Model:              strings.TrimSpace(r.PostFormValue("model")),
		RegistrationNumber: strings.TrimSpace(r.PostFormValue("registrationNumber")),
		DailyRate:          rate,
		Available:          r.PostFormValue("available") != "",
	}
	if imageURL := strings.TrimSpace(r.PostFormValue("imageUrl")); imageURL != "" {
		car.ImageURL = &imageURL
	}
	return car, nil
}

// AddCar — POST /add-car
func (h *Handler) AddCar(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	car, err := carFromForm(r)
	if err != nil {
		h.redirectWithError(w, r, "некорректный тариф")
		return
	}

	if _, err := h.rs.CreateCar(r.Context(), session.RawToken, car); err != nil {
		h.logger.Warn("Ошибка создания автомобиля", slog.String("error", err.Error()))
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// editCarData — данные шаблона edit_car.
type editCarData struct {
	Car *model.Car
}

// EditCarForm — GET /edit-car?id=
func (h *Handler) EditCarForm(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithError(w, r, "некорректный идентификатор автомобиля")
		return
	}

	car, err := h.rs.GetCar(r.Context(), session.RawToken, id)
	if err != nil {
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}

	h.render(w, http.StatusOK, "edit_car", editCarData{Car: car})
}

// UpdateCar — POST /update-car
func (h *Handler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithError(w, r, "некорректный идентификатор автомобиля")
		return
	}

	car, err := carFromForm(r)
	if err != nil {
		h.redirectWithError(w, r, "некорректный тариф")
		return
	}
	car.ID = id

	if _, err := h.rs.UpdateCar(r.Context(), session.RawToken, car); err != nil {
		h.logger.Warn("Ошибка обновления автомобиля",
			slog.Int64("car_id", id),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// DeleteCar — POST /delete-car
func (h *Handler) DeleteCar(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithError(w, r, "некорректный идентификатор автомобиля")
		return
	}

	if err := h.rs.DeleteCar(r.Context(), session.RawToken, id); err != nil {
		h.logger.Warn("Ошибка удаления автомобиля",
			slog.Int64("car_id", id),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// UpdateReservationStatus — POST /update-reservation-status
func (h *Handler) UpdateReservationStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithError(w, r, "некорректный идентификатор бронирования")
		return
	}
	status := r.PostFormValue("status")

	if _, err := h.rs.UpdateReservationStatus(r.Context(), session.RawToken, id, status); err != nil {
		h.logger.Warn("Ошибка смены статуса бронирования",
			slog.Int64("reservation_id", id),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// DeleteReservation — POST /delete-reservation
func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithError(w, r, "некорректный идентификатор бронирования")
		return
	}

	if err := h.rs.DeleteReservation(r.Context(), session.RawToken, id); err != nil {
		h.logger.Warn("Ошибка удаления бронирования",
			slog.Int64("reservation_id", id),
			slog.String("error", err.Error()),
		)
		h.redirectWithError(w, r, upstreamMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// authStatusData — данные шаблона auth_status.
type authStatusData struct {
	Username    string
	Subject     string
	PayloadJSON string
}

// AuthStatus — GET /auth-status
// Диагностическая страница с декодированным payload токена.
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	payload, err := json.MarshalIndent(session.Payload, "", "  ")
	if err != nil {
		payload = []byte("ошибка форматирования payload")
	}

	h.render(w, http.StatusOK, "auth_status", authStatusData{
		Username:    session.Username,
		Subject:     session.Subject,
		PayloadJSON: string(payload),
	})
}

// checkRolesData — данные шаблона check_roles.
type checkRolesData struct {
	Username     string
	Direct       []string
	Realm        []string
	Client       map[string][]string
	Aggregated   []string
	Admitted     bool
	AllowedRoles []string
}

// CheckRoles — GET /check-roles
// Разбивка ролей по источникам и вердикт допуска.
func (h *Handler) CheckRoles(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())
	if session == nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	// Вердикт вычисляется заново, а не берётся из факта прохождения
	// RequireAuth: страница остаётся честной диагностикой.
	admitted := roles.IsAdmitted(session.Roles.Roles, session.Username, h.allowedRoles, h.fallbackUsernames)

	h.render(w, http.StatusOK, "check_roles", checkRolesData{
		Username:     session.Username,
		Direct:       session.Roles.Direct,
		Realm:        session.Roles.Realm,
		Client:       session.Roles.Client,
		Aggregated:   session.Roles.Roles,
		Admitted:     admitted,
		AllowedRoles: h.allowedRoles,
	})
}

// forbiddenData — данные шаблона forbidden.
type forbiddenData struct {
	Username     string
	Roles        []string
	AllowedRoles []string
}

// renderForbidden — диагностическая страница 403.
func (h *Handler) renderForbidden(w http.ResponseWriter, session *Session) {
	h.render(w, http.StatusForbidden, "forbidden", forbiddenData{
		Username:     session.Username,
		Roles:        session.Roles.Roles,
		AllowedRoles: h.allowedRoles,
	})
}

// --- Аутентификация ---

// Login — GET /login
// Генерирует state, сохраняет его в short-lived cookie,
// redirect на authorize endpoint IdP.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := adminauth.GenerateState()
	if err != nil {
		h.logger.Error("Ошибка генерации state", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oidc.AuthorizeURL(state), http.StatusFound)
}

// Callback — GET /callback
// Проверяет state, обменивает code на tokens, устанавливает cookie сессии
// со сроком жизни токена, redirect на панель.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.logger.Warn("IdP вернул ошибку авторизации",
			slog.String("error", errCode),
			slog.String("description", r.URL.Query().Get("error_description")),
		)
		http.Error(w, "Ошибка авторизации: "+errCode, http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		http.Error(w, "Отсутствует code или state", http.StatusBadRequest)
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value != state {
		h.logger.Warn("State mismatch в callback")
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	// state одноразовый
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	tokenResp, err := h.oidc.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("Ошибка обмена code на tokens", slog.String("error", err.Error()))
		http.Error(w, "Ошибка аутентификации", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, tokenResp.AccessToken, tokenResp.ExpiresIn)

	h.logger.Info("Пользователь аутентифицирован в панели")
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout — GET|POST /logout
// Очищает cookie сессии, redirect на logout endpoint IdP.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	http.Redirect(w, r, h.oidc.LogoutURL("", h.panelBaseURL+"/login"), http.StatusFound)
}

// redirectWithError возвращает пользователя на панель с сообщением об ошибке.
func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(message), http.StatusFound)
}

// upstreamMessage извлекает человекочитаемое сообщение из ошибки
// Resource Server. Для ответов с envelope берётся error.message.
func upstreamMessage(err error) string {
	se, ok := rsclient.AsStatusError(err)
	if !ok {
		return "Resource Server недоступен"
	}

	var envelope struct {
		Error struct {
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal(se.Body, &envelope); jsonErr == nil && envelope.Error.Message != "" {
		msg := envelope.Error.Message
		for field, detail := range envelope.Error.Fields {
			msg += "; " + field + ": " + detail
		}
		return msg
	}
	return "Resource Server вернул статус " + strconv.Itoa(se.StatusCode)
}
