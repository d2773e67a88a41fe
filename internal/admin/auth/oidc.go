// Пакет auth — OIDC-клиент для аутентификации Admin Panel.
// Authorization Code Flow с confidential client (client_secret).
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OIDCClient — клиент endpoints Identity Provider.
// Confidential client: обмен code → tokens выполняется с client_secret.
type OIDCClient struct {
	// clientID — OIDC Client ID панели.
	clientID string
	// clientSecret — секрет confidential client.
	clientSecret string
	// authorizeURL — endpoint авторизации (browser redirect).
	authorizeURL string
	// tokenURL — endpoint обмена code → tokens (server-to-server).
	tokenURL string
	// logoutURL — endpoint logout (browser redirect).
	logoutURL string
	// redirectURI — callback URI панели.
	redirectURI string
	// httpClient — HTTP-клиент token endpoint.
	httpClient *http.Client
}

// OIDCConfig — конфигурация OIDC-клиента.
type OIDCConfig struct {
	// IdPURL — базовый URL IdP для backend (token exchange).
	IdPURL string
	// IdPPublicURL — внешний URL IdP для browser redirects.
	// Если пустой — используется IdPURL.
	IdPPublicURL string
	// Realm — имя realm.
	Realm string
	// ClientID — OIDC Client ID.
	ClientID string
	// ClientSecret — секрет confidential client.
	ClientSecret string
	// RedirectURI — callback URI панели.
	RedirectURI string
	// HTTPClient — HTTP-клиент (nil — клиент с таймаутом по умолчанию).
	HTTPClient *http.Client
	// Timeout — таймаут HTTP-запросов при HTTPClient == nil.
	Timeout time.Duration
}

// NewOIDCClient создаёт OIDC-клиент.
// Backend URL (token exchange) и browser URL (authorize/logout) могут
// различаться: backend — внутренний DNS, browser — внешний адрес IdP.
func NewOIDCClient(cfg OIDCConfig) *OIDCClient {
	backendBase := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", cfg.IdPURL, cfg.Realm)

	publicURL := cfg.IdPPublicURL
	if publicURL == "" {
		publicURL = cfg.IdPURL
	}
	browserBase := fmt.Sprintf("%s/realms/%s/protocol/openid-connect", publicURL, cfg.Realm)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &OIDCClient{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		authorizeURL: browserBase + "/auth",
		tokenURL:     backendBase + "/token",
		logoutURL:    browserBase + "/logout",
		redirectURI:  cfg.RedirectURI,
		httpClient:   httpClient,
	}
}

// AuthorizeURL формирует URL для redirect пользователя на login IdP.
// state — случайный state parameter для CSRF-защиты.
func (c *OIDCClient) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"redirect_uri":  {c.redirectURI},
		"state":         {state},
		"scope":         {"openid profile"},
	}
	return c.authorizeURL + "?" + params.Encode()
}

// TokenResponse — ответ token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token"`
}

// tokenError — ошибка token endpoint.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// ExchangeCode обменивает authorization code на tokens.
// code — authorization code из callback IdP.
func (c *OIDCClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"redirect_uri":  {c.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса к token endpoint: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос к token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа token endpoint: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var te tokenError
		if jsonErr := json.Unmarshal(body, &te); jsonErr == nil && te.Error != "" {
			return nil, fmt.Errorf("token endpoint: %s — %s", te.Error, te.Description)
		}
		return nil, fmt.Errorf("token endpoint вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("разбор token response: %w", err)
	}
	return &tokenResp, nil
}

// LogoutURL формирует URL для redirect пользователя на logout IdP.
// idTokenHint — id_token для корректного завершения сессии (опционально).
func (c *OIDCClient) LogoutURL(idTokenHint, postLogoutRedirectURI string) string {
	params := url.Values{
		"client_id":                {c.clientID},
		"post_logout_redirect_uri": {postLogoutRedirectURI},
	}
	if idTokenHint != "" {
		params.Set("id_token_hint", idTokenHint)
	}
	return c.logoutURL + "?" + params.Encode()
}

// GenerateState генерирует случайный state parameter для CSRF-защиты.
func GenerateState() (string, error) {
	stateBytes := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, stateBytes); err != nil {
		return "", fmt.Errorf("генерация state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(stateBytes), nil
}
