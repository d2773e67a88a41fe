// Пакет config — загрузка и валидация конфигурации сервисов Car Rental
// из переменных окружения. У каждого сервиса свой префикс:
// RS_ — Resource Server, B2B_ — B2B Gateway, ADM_ — Admin Panel.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Logging — общие параметры логирования.
type Logging struct {
	// Уровень логирования (debug, info, warn, error)
	Level slog.Level
	// Формат логов (json, text)
	Format string
}

// IdP — параметры Identity Provider (Keycloak-совместимый).
type IdP struct {
	// Базовый URL IdP.
	URL string
	// Имя realm.
	Realm string
	// Issuer JWT (авто-вычисляется из URL и Realm, если не задан).
	Issuer string
	// URL certs endpoint (JWKS; авто-вычисляется, если не задан).
	CertsURL string
}

// ResourceServerConfig — конфигурация Resource Server.
type ResourceServerConfig struct {
	// Порт HTTP-сервера.
	Port int
	Log  Logging
	IdP  IdP

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT ---

	// Таймаут HTTP-клиента JWKS.
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS-ключей.
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT.
	JWTLeeway time.Duration
	// Путь к CA-сертификату для TLS к IdP (опционально).
	CACertPath string

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- HTTP и graceful shutdown ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// GatewayConfig — конфигурация B2B Gateway.
type GatewayConfig struct {
	Port int
	Log  Logging
	IdP  IdP

	// URL Resource Server для проксирования.
	ResourceServerURL string
	// Таймаут исходящих запросов к Resource Server.
	RSClientTimeout time.Duration
	// Путь к CA-сертификату для TLS (опционально).
	CACertPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// AdminConfig — конфигурация Admin Panel (SSR).
type AdminConfig struct {
	Port int
	Log  Logging
	IdP  IdP

	// Внешний URL IdP для browser redirects (authorize, logout).
	// Если пустой — используется IdP.URL.
	IdPPublicURL string
	// OIDC Client ID панели.
	ClientID string
	// OIDC Client Secret (confidential client).
	ClientSecret string
	// Redirect URI для authorization code flow.
	RedirectURI string

	// URL Resource Server.
	ResourceServerURL string
	// Таймаут исходящих запросов к Resource Server.
	RSClientTimeout time.Duration

	// Роли, дающие доступ к панели (сравнение без учёта регистра).
	AdminRoles []string
	// Имена пользователей, допускаемые без ролей (аварийный люк оператора).
	FallbackUsernames []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

// LoadResourceServer загружает конфигурацию Resource Server (префикс RS_).
func LoadResourceServer() (*ResourceServerConfig, error) {
	cfg := &ResourceServerConfig{}
	var err error

	// RS_PORT — порт HTTP-сервера (по умолчанию 5001)
	cfg.Port, err = getEnvInt("RS_PORT", 5001)
	if err != nil {
		return nil, fmt.Errorf("RS_PORT: %w", err)
	}

	cfg.Log, err = loadLogging("RS")
	if err != nil {
		return nil, err
	}

	cfg.IdP, err = loadIdP("RS")
	if err != nil {
		return nil, err
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("RS_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("RS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RS_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("RS_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("RS_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("RS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("RS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("RS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	cfg.JWKSClientTimeout, err = getEnvDuration("RS_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("RS_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RS_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("RS_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_JWT_LEEWAY: %w", err)
	}
	cfg.CACertPath = getEnvDefault("RS_CA_CERT_PATH", "")

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("RS_DEPHEALTH_GROUP", "car-rental")
	cfg.DephealthCheckInterval, err = getEnvDuration("RS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- HTTP и graceful shutdown ---

	if err = loadHTTPTimeouts("RS",
		&cfg.HTTPReadTimeout, &cfg.HTTPWriteTimeout, &cfg.HTTPIdleTimeout, &cfg.ShutdownTimeout,
	); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadGateway загружает конфигурацию B2B Gateway (префикс B2B_).
func LoadGateway() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	var err error

	// B2B_PORT — порт HTTP-сервера (по умолчанию 5002)
	cfg.Port, err = getEnvInt("B2B_PORT", 5002)
	if err != nil {
		return nil, fmt.Errorf("B2B_PORT: %w", err)
	}

	cfg.Log, err = loadLogging("B2B")
	if err != nil {
		return nil, err
	}

	cfg.IdP, err = loadIdP("B2B")
	if err != nil {
		return nil, err
	}

	cfg.ResourceServerURL = strings.TrimRight(
		getEnvDefault("B2B_RESOURCE_SERVER_URL", "http://resource-server:5001"), "/")
	cfg.RSClientTimeout, err = getEnvDuration("B2B_RS_CLIENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("B2B_RS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.CACertPath = getEnvDefault("B2B_CA_CERT_PATH", "")

	if err = loadHTTPTimeouts("B2B",
		&cfg.HTTPReadTimeout, &cfg.HTTPWriteTimeout, &cfg.HTTPIdleTimeout, &cfg.ShutdownTimeout,
	); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAdmin загружает конфигурацию Admin Panel (префикс ADM_).
func LoadAdmin() (*AdminConfig, error) {
	cfg := &AdminConfig{}
	var err error

	// ADM_PORT — порт HTTP-сервера (по умолчанию 4000)
	cfg.Port, err = getEnvInt("ADM_PORT", 4000)
	if err != nil {
		return nil, fmt.Errorf("ADM_PORT: %w", err)
	}

	cfg.Log, err = loadLogging("ADM")
	if err != nil {
		return nil, err
	}

	cfg.IdP, err = loadIdP("ADM")
	if err != nil {
		return nil, err
	}

	// ADM_IDP_PUBLIC_URL — внешний URL IdP для browser redirects
	cfg.IdPPublicURL = strings.TrimRight(getEnvDefault("ADM_IDP_PUBLIC_URL", cfg.IdP.URL), "/")

	// ADM_CLIENT_ID — OIDC client панели (по умолчанию frontend-ssr)
	cfg.ClientID = getEnvDefault("ADM_CLIENT_ID", "frontend-ssr")

	// ADM_CLIENT_SECRET — обязательный (confidential client)
	cfg.ClientSecret, err = getEnvRequired("ADM_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.RedirectURI = getEnvDefault("ADM_REDIRECT_URI", "http://localhost:4000/callback")

	cfg.ResourceServerURL = strings.TrimRight(
		getEnvDefault("ADM_RESOURCE_SERVER_URL", "http://resource-server:5001"), "/")
	cfg.RSClientTimeout, err = getEnvDuration("ADM_RS_CLIENT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ADM_RS_CLIENT_TIMEOUT: %w", err)
	}

	// ADM_ADMIN_ROLES — роли, дающие доступ к панели (через запятую)
	cfg.AdminRoles = parseCSV(getEnvDefault("ADM_ADMIN_ROLES", "admin,administrator,realm-admin"))

	// ADM_FALLBACK_USERS — допуск по имени пользователя (через запятую)
	cfg.FallbackUsernames = parseCSV(getEnvDefault("ADM_FALLBACK_USERS", "admin"))

	if err = loadHTTPTimeouts("ADM",
		&cfg.HTTPReadTimeout, &cfg.HTTPWriteTimeout, &cfg.HTTPIdleTimeout, &cfg.ShutdownTimeout,
	); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *ResourceServerConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик и migrate).
func (c *ResourceServerConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(log Logging) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: log.Level,
	}

	var handler slog.Handler
	if log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Общие секции ---

// loadLogging читает <prefix>_LOG_LEVEL и <prefix>_LOG_FORMAT.
func loadLogging(prefix string) (Logging, error) {
	var log Logging
	var err error

	log.Level, err = parseLogLevel(getEnvDefault(prefix+"_LOG_LEVEL", "info"))
	if err != nil {
		return log, fmt.Errorf("%s_LOG_LEVEL: %w", prefix, err)
	}

	log.Format = getEnvDefault(prefix+"_LOG_FORMAT", "json")
	if log.Format != "json" && log.Format != "text" {
		return log, fmt.Errorf("%s_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", prefix, log.Format)
	}

	return log, nil
}

// loadIdP читает параметры Identity Provider для сервиса с данным префиксом.
// Issuer и CertsURL авто-вычисляются из URL и Realm, если не заданы явно.
func loadIdP(prefix string) (IdP, error) {
	var idp IdP
	var err error

	idp.URL, err = getEnvRequired(prefix + "_IDP_URL")
	if err != nil {
		return idp, err
	}
	idp.URL = strings.TrimRight(idp.URL, "/")

	idp.Realm = getEnvDefault(prefix+"_IDP_REALM", "car-rental")

	idp.Issuer = getEnvDefault(prefix+"_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", idp.URL, idp.Realm))

	idp.CertsURL = getEnvDefault(prefix+"_JWT_CERTS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", idp.URL, idp.Realm))

	return idp, nil
}

// loadHTTPTimeouts читает таймауты HTTP-сервера и graceful shutdown.
func loadHTTPTimeouts(prefix string, read, write, idle, shutdown *time.Duration) error {
	var err error

	if *read, err = getEnvDuration(prefix+"_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return fmt.Errorf("%s_HTTP_READ_TIMEOUT: %w", prefix, err)
	}
	if *write, err = getEnvDuration(prefix+"_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return fmt.Errorf("%s_HTTP_WRITE_TIMEOUT: %w", prefix, err)
	}
	if *idle, err = getEnvDuration(prefix+"_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return fmt.Errorf("%s_HTTP_IDLE_TIMEOUT: %w", prefix, err)
	}
	if *shutdown, err = getEnvDuration(prefix+"_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return fmt.Errorf("%s_SHUTDOWN_TIMEOUT: %w", prefix, err)
	}

	return nil
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку в slog.Level.
func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень логирования %q, допустимые: debug, info, warn, error", s)
	}
}

// parseCSV разбирает строку со значениями через запятую, отбрасывая пустые.
func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
