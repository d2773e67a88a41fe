// Точка входа Admin Panel — SSR-панель управления Car Rental.
// OIDC login через IdP (confidential client), управление каталогом
// и бронированиями через Resource Server от имени оператора.
package main

import (
	"log/slog"
	"os"

	"github.com/arturkryukov/carrental/internal/admin"
	adminauth "github.com/arturkryukov/carrental/internal/admin/auth"
	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/config"
	"github.com/arturkryukov/carrental/internal/rsclient"
	"github.com/arturkryukov/carrental/internal/server"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.LoadAdmin()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg.Log)
	logger.Info("Admin Panel запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. OIDC-клиент IdP
	oidc := adminauth.NewOIDCClient(adminauth.OIDCConfig{
		IdPURL:       cfg.IdP.URL,
		IdPPublicURL: cfg.IdPPublicURL,
		Realm:        cfg.IdP.Realm,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Timeout:      cfg.RSClientTimeout,
	})
	logger.Info("OIDC-клиент создан",
		slog.String("idp_url", cfg.IdP.URL),
		slog.String("realm", cfg.IdP.Realm),
		slog.String("client_id", cfg.ClientID),
	)

	// 4. Клиент Resource Server
	rs, err := rsclient.New(cfg.ResourceServerURL, "", cfg.RSClientTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента Resource Server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент Resource Server создан", slog.String("url", cfg.ResourceServerURL))

	// 5. Health handler с проверкой Resource Server
	healthHandler := handlers.NewHealthHandler("admin-panel").
		AddChecker("resource-server", rs)

	// 6. Обработчики панели и маршрутизатор
	handler := admin.NewHandler(cfg, rs, oidc, logger)
	router := admin.NewRouter(logger, handler, healthHandler)

	// 7. Запуск HTTP-сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(server.Options{
		Port:            cfg.Port,
		ReadTimeout:     cfg.HTTPReadTimeout,
		WriteTimeout:    cfg.HTTPWriteTimeout,
		IdleTimeout:     cfg.HTTPIdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, router, logger)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Admin Panel остановлен")
}
