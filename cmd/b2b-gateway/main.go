// Точка входа B2B Gateway — партнёрский шлюз системы Car Rental.
// Проксирует подмножество API Resource Server с криптографической
// проверкой токенов (capability "b2b") и месячной отчётностью.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/auth/keyset"
	"github.com/arturkryukov/carrental/internal/auth/verify"
	"github.com/arturkryukov/carrental/internal/config"
	"github.com/arturkryukov/carrental/internal/gateway"
	"github.com/arturkryukov/carrental/internal/rsclient"
	"github.com/arturkryukov/carrental/internal/server"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.LoadGateway()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg.Log)
	logger.Info("B2B Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Кэш ключей подписи IdP + верификатор токенов
	keys := keyset.New(cfg.IdP.CertsURL, &http.Client{Timeout: cfg.RSClientTimeout}, logger)
	// Предзагрузка best-effort: IdP может подняться позже шлюза
	_ = keys.Warm(context.Background())

	auth := gateway.NewAuth(verify.New(keys), logger)
	logger.Info("Верификатор токенов инициализирован",
		slog.String("certs_url", cfg.IdP.CertsURL),
		slog.String("capability", gateway.Capability),
	)

	// 4. Клиент Resource Server
	rs, err := rsclient.New(cfg.ResourceServerURL, cfg.CACertPath, cfg.RSClientTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента Resource Server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент Resource Server создан", slog.String("url", cfg.ResourceServerURL))

	// 5. Health handler с проверкой Resource Server
	healthHandler := handlers.NewHealthHandler("b2b-gateway").
		AddChecker("resource-server", rs)

	// 6. Маршрутизатор и HTTP-сервер
	handler := gateway.NewHandler(rs, logger)
	router := gateway.NewRouter(logger, auth, handler, healthHandler)

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

	logger.Info("B2B Gateway остановлен")
}
