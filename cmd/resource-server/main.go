// Точка входа Resource Server — ядро системы Car Rental.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт репозитории, сервисы и API handlers, запускает topologymetrics,
// HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/arturkryukov/carrental/internal/api"
	"github.com/arturkryukov/carrental/internal/api/handlers"
	"github.com/arturkryukov/carrental/internal/api/middleware"
	"github.com/arturkryukov/carrental/internal/config"
	"github.com/arturkryukov/carrental/internal/database"
	"github.com/arturkryukov/carrental/internal/repository"
	"github.com/arturkryukov/carrental/internal/server"
	"github.com/arturkryukov/carrental/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.LoadResourceServer()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg.Log)
	logger.Info("Resource Server запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("RS_DEPHEALTH_GROUP") == "" {
		logger.Warn("RS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	carRepo := repository.NewCarRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Services
	carSvc := service.NewCarService(carRepo, logger)
	reservationSvc := service.NewReservationService(reservationRepo, carRepo, txRunner, logger)

	// 7. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.IdP.CertsURL,
		cfg.CACertPath,
		cfg.IdP.Issuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.IdP.CertsURL),
		slog.String("issuer", cfg.IdP.Issuer),
	)

	// 8. Readiness checkers (PostgreSQL + IdP)
	pgChecker := database.NewReadinessChecker(pool)
	idpChecker, err := middleware.NewIdPReadinessChecker(cfg.IdP.CertsURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания IdP readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler("resource-server").
		AddChecker("postgresql", pgChecker).
		AddChecker("idp", idpChecker)

	// 9. topologymetrics — мониторинг зависимостей (PostgreSQL + IdP)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"resource-server",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.IdP.CertsURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. API handlers и маршрутизатор
	carsHandler := handlers.NewCarsHandler(carSvc, logger)
	reservationsHandler := handlers.NewReservationsHandler(reservationSvc, logger)
	router := api.NewRouter(logger, jwtAuth, carsHandler, reservationsHandler, healthHandler)

	// 11. Запуск HTTP-сервера (блокирующий вызов с graceful shutdown)
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

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Resource Server остановлен")
}
