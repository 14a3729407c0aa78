// Точка входа Access Module — подсистема авторизации и каталога объектов
// шлюза удалённого доступа. Загружает конфигурацию, подключается к
// PostgreSQL, применяет миграции, инициализирует источники идентификации
// (системный PostgreSQL и, опционально, OIDC), создаёт реестр сессий и
// сервисный слой, запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/remgate/access-module/internal/api/handlers"
	"github.com/bigkaa/remgate/access-module/internal/api/middleware"
	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/config"
	"github.com/bigkaa/remgate/access-module/internal/database"
	"github.com/bigkaa/remgate/access-module/internal/provider/oidc"
	"github.com/bigkaa/remgate/access-module/internal/provider/postgres"
	"github.com/bigkaa/remgate/access-module/internal/server"
	"github.com/bigkaa/remgate/access-module/internal/service"
	"github.com/bigkaa/remgate/access-module/internal/session"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Access Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("ACM_DEPHEALTH_GROUP") == "" {
		logger.Warn("ACM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
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
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Источники идентификации. Системный источник — PostgreSQL;
	// OIDC — опциональный SSO-источник.
	providers := []auth.Provider{
		postgres.New("postgres", pool, logger),
	}

	var jwksURL string
	if cfg.OIDCEnabled {
		oidcProvider, oidcErr := oidc.New("oidc", oidc.Options{
			JWKSURL:       cfg.OIDCJWKSURL,
			Issuer:        cfg.OIDCIssuer,
			UsernameClaim: cfg.OIDCUsernameClaim,
			CacheTTL:      cfg.OIDCCacheTTL,
			CacheSize:     cfg.OIDCCacheSize,
		}, logger)
		if oidcErr != nil {
			logger.Error("Ошибка создания OIDC-источника", slog.String("error", oidcErr.Error()))
			os.Exit(1)
		}
		providers = append(providers, oidcProvider)
		jwksURL = cfg.OIDCJWKSURL

		logger.Info("OIDC-источник инициализирован",
			slog.String("jwks_url", cfg.OIDCJWKSURL),
			slog.String("issuer", cfg.OIDCIssuer),
		)
	} else {
		logger.Info("OIDC-источник отключён (ACM_OIDC_ENABLED=false)")
	}

	// 6. Реестр сессий и сервисный слой
	registry := session.NewRegistry(cfg.SessionTTL)
	svc := service.New(providers, registry, logger)

	// 7. Readiness checkers (PostgreSQL + JWKS IdP)
	pgChecker := database.NewReadinessChecker(pool)
	var idpChecker handlers.ReadinessChecker
	if cfg.OIDCEnabled {
		idpChecker = oidc.NewJWKSReadinessChecker(cfg.OIDCJWKSURL)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, idpChecker)

	// 8. API handler и middleware аутентификации
	apiHandler := handlers.NewAPIHandler(svc, healthHandler, logger)
	tokenAuth := middleware.NewTokenAuth(svc, logger)

	// 9. topologymetrics — мониторинг зависимостей
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"access-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		jwksURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 10. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, tokenAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 11. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Access Module остановлен")
}
