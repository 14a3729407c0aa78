// Пакет server — HTTP-сервер Access Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на внешнем балансировщике.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/remgate/access-module/internal/api/handlers"
	"github.com/bigkaa/remgate/access-module/internal/api/middleware"
	"github.com/bigkaa/remgate/access-module/internal/config"
)

// Server — HTTP-сервер Access Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, tokenAuth *middleware.TokenAuth) *Server {
	router := NewRouter(logger, handler, tokenAuth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты и middleware API.
// tokenAuth — middleware аутентификации по токену сессии (может быть nil
// для тестирования маршрутов без auth).
func NewRouter(logger *slog.Logger, handler *handlers.APIHandler, tokenAuth *middleware.TokenAuth) *chi.Mux {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health и metrics проверяются Kubernetes напрямую,
	// жизненный цикл токенов — сам механизм аутентификации.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Post("/api/v1/tokens", handler.CreateToken)
	router.Delete("/api/v1/tokens/{token}", handler.DeleteToken)

	// Каталоги источников — только с валидным токеном сессии
	router.Route("/api/v1/data/{source}", func(r chi.Router) {
		if tokenAuth != nil {
			r.Use(tokenAuth.Middleware())
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", handler.ListUsers)
			r.Post("/", handler.CreateUser)
			r.Get("/{username}", handler.GetUser)
			r.Put("/{username}", handler.UpdateUser)
			r.Delete("/{username}", handler.DeleteUser)
			r.Put("/{username}/password", handler.UpdatePassword)
			r.Get("/{username}/permissions", handler.GetPermissions)
			r.Patch("/{username}/permissions", handler.PatchPermissions)
		})

		r.Route("/connections", func(r chi.Router) {
			r.Get("/", handler.ListConnections)
			r.Post("/", handler.CreateConnection)
			r.Get("/{id}", handler.GetConnection)
			r.Put("/{id}", handler.UpdateConnection)
			r.Delete("/{id}", handler.DeleteConnection)
		})

		r.Route("/connectionGroups", func(r chi.Router) {
			r.Get("/", handler.ListConnectionGroups)
			r.Post("/", handler.CreateConnectionGroup)
			r.Get("/{id}", handler.GetConnectionGroup)
			r.Put("/{id}", handler.UpdateConnectionGroup)
			r.Delete("/{id}", handler.DeleteConnectionGroup)
			r.Get("/{id}/tree", handler.ConnectionTree)
		})

		r.Route("/activeConnections", func(r chi.Router) {
			r.Get("/", handler.ListActiveConnections)
			r.Get("/{id}", handler.GetActiveConnection)
			r.Delete("/{id}", handler.KillActiveConnection)
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
