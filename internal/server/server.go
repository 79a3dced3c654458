// Пакет server — HTTP-сервер Catalog Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gomediabot/internal/api/handlers"
	"github.com/bigkaa/gomediabot/internal/config"
)

// Server — HTTP-сервер Catalog Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// commonMW применяется ко всем маршрутам (metrics, logging);
// catalogMW защищает загрузку каталога (admin / media:write),
// statsMW — дневную статистику (admin и readonly / stats:read).
// Пустые цепочки оставляют соответствующие маршруты открытыми
// (режим для локальной разработки без Keycloak).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.APIHandler,
	commonMW []func(http.Handler) http.Handler,
	catalogMW []func(http.Handler) http.Handler,
	statsMW []func(http.Handler) http.Handler,
) *Server {
	router := chi.NewRouter()

	for _, mw := range commonMW {
		router.Use(mw)
	}

	// Служебные endpoints
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Публичные маршруты (вызываются ботом от имени пользователей)
		r.Post("/search", handler.HandleSearch)
		r.Get("/media/{id}", handler.HandleGetMedia)
		r.Post("/media/{id}/token", handler.HandleIssueToken)
		r.Post("/tokens/{token}/redeem", handler.HandleRedeemToken)

		// Пополнение каталога — только admin
		r.Group(func(r chi.Router) {
			for _, mw := range catalogMW {
				r.Use(mw)
			}
			r.Post("/media", handler.HandleUploadMedia)
		})

		// Статистика — admin и readonly
		r.Group(func(r chi.Router) {
			for _, mw := range statsMW {
				r.Use(mw)
			}
			r.Get("/stats/daily", handler.HandleDailyStats)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
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
