// Точка входа Catalog Module — каталог медиафайлов с поиском,
// кэшированием результатов и одноразовыми токенами доступа.
// Загружает конфигурацию, подключается к PostgreSQL и Redis, применяет
// миграции, создаёт сервисный слой и API handlers, запускает фоновые
// задачи статистики и topologymetrics, HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gomediabot/internal/api/handlers"
	"github.com/bigkaa/gomediabot/internal/api/middleware"
	"github.com/bigkaa/gomediabot/internal/cache"
	"github.com/bigkaa/gomediabot/internal/config"
	"github.com/bigkaa/gomediabot/internal/database"
	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/repository"
	"github.com/bigkaa/gomediabot/internal/server"
	"github.com/bigkaa/gomediabot/internal/service"
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
	logger.Info("Catalog Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждения о дефолтных значениях topologymetrics
	if os.Getenv("CM_DEPHEALTH_GROUP") == "" {
		logger.Warn("CM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
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

	// 5. Подключение к Redis (опционально — кэш деградирует без него)
	var redisChecker handlers.ReadinessChecker
	var resultCache service.ResultCache
	if cfg.RedisAddr != "" {
		redisClient, redisErr := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if redisErr != nil {
			logger.Error("Ошибка подключения к Redis", slog.String("error", redisErr.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()

		resultCache = cache.NewSearchCache(redisClient, cfg.SearchCacheTTL, logger)
		redisChecker = cache.NewReadinessChecker(redisClient)
	} else {
		logger.Warn("CM_REDIS_ADDR не задан, кэш результатов поиска отключён")
		resultCache = noopResultCache{}
	}

	// 6. Repositories
	mediaRepo := repository.NewMediaRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// 7. Services
	mediaCache := service.NewCacheService(cfg.MediaCacheSize, cfg.MediaCacheTTL)
	searchSvc := service.NewSearchService(mediaRepo, resultCache, mediaCache, cfg.SearchCacheWindow, logger)
	catalogSvc := service.NewCatalogService(mediaRepo, mediaCache, logger)
	tokenSvc := service.NewTokenService(tokenRepo, mediaRepo, cfg.TokenTTL, logger)
	statsSvc := service.NewStatsService(statsRepo, userRepo, cfg.StatsRefreshInterval, logger)

	// 8. Readiness checkers и health handler.
	// Keycloak проверяется только при включённой аутентификации.
	pgChecker := database.NewReadinessChecker(pool)

	var keycloakChecker handlers.ReadinessChecker
	if cfg.AuthEnabled() {
		kc, kcErr := middleware.NewKeycloakReadinessChecker(
			cfg.JWTJWKSURL, cfg.KeycloakCACertPath, cfg.JWKSClientTimeout,
		)
		if kcErr != nil {
			logger.Warn("Проверка Keycloak в readiness недоступна",
				slog.String("error", kcErr.Error()),
			)
		} else {
			keycloakChecker = kc
		}
	}

	healthHandler := handlers.NewHealthHandler(pgChecker, redisChecker, keycloakChecker)

	// 9. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		searchSvc,
		catalogSvc,
		tokenSvc,
		statsSvc,
		logger,
	)

	// 10. Middleware: метрики и логирование — для всех маршрутов,
	// JWT — только для административных. Загрузка каталога требует admin,
	// дневная статистика открыта и для readonly.
	commonMW := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	}

	var catalogMW, statsMW []func(http.Handler) http.Handler
	if cfg.AuthEnabled() {
		jwtAuth, jwtErr := middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.KeycloakCACertPath,
			cfg.JWTIssuer,
			cfg.RoleAdminGroups,
			cfg.RoleReadonlyGroups,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		defer jwtAuth.Close()

		catalogMW = []func(http.Handler) http.Handler{
			jwtAuth.Middleware(),
			middleware.RequireRoleOrScope(
				[]string{middleware.RoleAdmin},
				[]string{"media:write"},
			),
		}
		statsMW = []func(http.Handler) http.Handler{
			jwtAuth.Middleware(),
			middleware.RequireRoleOrScope(
				[]string{middleware.RoleAdmin, middleware.RoleReadonly},
				[]string{"stats:read"},
			),
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Warn("CM_KEYCLOAK_URL не задан, административные endpoints открыты")
	}

	// 11. Запуск фоновых задач
	statsSvc.Start()

	// Первичный пересчёт gauge-счётчиков, чтобы сводка была заполнена
	// сразу после старта, не дожидаясь первого тика
	if refreshErr := statsSvc.RefreshNow(ctx); refreshErr != nil {
		logger.Warn("Ошибка первичного пересчёта статистики",
			slog.String("error", refreshErr.Error()),
		)
	}

	// 11.1 topologymetrics — мониторинг зависимостей (PostgreSQL)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"catalog-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
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
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера (блокирующий вызов)
	srv := server.New(cfg, logger, apiHandler, commonMW, catalogMW, statsMW)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	statsSvc.Stop()

	logger.Info("Catalog Module остановлен")
}

// noopResultCache — заглушка кэша при отключённом Redis: всегда промах.
type noopResultCache struct{}

func (noopResultCache) Get(context.Context, string) (*cache.ResultSet, bool) { return nil, false }

func (noopResultCache) Put(context.Context, string, int, []*model.MediaItem) {}
