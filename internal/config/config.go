// Пакет config — загрузка и валидация конфигурации Catalog Module
// из переменных окружения (с опциональным .env файлом).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Catalog Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Пользователь базы данных
	DBUser string
	// Пароль базы данных
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Redis (кэш результатов поиска) ---

	// Адрес Redis (host:port); пустой — кэш отключён
	RedisAddr string
	// Пароль Redis (опционально)
	RedisPassword string
	// Номер базы Redis
	RedisDB int

	// --- Кэширование ---

	// TTL записей кэша результатов поиска
	SearchCacheTTL time.Duration
	// Окно полной выборки при промахе кэша (максимум совпадений)
	SearchCacheWindow int
	// Максимальный размер LRU-кэша метаданных
	MediaCacheSize int
	// TTL записей LRU-кэша метаданных
	MediaCacheTTL time.Duration

	// --- Токены доступа ---

	// Время жизни одноразового токена
	TokenTTL time.Duration

	// --- Статистика ---

	// Интервал фонового пересчёта gauge-счётчиков
	StatsRefreshInterval time.Duration

	// --- Keycloak / JWT ---
	// KeycloakURL пустой — аутентификация отключена (локальная разработка),
	// административные endpoints открыты.

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Путь к CA-сертификату для TLS-соединения с Keycloak (опционально)
	KeycloakCACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Группы Keycloak, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы Keycloak, дающие роль readonly (через запятую)
	RoleReadonlyGroups []string

	// --- Мониторинг зависимостей (topologymetrics) ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env (если есть) подхватывается перед чтением окружения,
// уже заданные переменные имеют приоритет.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	// .env опционален — отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CM_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("CM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CM_LOG_LEVEL: %w", err)
	}

	// CM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	// CM_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("CM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_HTTP_READ_TIMEOUT: %w", err)
	}

	// CM_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("CM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// CM_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("CM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// CM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("CM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// CM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("CM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CM_DB_PORT: %w", err)
	}

	// CM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("CM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// CM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("CM_DB_USER")
	if err != nil {
		return nil, err
	}

	// CM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("CM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// CM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("CM_DB_SSL_MODE", "disable")
	switch cfg.DBSSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return nil, fmt.Errorf("CM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Redis ---

	// CM_REDIS_ADDR — адрес Redis (пустой — кэш результатов отключён)
	cfg.RedisAddr = getEnvDefault("CM_REDIS_ADDR", "")

	// CM_REDIS_PASSWORD — пароль Redis (опционально)
	cfg.RedisPassword = getEnvDefault("CM_REDIS_PASSWORD", "")

	// CM_REDIS_DB — номер базы Redis (по умолчанию 0)
	cfg.RedisDB, err = getEnvInt("CM_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("CM_REDIS_DB: %w", err)
	}

	// --- Кэширование ---

	// CM_SEARCH_CACHE_TTL — TTL кэша результатов поиска (по умолчанию 10m)
	cfg.SearchCacheTTL, err = getEnvDuration("CM_SEARCH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_SEARCH_CACHE_TTL: %w", err)
	}

	// CM_SEARCH_CACHE_WINDOW — окно полной выборки (по умолчанию 10000)
	cfg.SearchCacheWindow, err = getEnvInt("CM_SEARCH_CACHE_WINDOW", 10000)
	if err != nil {
		return nil, fmt.Errorf("CM_SEARCH_CACHE_WINDOW: %w", err)
	}
	if cfg.SearchCacheWindow < 1 {
		return nil, fmt.Errorf("CM_SEARCH_CACHE_WINDOW: значение должно быть > 0")
	}

	// CM_MEDIA_CACHE_SIZE — размер LRU-кэша метаданных (по умолчанию 1000)
	cfg.MediaCacheSize, err = getEnvInt("CM_MEDIA_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("CM_MEDIA_CACHE_SIZE: %w", err)
	}
	if cfg.MediaCacheSize < 1 {
		return nil, fmt.Errorf("CM_MEDIA_CACHE_SIZE: значение должно быть > 0")
	}

	// CM_MEDIA_CACHE_TTL — TTL LRU-кэша метаданных (по умолчанию 30m)
	cfg.MediaCacheTTL, err = getEnvDuration("CM_MEDIA_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_MEDIA_CACHE_TTL: %w", err)
	}

	// --- Токены доступа ---

	// CM_TOKEN_TTL — время жизни токена (по умолчанию 1h)
	cfg.TokenTTL, err = getEnvDuration("CM_TOKEN_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_TOKEN_TTL: %w", err)
	}

	// --- Статистика ---

	// CM_STATS_REFRESH_INTERVAL — интервал пересчёта счётчиков (по умолчанию 1h)
	cfg.StatsRefreshInterval, err = getEnvDuration("CM_STATS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CM_STATS_REFRESH_INTERVAL: %w", err)
	}

	// --- Keycloak / JWT ---

	// CM_KEYCLOAK_URL — опциональный (пустой — аутентификация отключена)
	cfg.KeycloakURL = strings.TrimRight(getEnvDefault("CM_KEYCLOAK_URL", ""), "/")

	// CM_KEYCLOAK_REALM — realm (по умолчанию mediabot)
	cfg.KeycloakRealm = getEnvDefault("CM_KEYCLOAK_REALM", "mediabot")

	if cfg.KeycloakURL != "" {
		// CM_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
		cfg.JWTIssuer = getEnvDefault("CM_JWT_ISSUER",
			fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

		// CM_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
		cfg.JWTJWKSURL = getEnvDefault("CM_JWT_JWKS_URL",
			fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))
	}

	// CM_KEYCLOAK_CA_CERT_PATH — CA-сертификат Keycloak (опционально)
	cfg.KeycloakCACertPath = getEnvDefault("CM_KEYCLOAK_CA_CERT_PATH", "")

	// CM_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("CM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// CM_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 5m)
	cfg.JWKSRefreshInterval, err = getEnvDuration("CM_JWKS_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("CM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// CM_JWT_LEEWAY — отклонение времени при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("CM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_JWT_LEEWAY: %w", err)
	}

	// CM_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "mediabot-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("CM_ROLE_ADMIN_GROUPS", "mediabot-admins"))

	// CM_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "mediabot-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("CM_ROLE_READONLY_GROUPS", "mediabot-viewers"))

	// --- Мониторинг зависимостей ---

	// CM_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию mediabot)
	cfg.DephealthGroup = getEnvDefault("CM_DEPHEALTH_GROUP", "mediabot")

	// CM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("CM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — лейбл isentry=yes (по умолчанию false)
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	// CM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("CM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// AuthEnabled сообщает, включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.KeycloakURL != ""
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для dephealth-лейблов и golang-migrate).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
