package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"CM_DB_HOST":     "localhost",
		"CM_DB_NAME":     "mediabot",
		"CM_DB_USER":     "mediabot",
		"CM_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, ожидается localhost", cfg.DBHost)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.SearchCacheTTL != 10*time.Minute {
		t.Errorf("SearchCacheTTL = %v, ожидается 10m", cfg.SearchCacheTTL)
	}
	if cfg.SearchCacheWindow != 10000 {
		t.Errorf("SearchCacheWindow = %d, ожидается 10000", cfg.SearchCacheWindow)
	}
	if cfg.MediaCacheSize != 1000 {
		t.Errorf("MediaCacheSize = %d, ожидается 1000", cfg.MediaCacheSize)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, ожидается 1h", cfg.TokenTTL)
	}
	if cfg.StatsRefreshInterval != time.Hour {
		t.Errorf("StatsRefreshInterval = %v, ожидается 1h", cfg.StatsRefreshInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}

	// Без Keycloak аутентификация отключена
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true без CM_KEYCLOAK_URL")
	}
	// Без Redis кэш результатов отключён
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, ожидается пустой", cfg.RedisAddr)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "CM_DB_HOST")
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() без CM_DB_HOST должен вернуть ошибку")
	}
}

func TestLoad_KeycloakDerivedURLs(t *testing.T) {
	envs := minimalEnvs()
	envs["CM_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if !cfg.AuthEnabled() {
		t.Error("AuthEnabled() = false при заданном CM_KEYCLOAK_URL")
	}
	// Trailing slash убирается, JWKS URL и issuer авто-вычисляются
	wantIssuer := "https://keycloak.kryukov.lan/realms/mediabot"
	if cfg.JWTIssuer != wantIssuer {
		t.Errorf("JWTIssuer = %q, ожидается %q", cfg.JWTIssuer, wantIssuer)
	}
	wantJWKS := "https://keycloak.kryukov.lan/realms/mediabot/protocol/openid-connect/certs"
	if cfg.JWTJWKSURL != wantJWKS {
		t.Errorf("JWTJWKSURL = %q, ожидается %q", cfg.JWTJWKSURL, wantJWKS)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"некорректный уровень логирования", "CM_LOG_LEVEL", "verbose"},
		{"некорректный формат логов", "CM_LOG_FORMAT", "xml"},
		{"некорректный порт", "CM_PORT", "not-a-number"},
		{"некорректный SSL режим", "CM_DB_SSL_MODE", "maybe"},
		{"некорректная длительность", "CM_TOKEN_TTL", "fifteen minutes"},
		{"нулевое окно выборки", "CM_SEARCH_CACHE_WINDOW", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tc.key] = tc.val
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tc.key, tc.val)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := "host=localhost port=5432 dbname=mediabot user=mediabot password=secret sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" admins, viewers ,,ops ")
	want := []string{"admins", "viewers", "ops"}
	if len(got) != len(want) {
		t.Fatalf("parseCSV вернул %v, ожидается %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parseCSV[%d] = %q, ожидается %q", i, got[i], want[i])
		}
	}
}
