package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// Prometheus-метрики кэша результатов поиска.
var (
	searchCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_search_cache_hits_total",
		Help: "Общее количество попаданий в кэш результатов поиска.",
	})
	searchCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_search_cache_misses_total",
		Help: "Общее количество промахов кэша результатов поиска.",
	})
	searchCacheErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_search_cache_errors_total",
		Help: "Количество ошибок Redis при обращении к кэшу (деградация до промаха).",
	})
)

// keyPrefix — пространство ключей кэша поиска в Redis.
const keyPrefix = "search:"

// ResultSet — кэшируемое значение: полный ранжированный набор совпадений,
// а не одна страница. Пагинация читает непрерывный срез Items —
// порядок зафиксирован ранжировщиком в момент выборки.
type ResultSet struct {
	// Query — нормализованный запрос (ключ кэша)
	Query string `json:"query"`
	// Total — общее количество совпадений на момент выборки
	Total int `json:"total"`
	// Items — полный упорядоченный набор результатов
	Items []*model.MediaItem `json:"items"`
	// FetchedAt — момент выборки из каталога
	FetchedAt time.Time `json:"fetched_at"`
}

// SearchCache — cache-aside кэш результатов поиска поверх Redis.
//
// Ключ — нормализованный запрос (та же нормализация, что у ранжировщика).
// Запись живёт фиксированный TTL; инвалидации при изменении каталога нет —
// окно устаревания ограничено TTL и принято осознанно. Ошибки Redis
// деградируют до промаха: поиск продолжает работать без кэша.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSearchCache создаёт кэш результатов поиска с указанным TTL.
func NewSearchCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SearchCache {
	return &SearchCache{
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "search_cache")),
	}
}

// Get возвращает кэшированный набор результатов по нормализованному запросу.
// (nil, false) — промах, истёкший TTL или ошибка Redis.
func (c *SearchCache) Get(ctx context.Context, term string) (*ResultSet, bool) {
	data, err := c.client.Get(ctx, keyPrefix+term).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			searchCacheErrorsTotal.Inc()
			c.logger.Warn("Ошибка чтения кэша поиска, деградация до промаха",
				slog.String("term", term),
				slog.String("error", err.Error()),
			)
		}
		searchCacheMissesTotal.Inc()
		return nil, false
	}

	var rs ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		// Повреждённая запись — считаем промахом и удаляем
		searchCacheErrorsTotal.Inc()
		c.logger.Warn("Повреждённая запись кэша поиска",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		c.client.Del(ctx, keyPrefix+term)
		searchCacheMissesTotal.Inc()
		return nil, false
	}

	searchCacheHitsTotal.Inc()
	return &rs, true
}

// Put сохраняет полный набор результатов с TTL.
// Ошибки Redis логируются и не прерывают поиск (best-effort).
func (c *SearchCache) Put(ctx context.Context, term string, total int, items []*model.MediaItem) {
	rs := ResultSet{
		Query:     term,
		Total:     total,
		Items:     items,
		FetchedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(rs)
	if err != nil {
		c.logger.Error("Ошибка сериализации набора результатов",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.client.Set(ctx, keyPrefix+term, data, c.ttl).Err(); err != nil {
		searchCacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка записи кэша поиска",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
	}
}
