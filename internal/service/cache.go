// Пакет service — бизнес-логика Catalog Module.
// CacheService — LRU-кэш метаданных медиафайлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// Prometheus-метрики LRU-кэша метаданных.
var (
	mediaCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_media_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных медиафайлов.",
	})
	mediaCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_media_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных медиафайлов.",
	})
)

// CacheService — LRU-кэш метаданных медиафайлов с автоматическим TTL.
// Каждый экземпляр Catalog Module имеет собственный in-memory кэш
// (per-instance), в отличие от общего Redis-кэша результатов поиска.
type CacheService struct {
	cache *expirable.LRU[int64, *model.MediaItem]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[int64, *model.MediaItem](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает MediaItem из кэша по идентификатору.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *CacheService) Get(id int64) (*model.MediaItem, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		mediaCacheHitsTotal.Inc()
		return val, true
	}
	mediaCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(id int64, item *model.MediaItem) {
	c.cache.Add(id, item)
}

// Delete удаляет запись из кэша (инвалидация при re-upload).
func (c *CacheService) Delete(id int64) {
	c.cache.Remove(id)
}
