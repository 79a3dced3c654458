// search.go — сервис поиска по каталогу и получения метаданных.
// Координирует repository, Redis-кэш результатов, LRU-кэш метаданных
// и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediabot/internal/cache"
	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/keyword"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (например, коллизия токена).
	ErrConflict = errors.New("конфликт — запись уже существует")
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_search_total",
		Help: "Общее количество поисковых запросов (по источнику: cache, db, empty, error).",
	}, []string{"source"})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cm_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// Границы пагинации.
const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// SearchResult — страница результатов поиска.
type SearchResult struct {
	// Term — нормализованный запрос
	Term string
	// Total — общее количество совпадений (полного набора, не страницы)
	Total int
	// Page — номер страницы (с 1)
	Page int
	// PageSize — размер страницы
	PageSize int
	// Items — срез полного ранжированного набора для запрошенной страницы
	Items []*model.MediaItem
}

// ResultCache — интерфейс кэша полных наборов результатов.
// Реализуется cache.SearchCache (Redis); в тестах подменяется фейком.
type ResultCache interface {
	Get(ctx context.Context, term string) (*cache.ResultSet, bool)
	Put(ctx context.Context, term string, total int, items []*model.MediaItem)
}

// SearchService — поиск по каталогу и метаданные медиафайлов.
//
// Протокол cache-aside: сначала Redis-кэш; при промахе — один ранжированный
// запрос за ПОЛНЫМ набором совпадений (окно window), набор кладётся в кэш,
// страницы выдаются срезами. Кэш и ранжировщик используют одну нормализацию
// запроса и один порядок сортировки — срезы стабильны между страницами.
type SearchService struct {
	mediaRepo  repository.MediaRepository
	results    ResultCache
	mediaCache *CacheService
	window     int
	logger     *slog.Logger
}

// NewSearchService создаёт сервис поиска.
// window — размер окна полной выборки при промахе кэша (все совпадения
// ограниченного каталога; страницы режутся из него).
func NewSearchService(
	mediaRepo repository.MediaRepository,
	results ResultCache,
	mediaCache *CacheService,
	window int,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		mediaRepo:  mediaRepo,
		results:    results,
		mediaCache: mediaCache,
		window:     window,
		logger:     logger.With(slog.String("component", "search_service")),
	}
}

// Search выполняет поиск по свободному тексту с пагинацией.
//
// Поиск — best-effort: любая ошибка хранилища или кэша деградирует до
// пустого результата (0 совпадений), логируется и не распространяется
// к вызывающему.
func (s *SearchService) Search(ctx context.Context, rawTerm string, page, pageSize int) *SearchResult {
	start := time.Now()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	term := keyword.Normalize(rawTerm)
	page, pageSize = normalizePage(page, pageSize)

	result := &SearchResult{Term: term, Page: page, PageSize: pageSize}
	if term == "" {
		searchTotal.WithLabelValues("empty").Inc()
		return result
	}

	// Cache hit — страница режется из кэшированного полного набора
	if rs, ok := s.results.Get(ctx, term); ok {
		searchTotal.WithLabelValues("cache").Inc()
		result.Total = rs.Total
		result.Items = slicePage(rs.Items, page, pageSize)
		return result
	}

	// Cache miss — полный набор совпадений одним проходом
	words := strings.Fields(term)
	items, total, err := s.mediaRepo.SearchRanked(ctx, term, words, s.window, 0)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка поиска, деградация до пустого результата",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
		return result
	}

	searchTotal.WithLabelValues("db").Inc()
	if total > 0 {
		s.results.Put(ctx, term, total, items)
	}

	result.Total = total
	result.Items = slicePage(items, page, pageSize)

	s.logger.Debug("Поиск выполнен",
		slog.String("term", term),
		slog.Int("total", total),
		slog.Int("page", page),
		slog.Duration("duration", time.Since(start)),
	)

	return result
}

// GetMetadata возвращает метаданные медиафайла.
// Сначала LRU-кэш, при промахе — запрос к PostgreSQL, результат кэшируется.
func (s *SearchService) GetMetadata(ctx context.Context, id int64) (*model.MediaItem, error) {
	if item, ok := s.mediaCache.Get(id); ok {
		return item, nil
	}

	item, err := s.mediaRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение метаданных медиафайла: %w", err)
	}

	s.mediaCache.Set(id, item)
	return item, nil
}

// normalizePage приводит параметры пагинации к допустимым значениям.
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// slicePage возвращает непрерывный срез полного набора для страницы.
// Страницы не пересекаются и в сумме покрывают весь набор.
func slicePage(items []*model.MediaItem, page, pageSize int) []*model.MediaItem {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
