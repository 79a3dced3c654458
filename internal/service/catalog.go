// catalog.go — сервис пополнения каталога медиафайлов.
// Извлекает ключевые слова из имени файла и выполняет идемпотентный upsert.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/keyword"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// Prometheus-метрики каталога.
var (
	catalogUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_catalog_uploads_total",
		Help: "Общее количество загрузок в каталог (по результату: created, updated).",
	}, []string{"result"})
)

// CatalogService — пополнение каталога медиафайлов.
type CatalogService struct {
	mediaRepo  repository.MediaRepository
	mediaCache *CacheService
	logger     *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(
	mediaRepo repository.MediaRepository,
	mediaCache *CacheService,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		mediaRepo:  mediaRepo,
		mediaCache: mediaCache,
		logger:     logger.With(slog.String("component", "catalog_service")),
	}
}

// Upload добавляет медиафайл в каталог или обновляет существующий
// (идентичность — по file_ref). Ключевые слова извлекаются из описания
// и имени файла на стороне сервиса; присланные в item.Keywords
// игнорируются. Возвращает created = true при вставке, false при обновлении.
func (s *CatalogService) Upload(ctx context.Context, item *model.MediaItem) (bool, error) {
	// Описание первым: часто именно оно содержит искомое название,
	// а имя файла — технические токены
	var caption string
	if item.Caption != nil {
		caption = *item.Caption
	}
	item.Keywords = keyword.ExtractAll(caption, item.Name)

	created, err := s.mediaRepo.Upsert(ctx, item)
	if err != nil {
		return false, fmt.Errorf("загрузка медиафайла в каталог: %w", err)
	}

	result := "created"
	if !created {
		result = "updated"
		// Повторная загрузка меняет метаданные — устаревшая запись
		// LRU-кэша инвалидируется
		s.mediaCache.Delete(item.ID)
	}
	catalogUploadsTotal.WithLabelValues(result).Inc()

	s.logger.Info("Медиафайл загружен в каталог",
		slog.Int64("media_id", item.ID),
		slog.String("name", item.Name),
		slog.Bool("created", created),
	)

	return created, nil
}
