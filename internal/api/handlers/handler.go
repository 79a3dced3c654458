// handler.go — основной обработчик API Catalog Module.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/service"
)

// SearchService — интерфейс сервиса поиска для обработчиков.
type SearchService interface {
	Search(ctx context.Context, term string, page, pageSize int) *service.SearchResult
	GetMetadata(ctx context.Context, id int64) (*model.MediaItem, error)
}

// CatalogService — интерфейс сервиса каталога (загрузка медиафайлов).
type CatalogService interface {
	Upload(ctx context.Context, item *model.MediaItem) (created bool, err error)
}

// TokenService — интерфейс сервиса токенов для обработчиков.
type TokenService interface {
	Issue(ctx context.Context, mediaID, userID int64) (*model.AccessToken, error)
	Redeem(ctx context.Context, token string) (*model.MediaItem, error)
}

// StatsService — интерфейс сервиса статистики для обработчиков.
type StatsService interface {
	RecordSearch(ctx context.Context, userID int64, term string)
	TrackUser(ctx context.Context, u *model.User)
	GetDaily(ctx context.Context) (*model.DailyStats, []model.TermCount, error)
}

// APIHandler — основной обработчик API Catalog Module.
type APIHandler struct {
	health  *HealthHandler
	search  SearchService
	catalog CatalogService
	tokens  TokenService
	stats   StatsService
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	search SearchService,
	catalog CatalogService,
	tokens TokenService,
	stats StatsService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:  health,
		search:  search,
		catalog: catalog,
		tokens:  tokens,
		stats:   stats,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
