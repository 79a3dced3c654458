// stats.go — обработчик GET /api/v1/stats/daily.
// Дневная сводка использования каталога.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/gomediabot/internal/api/errors"
	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// termCountItem — элемент топа поисковых запросов.
type termCountItem struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// dailyStatsResponse — тело ответа дневной сводки.
type dailyStatsResponse struct {
	Date             string          `json:"date"`
	TotalUsers       int             `json:"total_users"`
	ActiveUsersToday int             `json:"active_users_today"`
	ActiveUsersMonth int             `json:"active_users_month"`
	PremiumUsers     int             `json:"premium_users"`
	SearchesToday    int             `json:"searches_today"`
	TotalVideos      int             `json:"total_videos"`
	TopSearches      []termCountItem `json:"top_searches"`
}

// HandleDailyStats — реализация GET /api/v1/stats/daily.
// Авторизация: RequireRoleOrScope (admin, readonly / stats:read) — на уровне middleware.
// Счётчики считаются на момент запроса, не из фонового снапшота.
func (h *APIHandler) HandleDailyStats(w http.ResponseWriter, r *http.Request) {
	stats, top, err := h.stats.GetDaily(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения дневной статистики",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении статистики")
		return
	}

	writeJSON(w, http.StatusOK, dailyStatsToResponse(stats, top))
}

// dailyStatsToResponse конвертирует domain-модели в API-представление.
func dailyStatsToResponse(stats *model.DailyStats, top []model.TermCount) dailyStatsResponse {
	items := make([]termCountItem, 0, len(top))
	for _, tc := range top {
		items = append(items, termCountItem{Term: tc.Term, Count: tc.Count})
	}

	return dailyStatsResponse{
		Date:             stats.StatDate.Format(time.DateOnly),
		TotalUsers:       stats.TotalUsers,
		ActiveUsersToday: stats.ActiveUsersToday,
		ActiveUsersMonth: stats.ActiveUsersMonth,
		PremiumUsers:     stats.PremiumUsers,
		SearchesToday:    stats.SearchesToday,
		TotalVideos:      stats.TotalVideos,
		TopSearches:      items,
	}
}
