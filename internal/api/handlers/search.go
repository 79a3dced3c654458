// search.go — обработчик POST /api/v1/search.
// Десериализация запроса, вызов сервиса поиска, учёт статистики, сериализация.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/gomediabot/internal/api/errors"
	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// searchRequest — тело запроса поиска.
type searchRequest struct {
	// UserID — идентификатор пользователя (для статистики)
	UserID int64 `json:"user_id"`
	// User — профиль пользователя; при наличии регистрируется/обновляется
	User *searchUser `json:"user,omitempty"`
	// Query — поисковый запрос в свободной форме
	Query string `json:"query"`
	// Page — номер страницы (с 1; 0 → 1)
	Page int `json:"page"`
	// PageSize — размер страницы (0 → значение по умолчанию)
	PageSize int `json:"page_size"`
}

// searchUser — профиль пользователя из мессенджера.
type searchUser struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// searchResponse — тело ответа поиска.
type searchResponse struct {
	Query    string       `json:"query"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Items    []searchItem `json:"items"`
}

// searchItem — один результат поиска (без file_ref и access_hash:
// доступ к файлу выдаётся только через токен).
type searchItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Caption    *string   `json:"caption,omitempty"`
	IsDocument bool      `json:"is_document"`
	UploadDate time.Time `json:"upload_date"`
}

// HandleSearch — реализация POST /api/v1/search.
// Endpoint публичный (вызывается ботом от имени пользователей Telegram).
// Поиск best-effort: ошибки хранилища дают пустой результат, не 5xx.
func (h *APIHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	if req.Query == "" {
		apierrors.ValidationError(w, "Поле query обязательно")
		return
	}

	result := h.search.Search(r.Context(), req.Query, req.Page, req.PageSize)

	// Статистика — best-effort, не влияет на ответ
	if req.UserID != 0 {
		if req.User != nil {
			h.stats.TrackUser(r.Context(), &model.User{
				UserID:    req.UserID,
				Username:  req.User.Username,
				FirstName: req.User.FirstName,
				LastName:  req.User.LastName,
			})
		}
		h.stats.RecordSearch(r.Context(), req.UserID, result.Term)
	}

	resp := searchResponse{
		Query:    result.Term,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Items:    mediaItemsToSearchItems(result.Items),
	}

	writeJSON(w, http.StatusOK, resp)
}

// mediaItemsToSearchItems конвертирует domain-модели в API-элементы поиска.
func mediaItemsToSearchItems(items []*model.MediaItem) []searchItem {
	out := make([]searchItem, 0, len(items))
	for _, m := range items {
		out = append(out, searchItem{
			ID:         m.ID,
			Name:       m.Name,
			Caption:    m.Caption,
			IsDocument: m.IsDocument,
			UploadDate: m.UploadDate,
		})
	}
	return out
}
