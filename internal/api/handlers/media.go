// media.go — обработчики каталога медиафайлов.
// POST /api/v1/media — загрузка/обновление записи (admin)
// GET /api/v1/media/{id} — метаданные одной записи
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gomediabot/internal/api/errors"
	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/service"
)

// uploadMediaRequest — тело запроса загрузки медиафайла в каталог.
type uploadMediaRequest struct {
	// Name — отображаемое имя файла (источник ключевых слов)
	Name string `json:"name"`
	// Caption — опциональное описание
	Caption *string `json:"caption,omitempty"`
	// FileRef — непрозрачная ссылка на файл во внешнем хранилище (уникальна)
	FileRef string `json:"file_ref"`
	// AccessHash — секрет доступа к файлу в хранилище
	AccessHash string `json:"access_hash"`
	// IsDocument — файл загружен как документ, а не как видео
	IsDocument bool `json:"is_document"`
}

// mediaResponse — представление записи каталога в API.
// file_ref и access_hash отдаются только в ответах для доверенных
// вызывающих (загрузка, погашение токена), не в поиске.
type mediaResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Caption    *string   `json:"caption,omitempty"`
	Keywords   []string  `json:"keywords,omitempty"`
	FileRef    string    `json:"file_ref,omitempty"`
	AccessHash string    `json:"access_hash,omitempty"`
	IsDocument bool      `json:"is_document"`
	UploadDate time.Time `json:"upload_date"`
}

// HandleUploadMedia — реализация POST /api/v1/media.
// Авторизация: RequireRoleOrScope (admin / media:write) — на уровне middleware.
// Идемпотентна по file_ref: повторная загрузка обновляет запись (200),
// новая — создаёт (201).
func (h *APIHandler) HandleUploadMedia(w http.ResponseWriter, r *http.Request) {
	var req uploadMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	if req.Name == "" {
		apierrors.ValidationError(w, "Поле name обязательно")
		return
	}
	if req.FileRef == "" {
		apierrors.ValidationError(w, "Поле file_ref обязательно")
		return
	}

	item := &model.MediaItem{
		Name:       req.Name,
		Caption:    req.Caption,
		FileRef:    req.FileRef,
		AccessHash: req.AccessHash,
		IsDocument: req.IsDocument,
	}

	created, err := h.catalog.Upload(r.Context(), item)
	if err != nil {
		h.logger.Error("Ошибка загрузки медиафайла",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при загрузке медиафайла")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, mediaItemToResponse(item, true))
}

// HandleGetMedia — реализация GET /api/v1/media/{id}.
// Возвращает метаданные без file_ref/access_hash — доступ к файлу
// выдаётся только через токен.
func (h *APIHandler) HandleGetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		apierrors.ValidationError(w, "Некорректный идентификатор медиафайла")
		return
	}

	item, err := h.search.GetMetadata(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Медиафайл не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных медиафайла",
			slog.Int64("media_id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении метаданных")
		return
	}

	writeJSON(w, http.StatusOK, mediaItemToResponse(item, false))
}

// mediaItemToResponse конвертирует domain-модель в API-представление.
// trusted — включать ли file_ref/access_hash в ответ.
func mediaItemToResponse(m *model.MediaItem, trusted bool) mediaResponse {
	resp := mediaResponse{
		ID:         m.ID,
		Name:       m.Name,
		Caption:    m.Caption,
		Keywords:   m.Keywords,
		IsDocument: m.IsDocument,
		UploadDate: m.UploadDate,
	}
	if trusted {
		resp.FileRef = m.FileRef
		resp.AccessHash = m.AccessHash
	}
	return resp
}
