// tokens.go — обработчики одноразовых токенов доступа.
// POST /api/v1/media/{id}/token — выдача токена
// POST /api/v1/tokens/{token}/redeem — погашение токена
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
	"github.com/bigkaa/gomediabot/internal/service"
)

// issueTokenRequest — тело запроса выдачи токена.
type issueTokenRequest struct {
	// UserID — пользователь, которому выдаётся токен
	UserID int64 `json:"user_id"`
}

// issueTokenResponse — тело ответа выдачи токена.
type issueTokenResponse struct {
	Token     string    `json:"token"`
	MediaID   int64     `json:"media_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleIssueToken — реализация POST /api/v1/media/{id}/token.
// Каждый вызов выдаёт новый токен; ранее выданные остаются действительными.
func (h *APIHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	mediaID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || mediaID < 1 {
		apierrors.ValidationError(w, "Некорректный идентификатор медиафайла")
		return
	}

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}
	if req.UserID == 0 {
		apierrors.ValidationError(w, "Поле user_id обязательно")
		return
	}

	t, err := h.tokens.Issue(r.Context(), mediaID, req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Медиафайл не найден")
			return
		}
		if errors.Is(err, service.ErrConflict) {
			apierrors.Conflict(w, "Коллизия токена, повторите запрос")
			return
		}
		h.logger.Error("Ошибка выдачи токена",
			slog.Int64("media_id", mediaID),
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при выдаче токена")
		return
	}

	writeJSON(w, http.StatusCreated, issueTokenResponse{
		Token:     t.Token,
		MediaID:   t.MediaID,
		ExpiresAt: t.ExpiresAt,
	})
}

// HandleRedeemToken — реализация POST /api/v1/tokens/{token}/redeem.
// Успешное погашение возвращает медиафайл с file_ref/access_hash.
// Несуществующий, просроченный и использованный токены дают одинаковый 404 —
// вызывающий не может отличить чужой токен от просроченного.
func (h *APIHandler) HandleRedeemToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		apierrors.ValidationError(w, "Токен не указан")
		return
	}

	item, err := h.tokens.Redeem(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Токен недействителен или срок его действия истёк")
			return
		}
		h.logger.Error("Ошибка погашения токена",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при погашении токена")
		return
	}

	writeJSON(w, http.StatusOK, mediaItemToResponse(item, true))
}
