// token.go — сервис одноразовых токенов доступа к медиафайлам.
// Выдача (issue) и погашение (redeem); токен действует один раз
// и ограничен по времени.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// Prometheus-метрики токенов.
var (
	tokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cm_tokens_issued_total",
		Help: "Общее количество выданных токенов доступа.",
	})
	tokensRedeemedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_tokens_redeemed_total",
		Help: "Общее количество попыток погашения токенов (по результату: ok, rejected).",
	}, []string{"result"})
)

// tokenLength — длина токена в hex-символах (128 бит SHA-256 дайджеста).
const tokenLength = 32

// TokenService — выдача и погашение одноразовых токенов.
type TokenService struct {
	tokenRepo repository.TokenRepository
	mediaRepo repository.MediaRepository
	ttl       time.Duration
	logger    *slog.Logger

	// now подменяется в тестах
	now func() time.Time
}

// NewTokenService создаёт сервис токенов с указанным временем жизни.
func NewTokenService(
	tokenRepo repository.TokenRepository,
	mediaRepo repository.MediaRepository,
	ttl time.Duration,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		mediaRepo: mediaRepo,
		ttl:       ttl,
		logger:    logger.With(slog.String("component", "token_service")),
		now:       time.Now,
	}
}

// Issue выдаёт новый токен доступа к медиафайлу.
// Медиафайл должен существовать (ErrNotFound иначе). Каждый вызов выдаёт
// новый токен — ранее выданные токены остаются действительными до
// истечения TTL или погашения.
func (s *TokenService) Issue(ctx context.Context, mediaID, userID int64) (*model.AccessToken, error) {
	if _, err := s.mediaRepo.GetByID(ctx, mediaID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("проверка медиафайла перед выдачей токена: %w", err)
	}

	issuedAt := s.now()
	t := &model.AccessToken{
		Token:     generateToken(mediaID, userID, issuedAt),
		MediaID:   mediaID,
		UserID:    userID,
		ExpiresAt: issuedAt.Add(s.ttl),
	}

	if err := s.tokenRepo.Insert(ctx, t); err != nil {
		// Коллизия токена — ошибка выдачи, молчаливая перезапись запрещена
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: коллизия значения токена", ErrConflict)
		}
		return nil, fmt.Errorf("сохранение токена: %w", err)
	}

	tokensIssuedTotal.Inc()
	s.logger.Info("Токен выдан",
		slog.Int64("media_id", mediaID),
		slog.Int64("user_id", userID),
		slog.Time("expires_at", t.ExpiresAt),
	)

	return t, nil
}

// Redeem погашает токен и возвращает привязанный медиафайл.
// Несуществующий, просроченный и уже использованный токены неразличимы
// для вызывающего — все дают ErrNotFound. Погашение атомарно: из двух
// конкурентных вызовов с одним токеном успешен ровно один.
func (s *TokenService) Redeem(ctx context.Context, token string) (*model.MediaItem, error) {
	item, err := s.tokenRepo.Redeem(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tokensRedeemedTotal.WithLabelValues("rejected").Inc()
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("погашение токена: %w", err)
	}

	tokensRedeemedTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Токен погашен",
		slog.Int64("media_id", item.ID),
	)

	return item, nil
}

// generateToken формирует значение токена: hex первых 16 байт
// SHA-256 от media_id, user_id и момента выдачи с наносекундами.
func generateToken(mediaID, userID int64, issuedAt time.Time) string {
	seed := fmt.Sprintf("%d:%d:%d", mediaID, userID, issuedAt.UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:tokenLength]
}
