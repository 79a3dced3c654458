package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// TokenRepository — интерфейс доступа к одноразовым токенам.
type TokenRepository interface {
	// Insert сохраняет выданный токен. Коллизия значения токена —
	// ErrConflict: выдача должна завершиться ошибкой, а не перезаписью.
	Insert(ctx context.Context, t *model.AccessToken) error
	// Redeem атомарно помечает токен использованным и возвращает
	// привязанный медиафайл. ErrNotFound для несуществующего, просроченного
	// и уже использованного токена — вызывающий их не различает.
	Redeem(ctx context.Context, token string) (*model.MediaItem, error)
	// CountExpiredUnused возвращает количество просроченных непогашенных
	// токенов (диагностика; записи физически не удаляются — аудит).
	CountExpiredUnused(ctx context.Context) (int, error)
}

// tokenRepo — реализация TokenRepository через pgx.
type tokenRepo struct {
	db DBTX
}

// NewTokenRepository создаёт репозиторий токенов.
func NewTokenRepository(db DBTX) TokenRepository {
	return &tokenRepo{db: db}
}

func (r *tokenRepo) Insert(ctx context.Context, t *model.AccessToken) error {
	query := `
		INSERT INTO access_tokens (token, media_id, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, t.Token, t.MediaID, t.UserID, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: токен с таким значением уже выдан", ErrConflict)
		}
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	return nil
}

// redeemQuery — погашение токена одним атомарным оператором.
// Проверка used/expires_at и пометка used = TRUE выполняются в одном
// UPDATE: из двух конкурентных погашений строку обновит ровно одно,
// второе не найдёт строку по предикату used = FALSE.
const redeemQuery = `
	WITH redeemed AS (
		UPDATE access_tokens
		SET used = TRUE
		WHERE token = $1
			AND used = FALSE
			AND expires_at > NOW()
		RETURNING media_id
	)
	SELECT m.id, m.name, m.caption, m.keywords, m.file_ref, m.access_hash, m.is_document, m.upload_date
	FROM media_items m
	JOIN redeemed r ON r.media_id = m.id`

func (r *tokenRepo) Redeem(ctx context.Context, token string) (*model.MediaItem, error) {
	m := &model.MediaItem{}
	err := r.db.QueryRow(ctx, redeemQuery, token).Scan(
		&m.ID, &m.Name, &m.Caption, &m.Keywords, &m.FileRef,
		&m.AccessHash, &m.IsDocument, &m.UploadDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка погашения токена: %w", err)
	}
	return m, nil
}

func (r *tokenRepo) CountExpiredUnused(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM access_tokens
		WHERE used = FALSE AND expires_at <= $1`

	var count int
	if err := r.db.QueryRow(ctx, query, time.Now()).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта просроченных токенов: %w", err)
	}
	return count, nil
}
