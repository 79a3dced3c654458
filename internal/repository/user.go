package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// UserRepository — учёт пользователей бота.
// Catalog Module только фиксирует активность; управление подписками — внешнее.
type UserRepository interface {
	// Upsert создаёт пользователя или обновляет его профиль и last_active.
	Upsert(ctx context.Context, u *model.User) error
	// TouchActivity обновляет last_active существующего пользователя.
	TouchActivity(ctx context.Context, userID int64) error
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Upsert(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_active = NOW()
		RETURNING joined_date, last_active`

	err := r.db.QueryRow(ctx, query, u.UserID, u.Username, u.FirstName, u.LastName).
		Scan(&u.JoinedDate, &u.LastActive)
	if err != nil {
		return fmt.Errorf("ошибка upsert пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) TouchActivity(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET last_active = NOW()
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("ошибка обновления активности: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
