package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// StatsRepository — интерфейс доступа к статистике поиска.
// Все операции записи — коммутативные upsert'ы: конкурентные писатели
// и повторные запуски фоновых задач не портят агрегат.
type StatsRepository interface {
	// RecordSearch сохраняет поисковое событие и инкрементирует
	// счётчик запроса и счётчик поисков за день.
	RecordSearch(ctx context.Context, userID int64, term string) error
	// RefreshGauges пересчитывает gauge-счётчики (пользователи, premium,
	// размер каталога) и upsert'ит строку текущего дня. Идемпотентна.
	RefreshGauges(ctx context.Context) error
	// ResetDaily обнуляет searches_today текущего дня и удаляет
	// счётчики запросов прошлых дней. Идемпотентна.
	ResetDaily(ctx context.Context) error
	// GetDaily возвращает свежие счётчики и top-N запросов текущего дня.
	GetDaily(ctx context.Context, topN int) (*model.DailyStats, []model.TermCount, error)
}

// statsRepo — реализация StatsRepository через pgx.
type statsRepo struct {
	db DBTX
	tx *TxRunner
}

// NewStatsRepository создаёт репозиторий статистики.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepo{db: pool, tx: NewTxRunner(pool)}
}

func (r *statsRepo) RecordSearch(ctx context.Context, userID int64, term string) error {
	// Событие и оба счётчика пишутся в одной транзакции:
	// частичная запись исказила бы топ запросов относительно журнала.
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		// Событие поиска (append-only журнал)
		_, err := tx.Exec(ctx, `
			INSERT INTO search_events (user_id, term)
			VALUES ($1, $2)`, userID, term)
		if err != nil {
			return fmt.Errorf("ошибка записи поискового события: %w", err)
		}

		// Счётчик запроса за день: upsert-инкремент, никогда не перезапись
		_, err = tx.Exec(ctx, `
			INSERT INTO term_counters (stat_date, term, search_count)
			VALUES (CURRENT_DATE, $1, 1)
			ON CONFLICT (stat_date, term)
			DO UPDATE SET search_count = term_counters.search_count + 1`, term)
		if err != nil {
			return fmt.Errorf("ошибка инкремента счётчика запроса: %w", err)
		}

		// Счётчик поисков за день
		_, err = tx.Exec(ctx, `
			INSERT INTO daily_stats (stat_date, searches_today)
			VALUES (CURRENT_DATE, 1)
			ON CONFLICT (stat_date)
			DO UPDATE SET searches_today = daily_stats.searches_today + 1`)
		if err != nil {
			return fmt.Errorf("ошибка инкремента счётчика поисков: %w", err)
		}

		return nil
	})
}

// refreshGaugesQuery — пересчёт gauge-счётчиков одним запросом.
// INSERT ... ON CONFLICT гарантирует, что пропущенный или задвоенный тик
// фоновой задачи не портит агрегат — повтор даёт тот же результат.
const refreshGaugesQuery = `
	WITH user_stats AS (
		SELECT
			COUNT(*) AS total_users,
			COUNT(CASE WHEN last_active >= NOW() - INTERVAL '24 hours' THEN 1 END) AS active_today,
			COUNT(CASE WHEN last_active >= NOW() - INTERVAL '30 days' THEN 1 END) AS active_month
		FROM users
	),
	premium AS (
		SELECT COUNT(*) AS premium_count
		FROM premium_users
		WHERE expiry_date > NOW()
	),
	media AS (
		SELECT COUNT(*) AS media_count
		FROM media_items
	),
	daily AS (
		SELECT COUNT(*) AS searches_count
		FROM search_events
		WHERE searched_at >= CURRENT_DATE
	)
	INSERT INTO daily_stats (
		stat_date, total_users, active_users_today, active_users_month,
		premium_users, searches_today, total_videos
	)
	SELECT CURRENT_DATE,
		user_stats.total_users, user_stats.active_today, user_stats.active_month,
		premium.premium_count, daily.searches_count, media.media_count
	FROM user_stats, premium, media, daily
	ON CONFLICT (stat_date)
	DO UPDATE SET
		total_users = EXCLUDED.total_users,
		active_users_today = EXCLUDED.active_users_today,
		active_users_month = EXCLUDED.active_users_month,
		premium_users = EXCLUDED.premium_users,
		searches_today = EXCLUDED.searches_today,
		total_videos = EXCLUDED.total_videos,
		updated_at = NOW()`

func (r *statsRepo) RefreshGauges(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, refreshGaugesQuery); err != nil {
		return fmt.Errorf("ошибка пересчёта счётчиков: %w", err)
	}
	return nil
}

func (r *statsRepo) ResetDaily(ctx context.Context) error {
	// Строка нового дня создаётся upsert'ом со сброшенным счётчиком
	_, err := r.db.Exec(ctx, `
		INSERT INTO daily_stats (stat_date, searches_today)
		VALUES (CURRENT_DATE, 0)
		ON CONFLICT (stat_date)
		DO UPDATE SET searches_today = 0, updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("ошибка сброса дневного счётчика: %w", err)
	}

	// Лидерборд прошлых дней отбрасывается
	_, err = r.db.Exec(ctx, `
		DELETE FROM term_counters
		WHERE stat_date < CURRENT_DATE`)
	if err != nil {
		return fmt.Errorf("ошибка очистки счётчиков запросов: %w", err)
	}

	return nil
}

// getDailyQuery — свежие счётчики напрямую из таблиц (один запрос).
const getDailyQuery = `
	SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM users WHERE last_active >= NOW() - INTERVAL '24 hours') AS active_today,
		(SELECT COUNT(*) FROM users WHERE last_active >= NOW() - INTERVAL '30 days') AS active_month,
		(SELECT COUNT(*) FROM premium_users WHERE expiry_date > NOW()) AS premium_users,
		(SELECT COUNT(*) FROM search_events WHERE searched_at >= CURRENT_DATE) AS searches_today,
		(SELECT COUNT(*) FROM media_items) AS total_videos,
		CURRENT_DATE`

func (r *statsRepo) GetDaily(ctx context.Context, topN int) (*model.DailyStats, []model.TermCount, error) {
	stats := &model.DailyStats{}
	err := r.db.QueryRow(ctx, getDailyQuery).Scan(
		&stats.TotalUsers, &stats.ActiveUsersToday, &stats.ActiveUsersMonth,
		&stats.PremiumUsers, &stats.SearchesToday, &stats.TotalVideos,
		&stats.StatDate,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения счётчиков: %w", err)
	}

	// Top-N ограничивается на чтении — таблица хранит все запросы дня
	rows, err := r.db.Query(ctx, `
		SELECT term, search_count
		FROM term_counters
		WHERE stat_date = CURRENT_DATE
		ORDER BY search_count DESC, term
		LIMIT $1`, topN)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения топа запросов: %w", err)
	}
	defer rows.Close()

	var top []model.TermCount
	for rows.Next() {
		var tc model.TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, nil, fmt.Errorf("ошибка сканирования топа запросов: %w", err)
		}
		top = append(top, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("ошибка итерации топа запросов: %w", err)
	}

	return stats, top, nil
}
