// stats.go — сервис статистики использования каталога.
// Запись поисковых событий (best-effort), фоновый пересчёт gauge-счётчиков
// и ежедневный сброс дневных агрегатов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// topTermsCount — размер топа поисковых запросов в дневной сводке.
const topTermsCount = 5

// StatsService — учёт статистики и фоновые задачи её обслуживания.
//
// Запись статистики никогда не ломает основной поток: ошибка записи
// логируется и поглощается. Фоновые задачи идемпотентны — пропущенный
// или задвоенный тик не портит агрегаты.
type StatsService struct {
	statsRepo repository.StatsRepository
	userRepo  repository.UserRepository
	logger    *slog.Logger

	refreshInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewStatsService создаёт сервис статистики.
// refreshInterval — период пересчёта gauge-счётчиков (обычно час).
func NewStatsService(
	statsRepo repository.StatsRepository,
	userRepo repository.UserRepository,
	refreshInterval time.Duration,
	logger *slog.Logger,
) *StatsService {
	return &StatsService{
		statsRepo:       statsRepo,
		userRepo:        userRepo,
		refreshInterval: refreshInterval,
		logger:          logger.With(slog.String("component", "stats_service")),
	}
}

// RecordSearch фиксирует поисковое событие пользователя.
// Best-effort: ошибки логируются и не возвращаются — статистика
// не должна ломать поиск.
func (s *StatsService) RecordSearch(ctx context.Context, userID int64, term string) {
	if err := s.statsRepo.RecordSearch(ctx, userID, term); err != nil {
		s.logger.Warn("Ошибка записи поискового события",
			slog.Int64("user_id", userID),
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
	}

	if err := s.userRepo.TouchActivity(ctx, userID); err != nil {
		// Незарегистрированный пользователь — не ошибка
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Ошибка обновления активности пользователя",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// TrackUser регистрирует пользователя или обновляет его профиль.
// Best-effort, как и RecordSearch.
func (s *StatsService) TrackUser(ctx context.Context, u *model.User) {
	if err := s.userRepo.Upsert(ctx, u); err != nil {
		s.logger.Warn("Ошибка регистрации пользователя",
			slog.Int64("user_id", u.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// GetDaily возвращает свежие дневные счётчики и топ поисковых запросов.
// Счётчики считаются напрямую из таблиц — сводка не зависит от того,
// когда последний раз отработал фоновый пересчёт.
func (s *StatsService) GetDaily(ctx context.Context) (*model.DailyStats, []model.TermCount, error) {
	stats, top, err := s.statsRepo.GetDaily(ctx, topTermsCount)
	if err != nil {
		return nil, nil, fmt.Errorf("получение дневной статистики: %w", err)
	}
	return stats, top, nil
}

// RefreshNow выполняет внеплановый пересчёт gauge-счётчиков.
func (s *StatsService) RefreshNow(ctx context.Context) error {
	if err := s.statsRepo.RefreshGauges(ctx); err != nil {
		return fmt.Errorf("пересчёт счётчиков статистики: %w", err)
	}
	return nil
}

// Start запускает фоновые задачи: периодический пересчёт gauge-счётчиков
// и сброс дневных агрегатов в местную полночь.
func (s *StatsService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Фоновые задачи статистики запущены",
		slog.Duration("refresh_interval", s.refreshInterval),
	)
}

// Stop останавливает фоновые задачи и дожидается их завершения.
func (s *StatsService) Stop() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.logger.Info("Фоновые задачи статистики остановлены")
	})
}

// run — цикл фоновых задач. Ошибки тика логируются, цикл продолжается.
func (s *StatsService) run(ctx context.Context) {
	defer close(s.done)

	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()

	// Таймер полуночи перевзводится после каждого срабатывания
	midnight := time.NewTimer(untilMidnight(time.Now()))
	defer midnight.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-refresh.C:
			if err := s.statsRepo.RefreshGauges(ctx); err != nil {
				s.logger.Error("Ошибка пересчёта счётчиков",
					slog.String("error", err.Error()),
				)
			}

		case <-midnight.C:
			if err := s.statsRepo.ResetDaily(ctx); err != nil {
				s.logger.Error("Ошибка сброса дневных агрегатов",
					slog.String("error", err.Error()),
				)
			} else {
				s.logger.Info("Дневные агрегаты сброшены")
			}
			midnight.Reset(untilMidnight(time.Now()))
		}
	}
}

// untilMidnight возвращает длительность до следующей местной полуночи.
func untilMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return next.Sub(now)
}
