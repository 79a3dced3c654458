package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// mockStatsRepo — мок StatsRepository для unit-тестов.
type mockStatsRepo struct {
	recordSearchFn func(ctx context.Context, userID int64, term string) error
	getDailyFn     func(ctx context.Context, topN int) (*model.DailyStats, []model.TermCount, error)
	refreshFn      func(ctx context.Context) error
	resetFn        func(ctx context.Context) error
}

func (m *mockStatsRepo) RecordSearch(ctx context.Context, userID int64, term string) error {
	if m.recordSearchFn != nil {
		return m.recordSearchFn(ctx, userID, term)
	}
	return nil
}

func (m *mockStatsRepo) RefreshGauges(ctx context.Context) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return nil
}

func (m *mockStatsRepo) ResetDaily(ctx context.Context) error {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return nil
}

func (m *mockStatsRepo) GetDaily(ctx context.Context, topN int) (*model.DailyStats, []model.TermCount, error) {
	if m.getDailyFn != nil {
		return m.getDailyFn(ctx, topN)
	}
	return &model.DailyStats{}, nil, nil
}

// mockUserRepo — мок UserRepository для unit-тестов.
type mockUserRepo struct {
	upsertFn func(ctx context.Context, u *model.User) error
	touchFn  func(ctx context.Context, userID int64) error
}

func (m *mockUserRepo) Upsert(ctx context.Context, u *model.User) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, u)
	}
	return nil
}

func (m *mockUserRepo) TouchActivity(ctx context.Context, userID int64) error {
	if m.touchFn != nil {
		return m.touchFn(ctx, userID)
	}
	return nil
}

func newTestStatsService(statsRepo repository.StatsRepository, userRepo repository.UserRepository) *StatsService {
	return NewStatsService(statsRepo, userRepo, time.Hour, slog.Default())
}

func TestRecordSearchWritesEventAndActivity(t *testing.T) {
	var gotUserID int64
	var gotTerm string
	touched := false

	statsRepo := &mockStatsRepo{
		recordSearchFn: func(_ context.Context, userID int64, term string) error {
			gotUserID = userID
			gotTerm = term
			return nil
		},
	}
	userRepo := &mockUserRepo{
		touchFn: func(_ context.Context, userID int64) error {
			touched = true
			return nil
		},
	}

	svc := newTestStatsService(statsRepo, userRepo)
	svc.RecordSearch(context.Background(), 1001, "avengers")

	if gotUserID != 1001 || gotTerm != "avengers" {
		t.Errorf("userID = %d, term = %q", gotUserID, gotTerm)
	}
	if !touched {
		t.Error("активность пользователя не обновлена")
	}
}

func TestRecordSearchSwallowsErrors(t *testing.T) {
	// Статистика — best-effort: ошибки хранилища не должны паниковать
	// и не должны распространяться
	statsRepo := &mockStatsRepo{
		recordSearchFn: func(context.Context, int64, string) error {
			return errors.New("postgres недоступен")
		},
	}
	userRepo := &mockUserRepo{
		touchFn: func(context.Context, int64) error {
			return repository.ErrNotFound
		},
	}

	svc := newTestStatsService(statsRepo, userRepo)
	svc.RecordSearch(context.Background(), 1001, "avengers")
}

func TestRecordSearchIgnoresWrappedUnknownUser(t *testing.T) {
	// Незарегистрированный пользователь — не ошибка, даже если
	// репозиторий вернул обёрнутый ErrNotFound
	userRepo := &mockUserRepo{
		touchFn: func(context.Context, int64) error {
			return fmt.Errorf("ошибка обновления активности: %w", repository.ErrNotFound)
		},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewStatsService(&mockStatsRepo{}, userRepo, time.Hour, logger)

	svc.RecordSearch(context.Background(), 1001, "avengers")

	if strings.Contains(buf.String(), "активности") {
		t.Errorf("обёрнутый ErrNotFound залогирован как ошибка: %s", buf.String())
	}
}

func TestGetDailyRequestsTopFive(t *testing.T) {
	statsRepo := &mockStatsRepo{
		getDailyFn: func(_ context.Context, topN int) (*model.DailyStats, []model.TermCount, error) {
			if topN != topTermsCount {
				t.Errorf("topN = %d, ожидалось %d", topN, topTermsCount)
			}
			return &model.DailyStats{SearchesToday: 7}, []model.TermCount{{Term: "avengers", Count: 3}}, nil
		},
	}

	svc := newTestStatsService(statsRepo, &mockUserRepo{})
	stats, top, err := svc.GetDaily(context.Background())
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if stats.SearchesToday != 7 {
		t.Errorf("SearchesToday = %d, ожидалось 7", stats.SearchesToday)
	}
	if len(top) != 1 || top[0].Term != "avengers" {
		t.Errorf("top = %+v", top)
	}
}

func TestStartStopRunsRefreshTicks(t *testing.T) {
	ticks := make(chan struct{}, 10)
	statsRepo := &mockStatsRepo{
		refreshFn: func(context.Context) error {
			select {
			case ticks <- struct{}{}:
			default:
			}
			return nil
		},
	}

	svc := NewStatsService(statsRepo, &mockUserRepo{}, 20*time.Millisecond, slog.Default())
	svc.Start()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("фоновый пересчёт не выполнился за секунду")
	}

	svc.Stop()
	// Повторный Stop безопасен
	svc.Stop()
}

func TestUntilMidnightWithinDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 23, 59, 0, 0, time.UTC)
	d := untilMidnight(now)
	if d != time.Minute {
		t.Errorf("untilMidnight = %v, ожидалась 1 минута", d)
	}

	// Для любого момента результат в (0, 24h]
	d = untilMidnight(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC))
	if d != 24*time.Hour {
		t.Errorf("untilMidnight(полночь) = %v, ожидалось 24h", d)
	}
}
