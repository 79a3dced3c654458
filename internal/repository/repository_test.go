package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/gomediabot/internal/config"
	"github.com/bigkaa/gomediabot/internal/database"
	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool; контейнер и пул закрываются через t.Cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("mediabot_test"),
		postgres.WithUsername("mediabot"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("CM_DB_HOST", host)
	os.Setenv("CM_DB_PORT", port.Port())
	os.Setenv("CM_DB_NAME", "mediabot_test")
	os.Setenv("CM_DB_USER", "mediabot")
	os.Setenv("CM_DB_PASSWORD", "test-password")
	os.Setenv("CM_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// insertMedia добавляет запись каталога с заданным именем и ключевыми словами.
func insertMedia(t *testing.T, repo MediaRepository, name string, keywords []string) *model.MediaItem {
	t.Helper()

	m := &model.MediaItem{
		Name:       name,
		Keywords:   keywords,
		FileRef:    fmt.Sprintf("ref-%s-%d", name, time.Now().UnixNano()),
		AccessHash: "hash",
	}
	if _, err := repo.Upsert(context.Background(), m); err != nil {
		t.Fatalf("Upsert(%q): %v", name, err)
	}
	return m
}

// --- MediaRepository ---

func TestMediaUpsertKeepsIDOnReupload(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewMediaRepository(pool)

	caption := "Описание"
	m := &model.MediaItem{
		Name:       "Movie.Name.1080p",
		Caption:    &caption,
		Keywords:   []string{"movie", "name", "name 1080p"},
		FileRef:    "ref-upsert-test",
		AccessHash: "hash-1",
		IsDocument: false,
	}

	created, err := repo.Upsert(ctx, m)
	if err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if !created {
		t.Error("первая загрузка: created = false, хотели true")
	}
	if m.ID == 0 {
		t.Fatal("ID не установлен после вставки")
	}
	firstID := m.ID

	// Повторная загрузка того же file_ref обновляет запись, ID сохраняется
	m2 := &model.MediaItem{
		Name:       "Movie.Name.2160p",
		Keywords:   []string{"movie", "name", "name 2160p"},
		FileRef:    "ref-upsert-test",
		AccessHash: "hash-2",
		IsDocument: true,
	}
	created, err = repo.Upsert(ctx, m2)
	if err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}
	if created {
		t.Error("повторная загрузка: created = true, хотели false")
	}
	if m2.ID != firstID {
		t.Errorf("ID = %d, хотели %d (идентичность по file_ref)", m2.ID, firstID)
	}

	// Метаданные перезаписаны
	got, err := repo.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.Name != "Movie.Name.2160p" {
		t.Errorf("Name = %q, хотели обновлённое", got.Name)
	}
	if got.AccessHash != "hash-2" {
		t.Errorf("AccessHash = %q, хотели hash-2", got.AccessHash)
	}
	if got.Caption != nil {
		t.Errorf("Caption = %v, хотели nil после перезаписи", *got.Caption)
	}
}

func TestMediaGetByIDNotFound(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewMediaRepository(pool)

	_, err := repo.GetByID(context.Background(), 999999)
	if err != ErrNotFound {
		t.Errorf("err = %v, хотели ErrNotFound", err)
	}
}

func TestSearchRankedTiers(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewMediaRepository(pool)

	// Записи для разных уровней ранжирования запроса "avengers 2019"
	exact := insertMedia(t, repo, "avengers 2019", []string{"avengers", "2019"})
	prefix := insertMedia(t, repo, "Avengers 2019 Endgame", []string{"avengers", "2019"})
	allWords := insertMedia(t, repo, "2019 Avengers Endgame", []string{"2019", "avengers"})
	keywordOnly := insertMedia(t, repo, "Endgame Final", []string{"avengers 2019"})
	insertMedia(t, repo, "Совсем другое кино", []string{"другое"})

	items, total, err := repo.SearchRanked(ctx, "avengers 2019", []string{"avengers", "2019"}, 100, 0)
	if err != nil {
		t.Fatalf("SearchRanked() ошибка: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, хотели 4", total)
	}

	// Порядок: exact (100) → prefix (90) → allWords (85) → keywordOnly (70)
	wantOrder := []int64{exact.ID, prefix.ID, allWords.ID, keywordOnly.ID}
	for i, want := range wantOrder {
		if items[i].ID != want {
			t.Errorf("позиция %d: ID = %d, хотели %d", i, items[i].ID, want)
		}
	}
}

func TestSearchRankedSubstringAndCase(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewMediaRepository(pool)

	m := insertMedia(t, repo, "Большая Подборка Мультфильмов", []string{"подборка"})

	// Нормализованный запрос-подстрока находит запись независимо от регистра имени
	items, total, err := repo.SearchRanked(ctx, "подборка мульт", nil, 100, 0)
	if err != nil {
		t.Fatalf("SearchRanked() ошибка: %v", err)
	}
	if total != 1 || items[0].ID != m.ID {
		t.Errorf("total = %d, хотели 1 совпадение по подстроке", total)
	}
}

func TestSearchRankedPaginationPartition(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewMediaRepository(pool)

	for i := 0; i < 25; i++ {
		insertMedia(t, repo, fmt.Sprintf("serial episode %02d", i), []string{"serial"})
	}

	seen := make(map[int64]bool)
	for offset := 0; offset < 25; offset += 10 {
		items, total, err := repo.SearchRanked(ctx, "serial", []string{"serial"}, 10, offset)
		if err != nil {
			t.Fatalf("SearchRanked(offset=%d) ошибка: %v", offset, err)
		}
		if total != 25 {
			t.Errorf("total = %d, хотели 25", total)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Errorf("ID %d встретился в двух окнах", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 25 {
		t.Errorf("окна покрыли %d записей, хотели 25", len(seen))
	}
}

// --- TokenRepository ---

func TestTokenLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	mediaRepo := NewMediaRepository(pool)
	tokenRepo := NewTokenRepository(pool)

	media := insertMedia(t, mediaRepo, "Фильм с токеном", []string{"фильм"})

	tok := &model.AccessToken{
		Token:     "integration-token-1",
		MediaID:   media.ID,
		UserID:    1001,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := tokenRepo.Insert(ctx, tok); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if tok.ID == 0 || tok.CreatedAt.IsZero() {
		t.Error("ID/CreatedAt не установлены после вставки")
	}

	// Коллизия значения токена — ErrConflict
	dup := &model.AccessToken{
		Token:     "integration-token-1",
		MediaID:   media.ID,
		UserID:    1002,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := tokenRepo.Insert(ctx, dup); err == nil {
		t.Error("дубликат токена вставился без ошибки")
	}

	// Погашение возвращает привязанный медиафайл
	got, err := tokenRepo.Redeem(ctx, "integration-token-1")
	if err != nil {
		t.Fatalf("Redeem() ошибка: %v", err)
	}
	if got.ID != media.ID || got.FileRef != media.FileRef {
		t.Errorf("Redeem вернул ID = %d, хотели %d", got.ID, media.ID)
	}

	// Повторное погашение — ErrNotFound (одноразовость)
	if _, err := tokenRepo.Redeem(ctx, "integration-token-1"); err != ErrNotFound {
		t.Errorf("повторный Redeem: err = %v, хотели ErrNotFound", err)
	}
}

func TestTokenExpiredNotRedeemable(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	mediaRepo := NewMediaRepository(pool)
	tokenRepo := NewTokenRepository(pool)

	media := insertMedia(t, mediaRepo, "Фильм с просроченным токеном", nil)

	expired := &model.AccessToken{
		Token:     "integration-token-expired",
		MediaID:   media.ID,
		UserID:    1001,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := tokenRepo.Insert(ctx, expired); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	if _, err := tokenRepo.Redeem(ctx, "integration-token-expired"); err != ErrNotFound {
		t.Errorf("Redeem просроченного: err = %v, хотели ErrNotFound", err)
	}

	// Просроченный непогашенный токен остаётся в таблице (аудит)
	count, err := tokenRepo.CountExpiredUnused(ctx)
	if err != nil {
		t.Fatalf("CountExpiredUnused() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("CountExpiredUnused = %d, хотели 1", count)
	}
}

func TestTokenConcurrentRedeemExactlyOnce(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	mediaRepo := NewMediaRepository(pool)
	tokenRepo := NewTokenRepository(pool)

	media := insertMedia(t, mediaRepo, "Фильм для гонки", nil)

	tok := &model.AccessToken{
		Token:     "integration-token-race",
		MediaID:   media.ID,
		UserID:    1001,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := tokenRepo.Insert(ctx, tok); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tokenRepo.Redeem(ctx, "integration-token-race")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else if err != ErrNotFound {
			t.Errorf("неожиданная ошибка погашения: %v", err)
		}
	}
	if success != 1 {
		t.Errorf("успешных погашений %d, хотели ровно 1", success)
	}
}

// --- StatsRepository / UserRepository ---

func TestStatsRecordAndDaily(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	statsRepo := NewStatsRepository(pool)
	userRepo := NewUserRepository(pool)

	username := "tester"
	if err := userRepo.Upsert(ctx, &model.User{UserID: 1001, Username: &username}); err != nil {
		t.Fatalf("Upsert пользователя: %v", err)
	}

	// Три поиска: два одного запроса, один другого
	for _, term := range []string{"avengers", "avengers", "batman"} {
		if err := statsRepo.RecordSearch(ctx, 1001, term); err != nil {
			t.Fatalf("RecordSearch(%q): %v", term, err)
		}
	}

	if err := statsRepo.RefreshGauges(ctx); err != nil {
		t.Fatalf("RefreshGauges() ошибка: %v", err)
	}

	stats, top, err := statsRepo.GetDaily(ctx, 5)
	if err != nil {
		t.Fatalf("GetDaily() ошибка: %v", err)
	}
	if stats.SearchesToday != 3 {
		t.Errorf("SearchesToday = %d, хотели 3", stats.SearchesToday)
	}
	if stats.TotalUsers != 1 || stats.ActiveUsersToday != 1 {
		t.Errorf("TotalUsers = %d, ActiveUsersToday = %d, хотели 1 и 1", stats.TotalUsers, stats.ActiveUsersToday)
	}
	if len(top) != 2 || top[0].Term != "avengers" || top[0].Count != 2 {
		t.Errorf("top = %+v, хотели avengers:2 первым", top)
	}

	// Сброс обнуляет дневной счётчик, идемпотентен
	if err := statsRepo.ResetDaily(ctx); err != nil {
		t.Fatalf("ResetDaily() ошибка: %v", err)
	}
	if err := statsRepo.ResetDaily(ctx); err != nil {
		t.Fatalf("повторный ResetDaily() ошибка: %v", err)
	}
}

func TestUserUpsertAndTouch(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	userRepo := NewUserRepository(pool)

	u := &model.User{UserID: 2002}
	if err := userRepo.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if u.JoinedDate.IsZero() || u.LastActive.IsZero() {
		t.Error("JoinedDate/LastActive не установлены")
	}
	joined := u.JoinedDate

	// Повторный upsert обновляет активность, но не дату регистрации
	if err := userRepo.Upsert(ctx, u); err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}
	if !u.JoinedDate.Equal(joined) {
		t.Errorf("JoinedDate изменилась при повторном upsert: %v → %v", joined, u.JoinedDate)
	}

	if err := userRepo.TouchActivity(ctx, 2002); err != nil {
		t.Fatalf("TouchActivity() ошибка: %v", err)
	}

	// Незарегистрированный пользователь — ErrNotFound
	if err := userRepo.TouchActivity(ctx, 9999); err != ErrNotFound {
		t.Errorf("TouchActivity(9999): err = %v, хотели ErrNotFound", err)
	}
}
