package service

import (
	"testing"
	"time"

	"github.com/bigkaa/gomediabot/internal/domain/model"
)

// TestCacheService_GetSet проверяет базовые операции Get/Set.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	item := &model.MediaItem{
		ID:      1,
		Name:    "Movie.Name.1080p",
		FileRef: "ref-1",
	}

	// Cache miss
	_, ok := cache.Get(1)
	if ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	// Set + cache hit
	cache.Set(1, item)
	got, ok := cache.Get(1)
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.ID != 1 {
		t.Errorf("ID = %d, ожидался 1", got.ID)
	}
	if got.Name != "Movie.Name.1080p" {
		t.Errorf("Name = %q, ожидался %q", got.Name, "Movie.Name.1080p")
	}
}

// TestCacheService_Delete проверяет удаление из кэша (инвалидация при re-upload).
func TestCacheService_Delete(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	cache.Set(7, &model.MediaItem{ID: 7, Name: "Старая версия"})

	// Проверяем что запись есть
	_, ok := cache.Get(7)
	if !ok {
		t.Fatal("ожидался cache hit перед удалением")
	}

	// Удаляем
	cache.Delete(7)

	// Проверяем что записи больше нет
	_, ok = cache.Get(7)
	if ok {
		t.Fatal("ожидался cache miss после Delete")
	}
}

// TestCacheService_TTLExpiration проверяет автоматическое истечение TTL.
func TestCacheService_TTLExpiration(t *testing.T) {
	// Короткий TTL = 50ms для теста
	cache := NewCacheService(100, 50*time.Millisecond)

	cache.Set(3, &model.MediaItem{ID: 3, Name: "Временная запись"})

	// Сразу после Set — должен быть hit
	_, ok := cache.Get(3)
	if !ok {
		t.Fatal("ожидался cache hit сразу после Set")
	}

	// Ждём истечения TTL
	time.Sleep(100 * time.Millisecond)

	// После истечения TTL — должен быть miss
	_, ok = cache.Get(3)
	if ok {
		t.Fatal("ожидался cache miss после истечения TTL")
	}
}

// TestCacheService_Eviction проверяет вытеснение при превышении maxSize.
func TestCacheService_Eviction(t *testing.T) {
	// Кэш на 2 записи
	cache := NewCacheService(2, 5*time.Minute)

	cache.Set(1, &model.MediaItem{ID: 1})
	cache.Set(2, &model.MediaItem{ID: 2})

	// Обе записи в кэше
	if _, ok := cache.Get(1); !ok {
		t.Fatal("ожидался cache hit для записи 1")
	}
	if _, ok := cache.Get(2); !ok {
		t.Fatal("ожидался cache hit для записи 2")
	}

	// Добавляем третью — одна из старых вытесняется (LRU)
	cache.Set(3, &model.MediaItem{ID: 3})

	if _, ok := cache.Get(3); !ok {
		t.Fatal("ожидался cache hit для записи 3")
	}
}

// TestCacheService_Update проверяет обновление записи в кэше.
func TestCacheService_Update(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	cache.Set(5, &model.MediaItem{ID: 5, Name: "Старое имя"})
	cache.Set(5, &model.MediaItem{ID: 5, Name: "Новое имя"})

	got, ok := cache.Get(5)
	if !ok {
		t.Fatal("ожидался cache hit после обновления")
	}
	if got.Name != "Новое имя" {
		t.Errorf("Name = %q, ожидался %q", got.Name, "Новое имя")
	}
}
