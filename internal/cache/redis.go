// Пакет cache — кэш результатов поиска в Redis (cache-aside).
// Каждый экземпляр Catalog Module разделяет один Redis — кэш общий,
// в отличие от per-instance LRU метаданных в service.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создаёт клиент Redis и проверяет доступность через ping.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	logger.Info("Подключение к Redis установлено",
		slog.String("addr", addr),
		slog.Int("db", db),
	)

	return client, nil
}

// ReadinessChecker — проверка готовности Redis для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	client *redis.Client
}

// NewReadinessChecker создаёт проверку готовности Redis.
func NewReadinessChecker(client *redis.Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady проверяет подключение к Redis через ping.
// Redis не критичен для работы (кэш деградирует до промахов),
// поэтому недоступность — degraded, а не fail.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return "degraded", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "подключение активно"
}
