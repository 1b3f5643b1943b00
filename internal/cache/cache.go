// Package cache реализует кэш строковых значений с TTL.
package cache

import (
	"context"
	"time"
)

// Cache хранит значения с ограниченным временем жизни.
type Cache interface {
	// Get возвращает значение и признак попадания. Истёкшая запись считается промахом.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set записывает значение с TTL. ttl <= 0 не сохраняет запись.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	Close() error
}

// OrderKey возвращает ключ кэша для заказа.
func OrderKey(id string) string {
	return "order:" + id
}
