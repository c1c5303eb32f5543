// Package cache содержит кеш средних цен подкатегорий в Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	keyPrefix  = "price:mean"
	defaultTTL = 5 * time.Minute
)

// PriceCache хранит средние цены в Redis с ограниченным сроком жизни.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache подключается к Redis по адресу addr и проверяет соединение.
func NewPriceCache(ctx context.Context, addr string, ttl time.Duration) (*PriceCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewPriceCacheFromClient(rdb, ttl), nil
}

// NewPriceCacheFromClient оборачивает готовый клиент. Нулевой ttl заменяется значением по умолчанию.
func NewPriceCacheFromClient(rdb *redis.Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PriceCache{rdb: rdb, ttl: ttl}
}

// meanKey учитывает регистр так же, как поиск услуги в каталоге магазина.
func meanKey(category, subCategory string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, category, subCategory)
}

// GetMean возвращает закешированную среднюю цену. Второе значение false, если ключа нет.
func (c *PriceCache) GetMean(ctx context.Context, category, subCategory string) (decimal.Decimal, bool, error) {
	val, err := c.rdb.Get(ctx, meanKey(category, subCategory)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get mean: %w", err)
	}

	mean, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse cached mean %q: %w", val, err)
	}
	return mean, true, nil
}

// SetMean сохраняет среднюю цену на время ttl.
func (c *PriceCache) SetMean(ctx context.Context, category, subCategory string, mean decimal.Decimal) error {
	if err := c.rdb.Set(ctx, meanKey(category, subCategory), mean.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set mean: %w", err)
	}
	return nil
}

// DeleteMean сбрасывает закешированную среднюю цену подкатегории.
func (c *PriceCache) DeleteMean(ctx context.Context, category, subCategory string) error {
	if err := c.rdb.Del(ctx, meanKey(category, subCategory)).Err(); err != nil {
		return fmt.Errorf("delete mean: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (c *PriceCache) Close() error {
	return c.rdb.Close()
}
