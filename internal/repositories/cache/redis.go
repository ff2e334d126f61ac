package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const balanceTTL = 5 * time.Minute

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewRedisClient(cfg *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisBalanceCache caches account balances as decimal strings.
type RedisBalanceCache struct {
	client *redis.Client
}

func NewRedisBalanceCache(client *redis.Client) *RedisBalanceCache {
	return &RedisBalanceCache{client: client}
}

func (c *RedisBalanceCache) GetBalance(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	val, err := c.client.Get(ctx, balanceKey(accountID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(val)
}

func (c *RedisBalanceCache) SetBalance(ctx context.Context, accountID uint, balance decimal.Decimal) error {
	return c.client.Set(ctx, balanceKey(accountID), balance.String(), balanceTTL).Err()
}

func (c *RedisBalanceCache) InvalidateBalance(ctx context.Context, accountID uint) error {
	return c.client.Del(ctx, balanceKey(accountID)).Err()
}

func balanceKey(accountID uint) string {
	return fmt.Sprintf("account:balance:%d", accountID)
}
