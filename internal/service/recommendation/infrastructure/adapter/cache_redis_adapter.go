// internal/service/recommendation/infrastructure/adapter/cache_redis_adapter.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bazaar/internal/pkg/redis"
	"bazaar/internal/service/recommendation/domain"
)

const resultTTL = 10 * time.Minute

// ResultCacheRedisAdapter 用 Redis 缓存按用户计算好的推荐列表。
// 只依赖 TTL 过期，与原始实现的缓存行为一致。
type ResultCacheRedisAdapter struct {
	client *redis.Client
}

func NewResultCacheRedisAdapter(client *redis.Client) *ResultCacheRedisAdapter {
	return &ResultCacheRedisAdapter{client: client}
}

func cacheKey(userID string, limit int) string {
	return fmt.Sprintf("recs:{%s}:%d", userID, limit)
}

func (a *ResultCacheRedisAdapter) Get(ctx context.Context, userID string, limit int) ([]domain.ScoredProduct, error) {
	var items []domain.ScoredProduct
	err := a.client.GetJSON(ctx, cacheKey(userID, limit), &items)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return items, nil
}

func (a *ResultCacheRedisAdapter) Set(ctx context.Context, userID string, limit int, items []domain.ScoredProduct) error {
	return a.client.SetJSON(ctx, cacheKey(userID, limit), items, resultTTL)
}
