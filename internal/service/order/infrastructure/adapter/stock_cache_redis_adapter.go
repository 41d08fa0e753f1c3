// internal/service/order/infrastructure/adapter/stock_cache_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"time"

	"bazaar/internal/pkg/redis"
)

const stockCacheTTL = 30 * time.Second

// StockCacheRedisAdapter 缓存商品的可用库存读数。
// 写路径只做失效（预占/回补提交后删除键），真实值永远以数据库为准，
// 读路径的短 TTL 限制了最坏情况下的陈旧窗口。
type StockCacheRedisAdapter struct {
	client *redis.Client
}

func NewStockCacheRedisAdapter(client *redis.Client) *StockCacheRedisAdapter {
	return &StockCacheRedisAdapter{client: client}
}

func stockKey(productID string) string {
	return fmt.Sprintf("stock:{%s}", productID)
}

// Invalidate 删除一组商品的库存缓存键。
func (a *StockCacheRedisAdapter) Invalidate(ctx context.Context, productIDs ...string) error {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, stockKey(id))
	}
	return a.client.Del(ctx, keys...)
}

// Get 读取缓存的库存读数；未命中返回 redis.ErrCacheMiss。
func (a *StockCacheRedisAdapter) Get(ctx context.Context, productID string) (int, error) {
	var stock int
	if err := a.client.GetJSON(ctx, stockKey(productID), &stock); err != nil {
		return 0, err
	}
	return stock, nil
}

// Set 写入一次库存读数。
func (a *StockCacheRedisAdapter) Set(ctx context.Context, productID string, stock int) error {
	return a.client.SetJSON(ctx, stockKey(productID), stock, stockCacheTTL)
}
