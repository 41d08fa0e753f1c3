// internal/service/recommendation/domain/port/cache.go
package port

import (
	"context"

	"bazaar/internal/service/recommendation/domain"
)

// ResultCache 缓存按用户计算好的推荐列表。
// Get 未命中时返回 (nil, nil)，由调用方重新计算。
type ResultCache interface {
	Get(ctx context.Context, userID string, limit int) ([]domain.ScoredProduct, error)
	Set(ctx context.Context, userID string, limit int, items []domain.ScoredProduct) error
}
