// internal/service/recommendation/domain/repository.go
package domain

import "context"

// InteractionRepository 是行为记录的持久化接口。
type InteractionRepository interface {
	Save(ctx context.Context, interaction *Interaction) error

	// UserProductScores 返回 用户 -> 商品 -> 加权行为得分 的聚合矩阵。
	// 得分是该用户对该商品所有行为权重之和。
	UserProductScores(ctx context.Context) (map[string]map[string]float64, error)
}
