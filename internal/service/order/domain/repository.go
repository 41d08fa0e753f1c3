// internal/service/order/domain/repository.go
package domain

import "context"

// ProductRepository 是商品侧的持久化接口，同时承担库存台账的职责。
// Reserve 是整个子系统唯一允许的扣减入口。
type ProductRepository interface {
	// FindByIDs 批量解析商品，返回 id -> 商品 的映射；缺失的 id 不在映射中。
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)

	// Reserve 原子地执行「校验并扣减」: 仅当商品存在、在售且
	// availableInventory >= quantity 时扣减成功，否则返回
	// ErrProductNotFound 或 ErrInsufficientInventory。
	// 校验与扣减必须是同一个原子操作，读出后再写回会在并发下超卖。
	Reserve(ctx context.Context, productID string, quantity int) error

	// Restore 无条件将 quantity 归还到可用库存。
	// 每笔预占只能归还一次，调用方不得对同一行重复调用。
	Restore(ctx context.Context, productID string, quantity int) error
}

// OrderRepository 是订单聚合的持久化接口。
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	List(ctx context.Context, q ListQuery) ([]*Order, int64, error)
}

// ListQuery 描述订单查询的过滤与分页条件。BuyerID 为空表示管理员全局查询。
type ListQuery struct {
	BuyerID string
	Status  Status
	Limit   int
	Offset  int
}

// Repositories 是一次事务内可用的仓储集合。
type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
}

// UnitOfWork 提供一个显式的事务作用域: fn 返回 nil 则整体提交，
// 返回错误或发生 panic 则整体回滚，任何退出路径都保证清理。
// fn 中的所有写操作要么全部生效，要么全部不生效。
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
