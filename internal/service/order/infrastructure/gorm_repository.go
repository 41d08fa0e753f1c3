// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"bazaar/internal/service/order/domain"
)

// GormUnitOfWork 用 gorm 的事务实现显式的原子作用域。
// fn 返回错误或 panic 时整个事务回滚，任何退出路径都有清理保证。
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, domain.Repositories{
			Products: NewGormProductRepository(tx),
			Orders:   NewGormOrderRepository(tx),
		})
	})
}

// GormProductRepository 是 domain.ProductRepository 的 GORM 实现。
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "find products by ids")
	}
	out := make(map[string]*domain.Product, len(models))
	for i := range models {
		out[models[i].ID] = toDomainProduct(&models[i])
	}
	return out, nil
}

// Reserve 用单条条件 UPDATE 完成「校验并扣减」:
//
//	UPDATE products SET available_inventory = available_inventory - ?
//	WHERE id = ? AND is_active = 1 AND available_inventory >= ?
//
// 谓词在扣减时刻重新校验库存，并发下绝不会超卖；
// 先 SELECT 再 UPDATE 的写法是典型的 TOCTOU 竞态，这里刻意避开。
func (r *GormProductRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND is_active = ? AND available_inventory >= ?", productID, true, quantity).
		UpdateColumn("available_inventory", gorm.Expr("available_inventory - ?", quantity))
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "reserve %d of product %s", quantity, productID)
	}
	if res.RowsAffected == 0 {
		// 区分「商品不存在/已下架」和「库存不足」
		var count int64
		if err := r.db.WithContext(ctx).Model(&ProductModel{}).
			Where("id = ? AND is_active = ?", productID, true).
			Count(&count).Error; err != nil {
			return pkgerrors.Wrapf(err, "classify reserve failure for product %s", productID)
		}
		if count == 0 {
			return domain.ProductNotFoundError(productID)
		}
		return domain.InsufficientInventoryError(productID, quantity)
	}
	return nil
}

// Restore 无条件归还库存。每笔预占只能归还一次，由调用方保证。
func (r *GormProductRepository) Restore(ctx context.Context, productID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", productID).
		UpdateColumn("available_inventory", gorm.Expr("available_inventory + ?", quantity))
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "restore %d of product %s", quantity, productID)
	}
	if res.RowsAffected == 0 {
		return domain.ProductNotFoundError(productID)
	}
	return nil
}

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return pkgerrors.Wrapf(err, "save order %s", order.ID)
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrapf(err, "find order %s", id)
	}
	return toDomainOrder(&model), nil
}

// Update 只更新生命周期可变的列，订单行在创建后不可变。
func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"status":          string(order.Status),
		"payment_status":  string(order.PaymentStatus),
		"tracking_number": order.TrackingNumber,
		"updated_at":      order.UpdatedAt,
	})
	if res.Error != nil {
		return pkgerrors.Wrapf(res.Error, "update order %s", order.ID)
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *GormOrderRepository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&OrderModel{})
	if q.BuyerID != "" {
		query = query.Where("buyer_id = ?", q.BuyerID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", string(q.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count orders")
	}

	var models []OrderModel
	err := query.Preload("Lines").
		Order("ordered_at DESC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list orders")
	}

	out := make([]*domain.Order, 0, len(models))
	for i := range models {
		out = append(out, toDomainOrder(&models[i]))
	}
	return out, total, nil
}

// AutoMigrate 建表。仅供本地开发和测试环境使用。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductModel{}, &OrderModel{}, &OrderLineModel{})
}
