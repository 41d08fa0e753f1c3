// internal/service/order/domain/product.go
package domain

import "time"

// Product 是商品实体。AvailableInventory 只能通过仓储的
// Reserve/Restore 原子操作变更，任何调用方都不得读出后再写回。
type Product struct {
	ID                 string
	Name               string
	Price              float64
	AvailableInventory int
	IsActive           bool
	Category           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reservable 报告该商品当前能否支撑一次 quantity 的预占。
// 仅用于前置展示，真正的判定发生在数据层的条件扣减里。
func (p *Product) Reservable(quantity int) bool {
	return p.IsActive && p.AvailableInventory >= quantity
}
