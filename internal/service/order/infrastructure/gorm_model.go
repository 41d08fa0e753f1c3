// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import "time"

// ProductModel 对应 products 表。available_inventory 带 CHECK 约束，
// 配合条件 UPDATE，数据库层面保证永不为负。
type ProductModel struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	Name               string  `gorm:"size:255;not null"`
	Price              float64 `gorm:"not null"`
	AvailableInventory int     `gorm:"not null;default:0;check:available_inventory >= 0"`
	IsActive           bool    `gorm:"not null;default:true"`
	Category           string  `gorm:"size:64;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (ProductModel) TableName() string { return "products" }

// OrderModel 对应 orders 表。订单永不物理删除（审计留存），
// 因此没有 DeletedAt。
type OrderModel struct {
	ID              string  `gorm:"primaryKey;size:36"`
	BuyerID         string  `gorm:"size:36;not null;index"`
	TotalAmount     float64 `gorm:"not null"`
	Status          string  `gorm:"size:16;not null;index"`
	PaymentStatus   string  `gorm:"size:16;not null"`
	ShippingAddress string  `gorm:"size:512;not null"`
	PaymentMethod   string  `gorm:"size:64"`
	TrackingNumber  string  `gorm:"size:32"`
	Notes           string  `gorm:"size:1024"`
	OrderedAt       time.Time
	UpdatedAt       time.Time

	Lines []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderLineModel 对应 order_lines 表，LineNo 保持行的声明顺序。
type OrderLineModel struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	OrderID   string  `gorm:"size:36;not null;index"`
	LineNo    int     `gorm:"not null"`
	ProductID string  `gorm:"size:36;not null;index"`
	Quantity  int     `gorm:"not null"`
	UnitPrice float64 `gorm:"not null"`
	Name      string  `gorm:"size:255;not null"`
}

func (OrderLineModel) TableName() string { return "order_lines" }
