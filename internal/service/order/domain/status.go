// internal/service/order/domain/status.go
package domain

// Status 定义了订单的生命周期状态。
type Status string

const (
	StatusPending    Status = "pending"    // 已创建，等待支付确认
	StatusProcessing Status = "processing" // 支付完成，备货中
	StatusShipped    Status = "shipped"    // 已发货
	StatusDelivered  Status = "delivered"  // 已送达（终态）
	StatusCancelled  Status = "cancelled"  // 已取消（终态）
)

// PaymentStatus 定义了订单的支付状态。
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// CanTransitionTo 以穷举的方式给出状态迁移表，
// 编译器会强制每个状态都有明确的（可能为空的）出边集合。
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered
	case StatusDelivered, StatusCancelled:
		// 终态：不允许任何迁移
		return false
	default:
		return false
	}
}

// IsTerminal 报告该状态是否为终态。
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Valid 报告该状态是否为已知取值。
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}
