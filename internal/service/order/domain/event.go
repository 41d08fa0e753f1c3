// internal/service/order/domain/event.go
package domain

import "time"

// 订单生命周期事件类型。事件在事务提交后发布，仅用于通知等旁路消费，
// 不参与核心一致性。
const (
	EventOrderPlaced      = "order.placed"
	EventOrderCancelled   = "order.cancelled"
	EventPaymentCompleted = "order.payment_completed"
)

// OrderEvent 是发往消息队列的订单事件载荷。
type OrderEvent struct {
	EventID     string    `json:"eventId"`
	Type        string    `json:"type"`
	OrderID     string    `json:"orderId"`
	BuyerID     string    `json:"buyerId"`
	TotalAmount float64   `json:"totalAmount"`
	Status      Status    `json:"status"`
	OccurredAt  time.Time `json:"occurredAt"`
}
