// internal/service/order/application/dto.go
package application

import "bazaar/internal/service/order/domain"

// PlaceOrderRequest 是下单请求。接口层保证字段已通过格式校验，
// 业务不变量（行数、数量区间、商品存在性）由核心再次强制。
type PlaceOrderRequest struct {
	BuyerID         string           `json:"buyerId"`
	Lines           []PlaceOrderLine `json:"lines"`
	ShippingAddress string           `json:"shippingAddress"`
	PaymentMethod   string           `json:"paymentMethod"`
	Notes           string           `json:"notes,omitempty"`
}

// PlaceOrderLine 是下单请求中的一行，价格由服务端快照，客户端不可指定。
type PlaceOrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ListOrdersRequest 是订单查询请求。
type ListOrdersRequest struct {
	BuyerID string
	Status  domain.Status
	Limit   int
	Offset  int
}

// ListOrdersResponse 携带一页订单和总数。
type ListOrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
	Total  int64           `json:"total"`
}
