// internal/service/order/domain/port/payment.go
package port

import "context"

// AuthorizeResult 是支付网关对一次扣款请求的应答。
// Success 为 false 表示网关明确拒绝（卡被拒等），不是基础设施故障。
type AuthorizeResult struct {
	Success   bool
	Reference string
}

// PaymentGateway 是支付网关的出站端口。
type PaymentGateway interface {
	// Authorize 请求按 amount 扣款，methodRef 指向买家的支付方式。
	// 返回错误表示网关不可达或响应不合法，属于基础设施故障。
	Authorize(ctx context.Context, amount float64, methodRef string) (*AuthorizeResult, error)
}
