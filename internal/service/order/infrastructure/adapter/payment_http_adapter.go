// internal/service/order/infrastructure/adapter/payment_http_adapter.go
package adapter

import (
	"context"
	"fmt"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/service/order/domain/port"
)

const authorizePath = "/v1/authorize"

// PaymentHTTPAdapter 是 port.PaymentGateway 的 HTTP 实现。
// 网关明确的拒绝（success=false）不是错误；只有不可达或响应
// 不合法才返回 error，由上层的重试和熔断处理。
type PaymentHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, baseURL: baseURL}
}

type authorizeRequest struct {
	Amount    float64 `json:"amount"`
	MethodRef string  `json:"methodRef"`
}

type authorizeResponse struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

func (a *PaymentHTTPAdapter) Authorize(ctx context.Context, amount float64, methodRef string) (*port.AuthorizeResult, error) {
	var resp authorizeResponse
	err := a.client.PostJSON(ctx, a.baseURL+authorizePath, authorizeRequest{
		Amount:    amount,
		MethodRef: methodRef,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("payment gateway authorize: %w", err)
	}
	return &port.AuthorizeResult{Success: resp.Success, Reference: resp.Reference}, nil
}
