// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/resilience"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/domain"
)

// OrderHandler 封装订单服务的 HTTP 处理器。
// 它只负责解码请求、调用应用服务、把领域错误码映射为 HTTP 状态码。
type OrderHandler struct {
	service *application.OrderApplicationService
}

func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /orders", h.placeOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /orders/{id}/status", h.transitionStatus)
	mux.HandleFunc("POST /orders/{id}/charge", h.chargeOrder)
}

func (h *OrderHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ValidationError("malformed request body"))
		return
	}

	order, err := h.service.PlaceOrder(ctx, &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	q := r.URL.Query()
	req := &application.ListOrdersRequest{
		BuyerID: q.Get("buyerId"),
		Status:  domain.Status(q.Get("status")),
		Limit:   atoiDefault(q.Get("limit"), 20),
		Offset:  atoiDefault(q.Get("offset"), 0),
	}
	resp, err := h.service.ListOrders(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var body struct {
		BuyerID string `json:"buyerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ValidationError("malformed request body"))
		return
	}

	order, err := h.service.CancelOrder(ctx, r.PathValue("id"), body.BuyerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var body struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, domain.ValidationError("malformed request body"))
		return
	}

	order, err := h.service.TransitionStatus(ctx, r.PathValue("id"), body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) chargeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	order, err := h.service.ChargeOrder(ctx, r.PathValue("id"))
	if err != nil && order == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		// 支付被拒: 订单已记录 failed，响应同时携带错误码和订单
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"code":  domain.ErrorCode(err),
			"order": order,
		})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// writeError 把领域错误码映射为 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// 下游正在卸载负载，给出独立的错误码便于网关侧降级
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"code":    "CIRCUIT_OPEN",
			"message": err.Error(),
		})
		return
	}

	status := http.StatusInternalServerError
	switch domain.ErrorCode(err) {
	case domain.ErrValidation.Code:
		status = http.StatusBadRequest
	case domain.ErrProductNotFound.Code, domain.ErrOrderNotFound.Code:
		status = http.StatusNotFound
	case domain.ErrInsufficientInventory.Code,
		domain.ErrInvalidStatusTransition.Code,
		domain.ErrOrderAlreadyCancelled.Code,
		domain.ErrOrderAlreadyDelivered.Code,
		domain.ErrCannotCancel.Code,
		domain.ErrPaymentAlreadyCompleted.Code:
		status = http.StatusConflict
	case domain.ErrPaymentFailed.Code:
		status = http.StatusPaymentRequired
	}

	writeJSON(w, status, map[string]string{
		"code":    domain.ErrorCode(err),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Msg("failed to encode response")
	}
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
