// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/resilience"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"
)

// InteractionRecorder 在订单成功创建后记录购买行为，供推荐系统使用。
// 纯旁路依赖，失败不影响订单。
type InteractionRecorder interface {
	RecordPurchase(ctx context.Context, userID, productID string) error
}

// OrderApplicationService 编排下单事务与订单生命周期流转。
// 数据库与支付网关的调用分别套上 重试(内) + 熔断(外) 两层防护:
// 重试吸收瞬时抖动，熔断在持续故障下快速卸载负载。
type OrderApplicationService struct {
	uow      domain.UnitOfWork
	gateway  port.PaymentGateway
	notifier port.NotificationProducer
	cache    port.StockCache
	recorder InteractionRecorder
	tracer   trace.Tracer

	retryOpts        resilience.RetryOptions
	failureThreshold int
	resetTimeout     time.Duration
	storeBreaker     *resilience.CircuitBreaker
	gatewayBreaker   *resilience.CircuitBreaker
}

// Option 配置可选依赖。
type Option func(*OrderApplicationService)

// WithStockCache 注入库存读缓存，预占/回补后做失效。
func WithStockCache(c port.StockCache) Option {
	return func(s *OrderApplicationService) { s.cache = c }
}

// WithInteractionRecorder 注入购买行为记录器。
func WithInteractionRecorder(r InteractionRecorder) Option {
	return func(s *OrderApplicationService) { s.recorder = r }
}

// WithRetryOptions 覆盖默认的重试参数。
func WithRetryOptions(opts resilience.RetryOptions) Option {
	return func(s *OrderApplicationService) { s.retryOpts = opts }
}

// WithBreakerThresholds 覆盖两个熔断器的失败阈值与冷却窗口。
func WithBreakerThresholds(failureThreshold int, resetTimeout time.Duration) Option {
	return func(s *OrderApplicationService) {
		s.failureThreshold = failureThreshold
		s.resetTimeout = resetTimeout
	}
}

// WithBreakers 覆盖默认的熔断器，主要供测试注入小阈值实例。
func WithBreakers(store, gateway *resilience.CircuitBreaker) Option {
	return func(s *OrderApplicationService) {
		s.storeBreaker = store
		s.gatewayBreaker = gateway
	}
}

// NewOrderApplicationService 创建订单应用服务。
// 每个被保护的调用点各持有一个进程级的熔断器实例。
func NewOrderApplicationService(
	uow domain.UnitOfWork,
	gateway port.PaymentGateway,
	notifier port.NotificationProducer,
	tracer trace.Tracer,
	opts ...Option,
) *OrderApplicationService {
	s := &OrderApplicationService{
		uow:       uow,
		gateway:   gateway,
		notifier:  notifier,
		tracer:    tracer,
		retryOpts: resilience.RetryOptions{},
	}
	for _, opt := range opts {
		opt(s)
	}

	breakerOpts := resilience.BreakerOptions{
		FailureThreshold: s.failureThreshold,
		ResetTimeout:     s.resetTimeout,
		// 业务失败（售罄、状态冲突）不计入熔断，否则一个爆款售罄
		// 会把整个数据库调用点熔断掉
		TripCondition: func(err error) bool { return !domain.IsBusinessError(err) },
		OnStateChange: func(name string, from, to resilience.BreakerState) {
			logger.Ctx(context.Background()).Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
	}
	if s.storeBreaker == nil {
		s.storeBreaker = resilience.NewCircuitBreaker("order-store", breakerOpts)
	}
	if s.gatewayBreaker == nil {
		s.gatewayBreaker = resilience.NewCircuitBreaker("payment-gateway", breakerOpts)
	}
	return s
}

// guarded 按约定的组合顺序包装一次基础设施调用: 熔断在外，重试在内。
// 一轮重试耗尽只计一次熔断失败。
func (s *OrderApplicationService) guarded(ctx context.Context, breaker *resilience.CircuitBreaker, op func() error) error {
	return breaker.Execute(func() error {
		return resilience.Retry(ctx, op, s.retryOpts)
	})
}

// PlaceOrder 原子地完成多行库存预占和订单落库。
// 任何一行预占失败，此前已预占的行全部回补，订单不落库——
// 部分预占的订单绝不允许被外界观察到。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("buyer.id", req.BuyerID),
		attribute.Int("order.lines", len(req.Lines)),
	)

	start := time.Now()
	var placed *domain.Order

	err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			order, err := s.placeWithin(ctx, repos, req)
			if err != nil {
				return err
			}
			placed = order
			return nil
		})
	})

	metrics.ObservePlacement(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order placement failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	logger.Ctx(ctx).Info().
		Str("order_id", placed.ID).
		Str("buyer_id", placed.BuyerID).
		Float64("total", placed.TotalAmount).
		Msg("order placed")

	s.afterCommit(ctx, placed, domain.EventOrderPlaced)
	return placed, nil
}

// placeWithin 在一个事务作用域内执行下单的全部步骤。
func (s *OrderApplicationService) placeWithin(ctx context.Context, repos domain.Repositories, req *PlaceOrderRequest) (*domain.Order, error) {
	if len(req.Lines) == 0 || len(req.Lines) > domain.MaxLinesPerOrder {
		return nil, domain.ValidationError("order must have between 1 and %d lines, got %d",
			domain.MaxLinesPerOrder, len(req.Lines))
	}
	for _, l := range req.Lines {
		if l.Quantity < 1 || l.Quantity > domain.MaxQuantityPerLine {
			return nil, domain.ValidationError("quantity for product %s must be between 1 and %d, got %d",
				l.ProductID, domain.MaxQuantityPerLine, l.Quantity)
		}
	}

	// 1. 批量解析全部商品；任何一个缺失或下架都在预占前整单失败
	ids := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := repos.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.IsActive {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.ProductNotFoundError(missing...)
	}

	// 2. 按声明顺序逐行预占，失败则回补此前所有预占
	rollback := &compensationStack{}
	for _, l := range req.Lines {
		line := l
		if err := repos.Products.Reserve(ctx, line.ProductID, line.Quantity); err != nil {
			rollback.trigger(context.WithoutCancel(ctx))
			return nil, err
		}
		rollback.push(func(compCtx context.Context) {
			if rerr := repos.Products.Restore(compCtx, line.ProductID, line.Quantity); rerr != nil {
				// 回补失败意味着库存账目可能出错，必须大声记录
				logger.Ctx(compCtx).Error().Err(rerr).
					Str("product_id", line.ProductID).
					Int("quantity", line.Quantity).
					Msg("CRITICAL: failed to restore reserved inventory")
			}
		})
	}

	// 3. 快照价格与名称，构建订单（总额在构造函数内计算并校验）
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		p := products[l.ProductID]
		lines = append(lines, domain.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			Name:      p.Name,
		})
	}
	order, err := domain.NewOrder(req.BuyerID, lines, req.ShippingAddress, req.PaymentMethod, req.Notes)
	if err != nil {
		rollback.trigger(ctx)
		return nil, err
	}

	// 4. 落库；失败由事务回滚兜底，补偿栈覆盖无事务实现
	if err := repos.Orders.Save(ctx, order); err != nil {
		rollback.trigger(ctx)
		return nil, err
	}
	return order, nil
}

// TransitionStatus 按迁移表流转订单状态。此操作不触碰库存。
func (s *OrderApplicationService) TransitionStatus(ctx context.Context, orderID string, next domain.Status) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.TransitionStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.next_status", string(next)),
	)

	var updated *domain.Order
	err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			order, err := repos.Orders.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if err := order.TransitionTo(next); err != nil {
				return err
			}
			if err := repos.Orders.Update(ctx, order); err != nil {
				return err
			}
			updated = order
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", updated.ID).
		Str("status", string(updated.Status)).
		Msg("order status transitioned")
	return updated, nil
}

// CancelOrder 取消买家自己的 pending/processing 订单:
// 回补每一行的库存、置为 cancelled、持久化，三者在同一原子单元内提交。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var cancelled *domain.Order
	err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			// 重新读取订单，依据最新状态分类冲突
			order, err := repos.Orders.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			if order.BuyerID != buyerID {
				// 不向非属主泄露订单是否存在
				return domain.ErrOrderNotFound
			}
			if err := order.Cancellable(); err != nil {
				return err
			}
			// 每行恰好回补创建时预占的数量
			for _, line := range order.Lines {
				if err := repos.Products.Restore(ctx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
			order.MarkCancelled()
			if err := repos.Orders.Update(ctx, order); err != nil {
				return err
			}
			cancelled = order
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.OrdersCancelled.Inc()
	logger.Ctx(ctx).Info().Str("order_id", cancelled.ID).Msg("order cancelled, inventory restored")
	s.afterCommit(ctx, cancelled, domain.EventOrderCancelled)
	return cancelled, nil
}

// ChargeOrder 调用支付网关授权扣款并把结果记录到订单上。
// 网关调用套独立的熔断器，与数据库调用点互不影响。
func (s *OrderApplicationService) ChargeOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ChargeOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var order *domain.Order
	if err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			var err error
			order, err = repos.Orders.FindByID(ctx, orderID)
			return err
		})
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentCompleted {
		// 避免重复扣款，连网关都不碰
		return nil, domain.ErrPaymentAlreadyCompleted
	}

	var result *port.AuthorizeResult
	err := s.guarded(ctx, s.gatewayBreaker, func() error {
		var err error
		result, err = s.gateway.Authorize(ctx, order.TotalAmount, order.PaymentMethod)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment gateway unavailable")
		return nil, err
	}

	return s.RecordPayment(ctx, orderID, result.Success)
}

// RecordPayment 把一次支付结果落到订单上。
// 已完成的支付直接拒绝；网关失败时订单保持可取消状态，买家可重试。
func (s *OrderApplicationService) RecordPayment(ctx context.Context, orderID string, success bool) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.RecordPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("payment.success", success),
	)

	var updated *domain.Order
	var outcomeErr error
	err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			order, err := repos.Orders.FindByID(ctx, orderID)
			if err != nil {
				return err
			}
			outcomeErr = order.RecordPaymentOutcome(success)
			if outcomeErr != nil && !errors.Is(outcomeErr, domain.ErrPaymentFailed) {
				// 例如重复支付: 订单不得被改动
				return outcomeErr
			}
			if err := repos.Orders.Update(ctx, order); err != nil {
				return err
			}
			updated = order
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if outcomeErr != nil {
		// PAYMENT_FAILED: 状态已持久化，但调用方仍然收到明确的失败
		logger.Ctx(ctx).Warn().Str("order_id", orderID).Msg("payment declined")
		return updated, outcomeErr
	}

	logger.Ctx(ctx).Info().Str("order_id", updated.ID).Msg("payment completed")
	s.afterCommit(ctx, updated, domain.EventPaymentCompleted)
	return updated, nil
}

// ListOrders 提供过滤分页的订单读取，按下单时间倒序。
func (s *OrderApplicationService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	ctx, span := s.tracer.Start(ctx, "order.ListOrders")
	defer span.End()

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var resp *ListOrdersResponse
	err := s.guarded(ctx, s.storeBreaker, func() error {
		return s.uow.Execute(ctx, func(ctx context.Context, repos domain.Repositories) error {
			orders, total, err := repos.Orders.List(ctx, domain.ListQuery{
				BuyerID: req.BuyerID,
				Status:  req.Status,
				Limit:   limit,
				Offset:  req.Offset,
			})
			if err != nil {
				return err
			}
			resp = &ListOrdersResponse{Orders: orders, Total: total}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return resp, nil
}

// afterCommit 执行提交后的旁路动作: 事件发布、缓存失效、行为记录。
// 全部 best-effort，失败只记录。
func (s *OrderApplicationService) afterCommit(ctx context.Context, order *domain.Order, eventType string) {
	ctx = context.WithoutCancel(ctx)

	if s.notifier != nil {
		event := &domain.OrderEvent{
			EventID:     uuid.New().String(),
			Type:        eventType,
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			TotalAmount: order.TotalAmount,
			Status:      order.Status,
			OccurredAt:  time.Now(),
		}
		if err := s.notifier.Publish(ctx, event); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("failed to publish order event")
		}
	}

	if s.cache != nil {
		ids := make([]string, 0, len(order.Lines))
		for _, l := range order.Lines {
			ids = append(ids, l.ProductID)
		}
		if err := s.cache.Invalidate(ctx, ids...); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to invalidate stock cache")
		}
	}

	if s.recorder != nil && eventType == domain.EventOrderPlaced {
		for _, l := range order.Lines {
			if err := s.recorder.RecordPurchase(ctx, order.BuyerID, l.ProductID); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to record purchase interaction")
			}
		}
	}
}
