// internal/service/order/application/service_test.go
package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"bazaar/internal/pkg/resilience"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"
)

// ---- 内存实现的仓储与端口，行为与 GORM 实现保持同一契约 ----

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	// failReserveFor 模拟某个商品在预占阶段的基础设施错误
	failReserveFor map[string]error
}

func newMemProductRepo(products ...*domain.Product) *memProductRepo {
	m := &memProductRepo{
		products:       map[string]*domain.Product{},
		failReserveFor: map[string]error{},
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (r *memProductRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *memProductRepo) Reserve(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failReserveFor[productID]; ok {
		return err
	}
	p, ok := r.products[productID]
	if !ok || !p.IsActive {
		return domain.ProductNotFoundError(productID)
	}
	// 校验与扣减在同一把锁内完成
	if p.AvailableInventory < quantity {
		return domain.InsufficientInventoryError(productID, quantity)
	}
	p.AvailableInventory -= quantity
	return nil
}

func (r *memProductRepo) Restore(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[productID]; ok {
		p.AvailableInventory += quantity
	}
	return nil
}

func (r *memProductRepo) inventory(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].AvailableInventory
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[string]*domain.Order{}}
}

func (r *memOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) Update(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) List(ctx context.Context, q domain.ListQuery) ([]*domain.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Order
	for _, o := range r.orders {
		if q.BuyerID != "" && o.BuyerID != q.BuyerID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		cp := *o
		matched = append(matched, &cp)
	}
	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], total, nil
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// memUnitOfWork 直接透传仓储。原子性由应用层的补偿栈保证，
// 这正是该测试要验证的路径。
type memUnitOfWork struct {
	repos domain.Repositories
}

func (u *memUnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return fn(ctx, u.repos)
}

type fakeGateway struct {
	mu      sync.Mutex
	approve bool
	err     error
	calls   int
}

func (g *fakeGateway) Authorize(ctx context.Context, amount float64, methodRef string) (*port.AuthorizeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &port.AuthorizeResult{Success: g.approve, Reference: "auth-ref"}, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*domain.OrderEvent
}

func (n *fakeNotifier) Publish(ctx context.Context, event *domain.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	service  *OrderApplicationService
	products *memProductRepo
	orders   *memOrderRepo
	gateway  *fakeGateway
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T, products ...*domain.Product) *testEnv {
	t.Helper()
	env := &testEnv{
		products: newMemProductRepo(products...),
		orders:   newMemOrderRepo(),
		gateway:  &fakeGateway{approve: true},
		notifier: &fakeNotifier{},
	}
	uow := &memUnitOfWork{repos: domain.Repositories{Products: env.products, Orders: env.orders}}
	env.service = NewOrderApplicationService(
		uow,
		env.gateway,
		env.notifier,
		noop.NewTracerProvider().Tracer("test"),
		WithRetryOptions(resilience.RetryOptions{MaxAttempts: 1, BaseDelay: time.Millisecond}),
	)
	return env
}

func activeProduct(id, name string, price float64, stock int) *domain.Product {
	return &domain.Product{ID: id, Name: name, Price: price, AvailableInventory: stock, IsActive: true}
}

func placeReq(lines ...PlaceOrderLine) *PlaceOrderRequest {
	return &PlaceOrderRequest{
		BuyerID:         "buyer-1",
		Lines:           lines,
		ShippingAddress: "1 Main St",
		PaymentMethod:   "credit_card",
	}
}

// ---- 下单 ----

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t,
		activeProduct("p1", "widget", 10.00, 10),
		activeProduct("p2", "gadget", 5.00, 10),
	)

	order, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 2},
		PlaceOrderLine{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.InDelta(t, 25.00, order.TotalAmount, 0.001)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	// 单价与名称来自服务端快照
	assert.Equal(t, 10.00, order.Lines[0].UnitPrice)
	assert.Equal(t, "widget", order.Lines[0].Name)

	assert.Equal(t, 8, env.products.inventory("p1"))
	assert.Equal(t, 9, env.products.inventory("p2"))
	assert.Equal(t, []string{domain.EventOrderPlaced}, env.notifier.types())
}

func TestPlaceOrder_UnknownProductFailsBeforeReserving(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))

	_, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 1},
		PlaceOrderLine{ProductID: "ghost", Quantity: 1},
	))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	// 整单失败，第一行也未被预占
	assert.Equal(t, 10, env.products.inventory("p1"))
	assert.Zero(t, env.orders.count())
}

func TestPlaceOrder_InactiveProductRejected(t *testing.T) {
	p := activeProduct("p1", "widget", 10.00, 10)
	p.IsActive = false
	env := newTestEnv(t, p)

	_, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 1},
	))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPlaceOrder_InsufficientInventory(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 1))

	_, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 5},
	))
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	assert.Equal(t, 1, env.products.inventory("p1"))
	assert.Zero(t, env.orders.count())
}

// 第二行预占失败时，第一行已预占的库存必须回补，订单不落库。
func TestPlaceOrder_PartialReservationRolledBack(t *testing.T) {
	env := newTestEnv(t,
		activeProduct("p1", "widget", 10.00, 10),
		activeProduct("p2", "gadget", 5.00, 1),
	)

	_, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 3},
		PlaceOrderLine{ProductID: "p2", Quantity: 2},
	))
	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)

	assert.Equal(t, 10, env.products.inventory("p1"), "line 1 reservation must be restored")
	assert.Equal(t, 1, env.products.inventory("p2"))
	assert.Zero(t, env.orders.count())
	assert.Empty(t, env.notifier.types())
}

// 并发下单抢同一件商品，成交数量绝不超过库存。
func TestPlaceOrder_ConcurrentReservationsNeverOversell(t *testing.T) {
	const stock, workers = 5, 20
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, stock))

	var wg sync.WaitGroup
	var placed int32
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.PlaceOrder(context.Background(), placeReq(
				PlaceOrderLine{ProductID: "p1", Quantity: 1},
			))
			if err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, stock, placed)
	assert.Zero(t, env.products.inventory("p1"))
	assert.Equal(t, stock, env.orders.count())
}

func TestPlaceOrder_ValidationRejectedBeforeTouchingInventory(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))

	_, err := env.service.PlaceOrder(context.Background(), placeReq())
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 0},
	))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 10, env.products.inventory("p1"))
}

// 业务失败不计入熔断: 连续的售罄错误之后数据库调用点仍然放行。
func TestPlaceOrder_BusinessErrorsDoNotTripBreaker(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 1))

	for i := 0; i < 10; i++ {
		_, err := env.service.PlaceOrder(context.Background(), placeReq(
			PlaceOrderLine{ProductID: "p1", Quantity: 5},
		))
		require.ErrorIs(t, err, domain.ErrInsufficientInventory)
		require.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	order, err := env.service.PlaceOrder(context.Background(), placeReq(
		PlaceOrderLine{ProductID: "p1", Quantity: 1},
	))
	require.NoError(t, err)
	assert.NotNil(t, order)
}

// 基础设施错误连续发生时数据库调用点熔断，后续请求被直接拒绝。
func TestPlaceOrder_InfrastructureFailuresTripBreaker(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	env.products.failReserveFor["p1"] = errors.New("connection lost")

	storeBreaker := resilience.NewCircuitBreaker("order-store", resilience.BreakerOptions{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		TripCondition:    func(err error) bool { return !domain.IsBusinessError(err) },
	})
	WithBreakers(storeBreaker, resilience.NewCircuitBreaker("payment-gateway", resilience.BreakerOptions{}))(env.service)

	req := placeReq(PlaceOrderLine{ProductID: "p1", Quantity: 1})
	for i := 0; i < 2; i++ {
		_, err := env.service.PlaceOrder(context.Background(), req)
		require.Error(t, err)
		require.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	_, err := env.service.PlaceOrder(context.Background(), req)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

// ---- 状态流转 ----

func mustPlace(t *testing.T, env *testEnv, lines ...PlaceOrderLine) *domain.Order {
	t.Helper()
	order, err := env.service.PlaceOrder(context.Background(), placeReq(lines...))
	require.NoError(t, err)
	return order
}

func TestTransitionStatus(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})

	updated, err := env.service.TransitionStatus(context.Background(), order.ID, domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, updated.Status)

	updated, err = env.service.TransitionStatus(context.Background(), order.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.NotEmpty(t, updated.TrackingNumber)

	_, err = env.service.TransitionStatus(context.Background(), order.ID, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = env.service.TransitionStatus(context.Background(), "no-such-order", domain.StatusProcessing)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

// ---- 取消 ----

func TestCancelOrder_RestoresInventoryExactlyOnce(t *testing.T) {
	env := newTestEnv(t,
		activeProduct("p1", "widget", 10.00, 10),
		activeProduct("p2", "gadget", 5.00, 10),
	)
	order := mustPlace(t, env,
		PlaceOrderLine{ProductID: "p1", Quantity: 3},
		PlaceOrderLine{ProductID: "p2", Quantity: 2},
	)
	require.Equal(t, 7, env.products.inventory("p1"))

	cancelled, err := env.service.CancelOrder(context.Background(), order.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, 10, env.products.inventory("p1"))
	assert.Equal(t, 10, env.products.inventory("p2"))

	// 重复取消被明确拒绝，且不会再次回补库存
	_, err = env.service.CancelOrder(context.Background(), order.ID, "buyer-1")
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyCancelled)
	assert.Equal(t, 10, env.products.inventory("p1"))

	assert.Equal(t, []string{domain.EventOrderPlaced, domain.EventOrderCancelled}, env.notifier.types())
}

func TestCancelOrder_DeliveredOrderRejected(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})

	for _, next := range []domain.Status{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		_, err := env.service.TransitionStatus(context.Background(), order.ID, next)
		require.NoError(t, err)
	}

	_, err := env.service.CancelOrder(context.Background(), order.ID, "buyer-1")
	assert.ErrorIs(t, err, domain.ErrOrderAlreadyDelivered)
	assert.Equal(t, 9, env.products.inventory("p1"), "delivered order must not restore inventory")
}

func TestCancelOrder_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})

	// 非属主不能得知订单是否存在
	_, err := env.service.CancelOrder(context.Background(), order.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, 9, env.products.inventory("p1"))
}

// ---- 支付 ----

func TestChargeOrder(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 2})

	charged, err := env.service.ChargeOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, charged.PaymentStatus)
	assert.Equal(t, domain.StatusProcessing, charged.Status)
	assert.Equal(t, 1, env.gateway.calls)

	// 重复扣款在触碰网关之前就被拒绝
	_, err = env.service.ChargeOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentAlreadyCompleted)
	assert.Equal(t, 1, env.gateway.calls)
}

func TestChargeOrder_DeclinedPaymentPersistsFailure(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	env.gateway.approve = false
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})

	updated, err := env.service.ChargeOrder(context.Background(), order.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)
	require.NotNil(t, updated)
	assert.Equal(t, domain.PaymentFailed, updated.PaymentStatus)
	// 订单保持 pending，买家可以换一种方式重试或取消
	assert.Equal(t, domain.StatusPending, updated.Status)

	stored, ferr := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, ferr)
	assert.Equal(t, domain.PaymentFailed, stored.PaymentStatus)

	// 重试成功
	env.gateway.approve = true
	charged, err := env.service.ChargeOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, charged.PaymentStatus)
}

func TestChargeOrder_GatewayOutageDoesNotTouchOrder(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 10))
	env.gateway.err = errors.New("gateway timeout")
	order := mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})

	_, err := env.service.ChargeOrder(context.Background(), order.ID)
	require.Error(t, err)

	stored, ferr := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, ferr)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus)
}

// ---- 查询 ----

func TestListOrders(t *testing.T) {
	env := newTestEnv(t, activeProduct("p1", "widget", 10.00, 100))
	for i := 0; i < 3; i++ {
		mustPlace(t, env, PlaceOrderLine{ProductID: "p1", Quantity: 1})
	}
	other := placeReq(PlaceOrderLine{ProductID: "p1", Quantity: 1})
	other.BuyerID = "buyer-2"
	_, err := env.service.PlaceOrder(context.Background(), other)
	require.NoError(t, err)

	resp, err := env.service.ListOrders(context.Background(), &ListOrdersRequest{BuyerID: "buyer-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Orders, 3)

	// 分页
	resp, err = env.service.ListOrders(context.Background(), &ListOrdersRequest{BuyerID: "buyer-1", Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	assert.Len(t, resp.Orders, 2)

	// 状态过滤
	resp, err = env.service.ListOrders(context.Background(), &ListOrdersRequest{Status: domain.StatusShipped})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
}
