// internal/service/order/domain/order.go
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxLinesPerOrder 单笔订单的最大行数
	MaxLinesPerOrder = 50
	// MaxQuantityPerLine 单行的最大购买数量
	MaxQuantityPerLine = 100
	// totalEpsilon 金额校验允许的舍入误差
	totalEpsilon = 0.01
)

// OrderLine 是订单中的一行。单价和商品名在下单时刻快照，
// 商品后续改价不得影响历史订单。
type OrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice float64
	Name      string
}

// Subtotal 返回该行的小计金额。
func (l OrderLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Order 是订单聚合根。创建后只能通过生命周期方法变更，永不物理删除。
type Order struct {
	ID              string
	BuyerID         string
	Lines           []OrderLine
	TotalAmount     float64
	Status          Status
	PaymentStatus   PaymentStatus
	ShippingAddress string
	PaymentMethod   string
	TrackingNumber  string
	Notes           string
	OrderedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 构造一个新的 pending/pending 订单并校验全部不变量。
// 传入的 lines 必须已经带上价格与名称快照。
func NewOrder(buyerID string, lines []OrderLine, shippingAddress, paymentMethod, notes string) (*Order, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, ValidationError("buyer id is required")
	}
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ValidationError("shipping address is required")
	}
	if len(lines) == 0 || len(lines) > MaxLinesPerOrder {
		return nil, ValidationError("order must have between 1 and %d lines, got %d", MaxLinesPerOrder, len(lines))
	}
	for _, l := range lines {
		if l.Quantity < 1 || l.Quantity > MaxQuantityPerLine {
			return nil, ValidationError("quantity for product %s must be between 1 and %d, got %d",
				l.ProductID, MaxQuantityPerLine, l.Quantity)
		}
		if l.UnitPrice < 0 {
			return nil, ValidationError("unit price for product %s must not be negative", l.ProductID)
		}
	}

	now := time.Now()
	o := &Order{
		ID:              uuid.New().String(),
		BuyerID:         buyerID,
		Lines:           lines,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		Notes:           notes,
		OrderedAt:       now,
		UpdatedAt:       now,
	}
	o.TotalAmount = o.linesTotal()
	if err := o.VerifyTotal(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Order) linesTotal() float64 {
	var sum float64
	for _, l := range o.Lines {
		sum += l.Subtotal()
	}
	return sum
}

// VerifyTotal 校验 TotalAmount 与各行小计之和一致（允许 0.01 的舍入误差）。
// 不一致是创建时刻的致命错误，绝不静默修正。
func (o *Order) VerifyTotal() error {
	if math.Abs(o.TotalAmount-o.linesTotal()) > totalEpsilon {
		return ValidationError("total amount %.2f does not match line items sum %.2f", o.TotalAmount, o.linesTotal())
	}
	return nil
}

// TransitionTo 按迁移表流转订单状态。目标不在表内时返回错误，订单原样保留。
// 首次进入 shipped 时自动分配一次性的运单号。
func (o *Order) TransitionTo(next Status) error {
	if !next.Valid() {
		return ValidationError("unknown order status %q", next)
	}
	if !o.Status.CanTransitionTo(next) {
		return InvalidTransitionError(o.Status, next)
	}
	if next == StatusShipped && o.TrackingNumber == "" {
		o.TrackingNumber = newTrackingNumber()
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return nil
}

// Cancellable 把当前状态归类为可取消或某个明确的拒绝原因。
// cancelled 与 delivered 使用不同的错误码，表现层展示的文案不同。
func (o *Order) Cancellable() error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderAlreadyCancelled
	case o.Status == StatusDelivered:
		return ErrOrderAlreadyDelivered
	case o.Status != StatusPending && o.Status != StatusProcessing:
		return ErrCannotCancel
	default:
		return nil
	}
}

// MarkCancelled 将订单置为取消态。调用方必须先通过 Cancellable 检查，
// 并在同一原子单元内完成库存回补。
func (o *Order) MarkCancelled() {
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
}

// RecordPaymentOutcome 将支付网关的结果落到订单上。
// 成功: paymentStatus -> completed，pending 订单同时推进到 processing。
// 失败: paymentStatus -> failed，订单状态保持不变（买家可以重试支付）。
func (o *Order) RecordPaymentOutcome(success bool) error {
	if o.PaymentStatus == PaymentCompleted {
		return ErrPaymentAlreadyCompleted
	}
	if !success {
		o.PaymentStatus = PaymentFailed
		o.UpdatedAt = time.Now()
		return ErrPaymentFailed
	}
	o.PaymentStatus = PaymentCompleted
	if o.Status == StatusPending {
		o.Status = StatusProcessing
	}
	o.UpdatedAt = time.Now()
	return nil
}

func newTrackingNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TRK-" + strings.ToUpper(raw[:12])
}
