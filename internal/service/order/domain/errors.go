// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error 是带稳定错误码的领域错误。
// 表现层依赖 Code 而不是 Message 做分支和本地化，Message 只面向日志。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is 让 errors.Is 按错误码匹配，使携带明细的错误仍然命中对应的哨兵。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// 业务错误码是对外契约的一部分，一经发布不可更改。
var (
	ErrValidation              = newError("VALIDATION_ERROR", "invalid input")
	ErrProductNotFound         = newError("PRODUCT_NOT_FOUND", "product not found or inactive")
	ErrInsufficientInventory   = newError("INSUFFICIENT_INVENTORY", "insufficient inventory")
	ErrOrderNotFound           = newError("ORDER_NOT_FOUND", "order not found")
	ErrInvalidStatusTransition = newError("INVALID_STATUS_TRANSITION", "status transition not allowed")
	ErrOrderAlreadyCancelled   = newError("ORDER_ALREADY_CANCELLED", "order is already cancelled")
	ErrOrderAlreadyDelivered   = newError("ORDER_ALREADY_DELIVERED", "order is already delivered")
	ErrCannotCancel            = newError("CANNOT_CANCEL_IN_CURRENT_STATUS", "order cannot be cancelled in its current status")
	ErrPaymentAlreadyCompleted = newError("PAYMENT_ALREADY_COMPLETED", "payment is already completed")
	ErrPaymentFailed           = newError("PAYMENT_FAILED", "payment was declined")
	ErrInternal                = newError("INTERNAL_ERROR", "internal error")
)

// ValidationError 构造一个带具体原因的校验错误。
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}

// ProductNotFoundError 列出所有缺失或已下架的商品 ID。
func ProductNotFoundError(ids ...string) *Error {
	return &Error{
		Code:    ErrProductNotFound.Code,
		Message: fmt.Sprintf("products not found or inactive: %s", strings.Join(ids, ", ")),
	}
}

// InsufficientInventoryError 指明库存不足的商品及请求数量。
func InsufficientInventoryError(productID string, requested int) *Error {
	return &Error{
		Code:    ErrInsufficientInventory.Code,
		Message: fmt.Sprintf("insufficient inventory for product %s (requested %d)", productID, requested),
	}
}

// InvalidTransitionError 指明被拒绝的状态迁移。
func InvalidTransitionError(from, to Status) *Error {
	return &Error{
		Code:    ErrInvalidStatusTransition.Code,
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
	}
}

// IsBusinessError 判定一个错误是否属于业务规则失败。
// 业务失败不可重试、不计入熔断，原样上抛给调用方。
func IsBusinessError(err error) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}
	return de.Code != ErrInternal.Code
}

// ErrorCode 提取错误码；非领域错误一律归为 INTERNAL_ERROR。
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrInternal.Code
}
