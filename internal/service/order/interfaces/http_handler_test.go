// internal/service/order/interfaces/http_handler_test.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar/internal/pkg/resilience"
	"bazaar/internal/service/order/domain"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", domain.ValidationError("bad input"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"product not found", domain.ProductNotFoundError("p1"), http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"order not found", domain.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"insufficient inventory", domain.InsufficientInventoryError("p1", 3), http.StatusConflict, "INSUFFICIENT_INVENTORY"},
		{"invalid transition", domain.InvalidTransitionError(domain.StatusPending, domain.StatusShipped), http.StatusConflict, "INVALID_STATUS_TRANSITION"},
		{"already cancelled", domain.ErrOrderAlreadyCancelled, http.StatusConflict, "ORDER_ALREADY_CANCELLED"},
		{"already delivered", domain.ErrOrderAlreadyDelivered, http.StatusConflict, "ORDER_ALREADY_DELIVERED"},
		{"payment already completed", domain.ErrPaymentAlreadyCompleted, http.StatusConflict, "PAYMENT_ALREADY_COMPLETED"},
		{"payment failed", domain.ErrPaymentFailed, http.StatusPaymentRequired, "PAYMENT_FAILED"},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		// 熔断拒绝在被包装之后仍然要映射到 503
		{"circuit open", errors.Wrap(resilience.ErrCircuitOpen, "breaker \"order-store\""), http.StatusServiceUnavailable, "CIRCUIT_OPEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestAtoiDefault(t *testing.T) {
	assert.Equal(t, 42, atoiDefault("42", 20))
	assert.Equal(t, 20, atoiDefault("", 20))
	assert.Equal(t, 20, atoiDefault("abc", 20))
	assert.Equal(t, 20, atoiDefault("-1", 20))
}
