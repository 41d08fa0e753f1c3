// internal/pkg/resilience/retry_test.go
package resilience

import (
	"context"
	"errors"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return syscall.ECONNRESET
		}
		return nil
	}, RetryOptions{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	lastErr := errors.New("attempt 3 failed")
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls == 3 {
			return lastErr
		}
		return io.ErrUnexpectedEOF
	}, RetryOptions{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		RetryCondition: func(error) bool { return true },
	})

	assert.Equal(t, 3, calls)
	// 返回的必须是最后一次尝试的原始错误
	assert.Same(t, lastErr, err)
}

func TestRetry_NonRetryableErrorFailsImmediately(t *testing.T) {
	businessErr := errors.New("insufficient inventory")
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return businessErr
	}, RetryOptions{BaseDelay: time.Millisecond})

	assert.Equal(t, 1, calls, "non-retryable error must not be retried")
	assert.Same(t, businessErr, err)
}

func TestRetry_OnRetryObserverSeesEachFailedAttempt(t *testing.T) {
	var attempts []int
	err := Retry(context.Background(), func() error {
		return syscall.ECONNREFUSED
	}, RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		OnRetry: func(err error, attempt int) {
			assert.ErrorIs(t, err, syscall.ECONNREFUSED)
			attempts = append(attempts, attempt)
		},
	})

	require.Error(t, err)
	// 最后一次失败之后不再重试，因此观察者只看到前两次
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opErr := syscall.ECONNRESET
	err := Retry(ctx, func() error {
		calls++
		cancel()
		return opErr
	}, RetryOptions{BaseDelay: 50 * time.Millisecond})

	assert.Equal(t, 1, calls)
	// 上下文取消时返回的仍然是操作自身的错误
	assert.Equal(t, opErr, err)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"conn reset", syscall.ECONNRESET, true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped transient", errors.Join(errors.New("query"), syscall.EPIPE), true},
		{"business error", errors.New("order not found"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBackoffDelayIsCappedAtMaxDelay(t *testing.T) {
	o := RetryOptions{
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      400 * time.Millisecond,
		BackoffFactor: 2,
	}
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(o, attempt)
		assert.LessOrEqual(t, d, o.MaxDelay+time.Second, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, o.BaseDelay, "attempt %d", attempt)
	}
}
