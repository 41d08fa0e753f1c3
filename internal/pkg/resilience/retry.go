// internal/pkg/resilience/retry.go
package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
)

// RetryOptions 控制 Retry 的退避行为。零值字段会被填充为默认值。
type RetryOptions struct {
	// MaxAttempts 是总的尝试次数（含首次调用），默认 3。
	MaxAttempts int
	// BaseDelay 是首次重试前的基础等待时间，默认 100ms。
	BaseDelay time.Duration
	// MaxDelay 是退避等待的上限，默认 10s。
	MaxDelay time.Duration
	// BackoffFactor 是指数退避的倍率，默认 2。
	BackoffFactor float64
	// RetryCondition 判定一个错误是否值得重试，默认为 IsTransient。
	// 业务错误（例如库存不足）重试永远不会成功，必须立即放弃。
	RetryCondition func(error) bool
	// OnRetry 在每次重试前被调用，attempt 为刚刚失败的那次尝试的序号。
	OnRetry func(err error, attempt int)
}

func (o *RetryOptions) withDefaults() RetryOptions {
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BaseDelay <= 0 {
		out.BaseDelay = 100 * time.Millisecond
	}
	if out.MaxDelay <= 0 {
		out.MaxDelay = 10 * time.Second
	}
	if out.BackoffFactor <= 0 {
		out.BackoffFactor = 2
	}
	if out.RetryCondition == nil {
		out.RetryCondition = IsTransient
	}
	return out
}

// Retry 执行 op，失败且错误可重试时按指数退避加随机抖动重试。
// 返回值永远是最后一次尝试的原始错误，不做任何包装或吞没。
func Retry(ctx context.Context, op func() error, opts RetryOptions) error {
	o := opts.withDefaults()

	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == o.MaxAttempts || !o.RetryCondition(err) {
			return err
		}
		if o.OnRetry != nil {
			o.OnRetry(err, attempt)
		}

		delay := backoffDelay(o, attempt)
		if werr := sleep(ctx, delay); werr != nil {
			// 上下文已取消，不再继续浪费尝试次数
			return err
		}
	}
}

// backoffDelay 计算第 attempt 次失败后的等待时间:
// min(base * factor^(attempt-1), max) 再叠加 0~1000ms 的抖动，
// 避免大量并发调用方在同一时刻同步重试。
func backoffDelay(o RetryOptions, attempt int) time.Duration {
	d := float64(o.BaseDelay) * math.Pow(o.BackoffFactor, float64(attempt-1))
	if d > float64(o.MaxDelay) {
		d = float64(o.MaxDelay)
	}
	jitter := time.Duration(rand.Int63n(int64(time.Second)))
	return time.Duration(d) + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient 是默认的重试判定：只有网络抖动、超时、连接类故障
// 和数据库驱动的瞬时错误才值得重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// MySQL 驱动的连接级错误：连接失效可以换一条连接重试
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
