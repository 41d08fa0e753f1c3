// internal/pkg/resilience/breaker.go
package resilience

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen 表示熔断器处于打开状态，调用被直接拒绝，底层操作未被执行。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState 是熔断器的三种状态。
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerOptions 控制熔断器的行为。
type BreakerOptions struct {
	// FailureThreshold 连续失败多少次后熔断，默认 5。
	FailureThreshold int
	// ResetTimeout 熔断打开后，经过多久允许放行一次探测请求，默认 60s。
	ResetTimeout time.Duration
	// TripCondition 判定一个错误是否计入失败。默认所有错误都计入；
	// 调用方可以排除业务错误，避免例如售罄把数据库熔断掉。
	TripCondition func(error) bool
	// OnStateChange 在状态迁移时被调用，用于打点和日志。
	OnStateChange func(name string, from, to BreakerState)
}

// CircuitBreaker 是一个进程内的熔断器，每个被保护的调用点持有一个实例，
// 生命周期与进程相同。所有状态变更都经由 Execute 在互斥锁内完成，
// 可以被任意多个 goroutine 并发使用。
type CircuitBreaker struct {
	name string
	opts BreakerOptions

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time
}

// NewCircuitBreaker 创建一个初始为 CLOSED 的熔断器。
func NewCircuitBreaker(name string, opts BreakerOptions) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 60 * time.Second
	}
	return &CircuitBreaker{name: name, opts: opts, state: StateClosed}
}

// Name 返回调用点名称。
func (b *CircuitBreaker) Name() string { return b.name }

// State 返回当前状态，仅用于观测。
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute 执行 op 并维护熔断状态机:
//
//	CLOSED    --连续失败达到阈值-->              OPEN
//	OPEN      --距上次失败超过 ResetTimeout-->   HALF_OPEN (放行一次)
//	HALF_OPEN --成功--> CLOSED / --失败--> OPEN
//
// 处于 OPEN 且冷却窗口未过时，直接返回 ErrCircuitOpen，不触碰底层依赖。
// 这是熔断器的核心契约：保护已经不堪重负的下游不再被打爆。
func (b *CircuitBreaker) Execute(op func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.lastFailure) <= b.opts.ResetTimeout {
			b.mu.Unlock()
			return errors.Wrapf(ErrCircuitOpen, "breaker %q", b.name)
		}
		b.transition(StateHalfOpen)
	}
	b.mu.Unlock()

	err := op()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || (b.opts.TripCondition != nil && !b.opts.TripCondition(err)) {
		// 成功（或不计入失败的错误）使计数归零；半开探测成功即恢复关闭
		b.consecutiveFailures = 0
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		return err
	}

	b.consecutiveFailures++
	b.lastFailure = time.Now()
	if b.state == StateHalfOpen || b.consecutiveFailures >= b.opts.FailureThreshold {
		if b.state != StateOpen {
			b.transition(StateOpen)
		}
	}
	return err
}

// transition 必须在持有 b.mu 时调用。
func (b *CircuitBreaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.opts.OnStateChange != nil {
		b.opts.OnStateChange(b.name, from, to)
	}
}
