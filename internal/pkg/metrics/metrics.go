// internal/pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bazaar/internal/service/order/domain"
)

// 指标注册在默认 Registry 上，通过 promhttp 在 /metrics 暴露。
var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaar_orders_placed_total",
		Help: "Number of successfully placed orders.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaar_orders_cancelled_total",
		Help: "Number of cancelled orders.",
	})

	PlacementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_order_placement_failures_total",
		Help: "Number of failed order placements, by error code.",
	}, []string{"code"})

	PlacementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bazaar_order_placement_duration_seconds",
		Help:    "Latency of order placement.",
		Buckets: prometheus.DefBuckets,
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bazaar_circuit_breaker_state",
		Help: "Circuit breaker state per call site (0=closed, 1=open, 2=half-open).",
	}, []string{"name"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaar_notifications_sent_total",
		Help: "Number of buyer notifications sent, by event type.",
	}, []string{"event_type"})
)

// ObservePlacement 统一记录一次下单的耗时与结果。
func ObservePlacement(d time.Duration, err error) {
	PlacementDuration.Observe(d.Seconds())
	if err != nil {
		PlacementFailures.WithLabelValues(domain.ErrorCode(err)).Inc()
		return
	}
	OrdersPlaced.Inc()
}

// SetBreakerState 更新某个调用点的熔断器状态。
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}
