// cmd/notification-worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/tracing"
	"bazaar/internal/service/order/domain"
	orderhttp "bazaar/internal/service/order/interfaces"
)

// buyerNotifier 把订单事件转成面向买家的通知。
// 真实的投递渠道（邮件、短信、push）在这里接入。
type buyerNotifier struct{}

func (buyerNotifier) Handle(ctx context.Context, event *domain.OrderEvent) error {
	var message string
	switch event.Type {
	case domain.EventOrderPlaced:
		message = "your order has been placed"
	case domain.EventOrderCancelled:
		message = "your order has been cancelled and inventory released"
	case domain.EventPaymentCompleted:
		message = "payment received, your order is being prepared"
	default:
		logger.Ctx(ctx).Warn().Str("type", event.Type).Msg("unknown order event type, skipping")
		return nil
	}

	logger.Ctx(ctx).Info().
		Str("event_id", event.EventID).
		Str("order_id", event.OrderID).
		Str("buyer_id", event.BuyerID).
		Str("message", message).
		Msg("buyer notification sent")
	metrics.NotificationsSent.WithLabelValues(event.Type).Inc()
	return nil
}

func main() {
	cfg, err := config.Load(os.Getenv("BAZAAR_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init("notification-worker", cfg.App.LogLevel, cfg.App.Pretty)

	tp, err := tracing.InitTracerProvider("notification-worker", cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	ctx, cancel := context.WithCancel(context.Background())
	reader := mq.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	consumer := mq.NewConsumer(reader, orderhttp.NewOrderEventConsumer(buyerNotifier{}).HandleMessage)
	consumer.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")

	cancel()
	if err := consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("error closing kafka reader")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	log.Info().Msg("shutdown complete")
}
