// internal/service/order/interfaces/event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/domain"
)

// OrderEventHandler 消费一条已解码的订单事件。
type OrderEventHandler interface {
	Handle(ctx context.Context, event *domain.OrderEvent) error
}

// OrderEventConsumer 把 Kafka 消息解码为订单事件后分发给处理器。
// 解码失败的消息记录后跳过，不阻塞消费进度。
type OrderEventConsumer struct {
	handler OrderEventHandler
}

func NewOrderEventConsumer(handler OrderEventHandler) *OrderEventConsumer {
	return &OrderEventConsumer{handler: handler}
}

// HandleMessage 作为 mq.Handler 接入消费循环。
func (c *OrderEventConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Int64("offset", msg.Offset).
			Msg("skipping undecodable order event")
		return nil
	}
	return c.handler.Handle(ctx, &event)
}
