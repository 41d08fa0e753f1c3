// internal/service/order/infrastructure/adapter/notification_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/domain"
)

// NotificationKafkaAdapter 把订单事件发布到 Kafka。
// 以订单 ID 作为分区键，同一订单的事件保持有序。
type NotificationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewNotificationKafkaAdapter(writer *kafka.Writer) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

func (a *NotificationKafkaAdapter) Publish(ctx context.Context, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}
	if err := mq.ProduceMessage(ctx, a.writer, []byte(event.OrderID), payload); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", event.Type, event.OrderID)
	}
	return nil
}
