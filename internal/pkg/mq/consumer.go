// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/logger"
)

// NewReader 创建一个带消费组的 Kafka 消费者。
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// KafkaHeaderCarrier 让 otel 传播器可以读取 Kafka 消息头。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}

// Handler 处理一条已续接链路上下文的消息。
// 返回错误表示处理失败，消息的 offset 不会被提交。
type Handler func(ctx context.Context, msg kafka.Message) error

// Consumer 以 fetch-handle-commit 的节奏消费单个主题。
// 处理成功才提交 offset，保证至少一次投递。
type Consumer struct {
	reader *kafka.Reader
	handle Handler
	wg     sync.WaitGroup
}

func NewConsumer(reader *kafka.Reader, handle Handler) *Consumer {
	return &Consumer{reader: reader, handle: handle}
}

// Start 启动消费循环。ctx 取消后循环退出。
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("kafka consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch message")
				// 避免对已宕机的 broker 形成快速失败循环
				time.Sleep(time.Second)
				continue
			}

			carrier := KafkaHeaderCarrier(msg.Headers)
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)
			if err := c.handle(msgCtx, msg); err != nil {
				logger.Ctx(msgCtx).Error().Err(err).
					Str("topic", msg.Topic).
					Int64("offset", msg.Offset).
					Msg("message handling failed, offset not committed")
				continue
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(msgCtx).Error().Err(err).Msg("failed to commit offset")
			}
		}
	}()
}

// Stop 关闭底层 reader 并等待消费循环退出。
func (c *Consumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}
