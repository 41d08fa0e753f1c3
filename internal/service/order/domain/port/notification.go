// internal/service/order/domain/port/notification.go
package port

import (
	"context"

	"bazaar/internal/service/order/domain"
)

// NotificationProducer 把订单事件发布到消息队列。
// 发布失败不影响主流程，由调用方记录并继续。
type NotificationProducer interface {
	Publish(ctx context.Context, event *domain.OrderEvent) error
}

// StockCache 是可用库存读缓存的出站端口。
// 写路径只做失效，真实值永远以数据库为准。
type StockCache interface {
	Invalidate(ctx context.Context, productIDs ...string) error
}
