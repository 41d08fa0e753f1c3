// internal/service/recommendation/domain/interaction.go
package domain

import (
	"fmt"
	"time"
)

// InteractionType 是用户与商品的行为类型。
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionCartAdd  InteractionType = "cart_add"
	InteractionPurchase InteractionType = "purchase"
)

// Weight 返回行为的评分权重：购买 > 加购 > 浏览。
func (t InteractionType) Weight() float64 {
	switch t {
	case InteractionView:
		return 1
	case InteractionCartAdd:
		return 3
	case InteractionPurchase:
		return 5
	default:
		return 0
	}
}

// ParseInteractionType 校验并解析行为类型。
func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(s)
	switch t {
	case InteractionView, InteractionCartAdd, InteractionPurchase:
		return t, nil
	default:
		return "", fmt.Errorf("invalid interaction type %q, must be one of: view, cart_add, purchase", s)
	}
}

// Interaction 是一次用户-商品行为记录。
type Interaction struct {
	ID        uint
	UserID    string
	ProductID string
	Type      InteractionType
	CreatedAt time.Time
}
