// internal/service/order/application/rollback.go
package application

import (
	"context"
	"sync"

	"bazaar/internal/pkg/logger"
)

// compensationStack 以 LIFO 顺序登记回滚动作。
// 在事务型仓储下，事务回滚已经覆盖了这些动作；对无事务能力的仓储
// （例如测试里的内存实现），它是 all-or-nothing 契约的唯一保障。
type compensationStack struct {
	mu    sync.Mutex
	comps []func(ctx context.Context)
}

// push 登记一个补偿动作，后登记的先执行。
func (s *compensationStack) push(comp func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comps = append([]func(ctx context.Context){comp}, s.comps...)
}

// trigger 依次执行全部补偿动作。补偿本身失败只记录，不中断其余补偿。
func (s *compensationStack) trigger(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.comps) == 0 {
		return
	}
	logger.Ctx(ctx).Warn().Int("count", len(s.comps)).Msg("rolling back reserved inventory")
	for _, comp := range s.comps {
		comp(ctx)
	}
	s.comps = nil
}
