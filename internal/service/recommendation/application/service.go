// internal/service/recommendation/application/service.go
package application

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/recommendation/domain"
	"bazaar/internal/service/recommendation/domain/port"
)

const (
	// topNeighbours 参与打分的最相似用户数
	topNeighbours = 10
	// scoringConcurrency 相似度计算的并发上限
	scoringConcurrency = 8
)

// RecommendationService 基于用户行为提供推荐:
// 有行为历史的用户走基于用户的协同过滤（余弦相似度），
// 冷启动用户回退到全局热度榜。
type RecommendationService struct {
	repo   domain.InteractionRepository
	cache  port.ResultCache
	tracer trace.Tracer
}

func NewRecommendationService(repo domain.InteractionRepository, cache port.ResultCache, tracer trace.Tracer) *RecommendationService {
	return &RecommendationService{repo: repo, cache: cache, tracer: tracer}
}

// TrackInteraction 记录一次用户行为。typ 必须是 view/cart_add/purchase 之一。
func (s *RecommendationService) TrackInteraction(ctx context.Context, userID, productID, typ string) error {
	ctx, span := s.tracer.Start(ctx, "recommendation.TrackInteraction")
	defer span.End()

	t, err := domain.ParseInteractionType(typ)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.String("interaction.type", string(t)),
	)
	return s.repo.Save(ctx, &domain.Interaction{
		UserID:    userID,
		ProductID: productID,
		Type:      t,
	})
}

// RecordPurchase 实现订单服务的 InteractionRecorder 依赖。
func (s *RecommendationService) RecordPurchase(ctx context.Context, userID, productID string) error {
	return s.TrackInteraction(ctx, userID, productID, string(domain.InteractionPurchase))
}

// Recommend 返回为 userID 排好序的前 limit 个推荐商品。
func (s *RecommendationService) Recommend(ctx context.Context, userID string, limit int) ([]domain.ScoredProduct, error) {
	ctx, span := s.tracer.Start(ctx, "recommendation.Recommend")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("limit", limit))

	if limit <= 0 {
		limit = 10
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userID, limit); err == nil && cached != nil {
			span.AddEvent("cache hit")
			return cached, nil
		}
	}

	scores, err := s.repo.UserProductScores(ctx)
	if err != nil {
		return nil, err
	}

	var result []domain.ScoredProduct
	if len(scores[userID]) == 0 {
		// 冷启动: 全局热度榜
		span.AddEvent("cold start, falling back to popularity")
		result = popularity(scores, limit)
	} else {
		result, err = s.collaborative(ctx, userID, scores, limit)
		if err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, limit, result); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to cache recommendations")
		}
	}
	return result, nil
}

// collaborative 是基于用户的协同过滤:
// 1. 并发计算目标用户与其他用户的余弦相似度
// 2. 取前 topNeighbours 个正相似度邻居
// 3. 邻居得分按相似度加权累加，排除目标用户已接触过的商品
func (s *RecommendationService) collaborative(ctx context.Context, userID string, scores map[string]map[string]float64, limit int) ([]domain.ScoredProduct, error) {
	target := scores[userID]

	type neighbour struct {
		id  string
		sim float64
	}
	var (
		mu         sync.Mutex
		neighbours []neighbour
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scoringConcurrency)
	for otherID, other := range scores {
		if otherID == userID {
			continue
		}
		otherID, other := otherID, other
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sim := cosine(target, other)
			if sim > 0 {
				mu.Lock()
				neighbours = append(neighbours, neighbour{id: otherID, sim: sim})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].sim > neighbours[j].sim })
	if len(neighbours) > topNeighbours {
		neighbours = neighbours[:topNeighbours]
	}

	candidates := map[string]float64{}
	for _, n := range neighbours {
		for productID, score := range scores[n.id] {
			if _, seen := target[productID]; seen {
				continue
			}
			candidates[productID] += n.sim * score
		}
	}
	return topN(candidates, limit), nil
}

// popularity 按全局加权行为得分排序。
func popularity(scores map[string]map[string]float64, limit int) []domain.ScoredProduct {
	totals := map[string]float64{}
	for _, products := range scores {
		for productID, score := range products {
			totals[productID] += score
		}
	}
	return topN(totals, limit)
}

func topN(candidates map[string]float64, limit int) []domain.ScoredProduct {
	out := make([]domain.ScoredProduct, 0, len(candidates))
	for id, score := range candidates {
		out = append(out, domain.ScoredProduct{ProductID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cosine 计算两个稀疏得分向量的余弦相似度。
func cosine(a, b map[string]float64) float64 {
	var dot float64
	for k, av := range a {
		if bv, ok := b[k]; ok {
			dot += av * bv
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (norm(a) * norm(b))
}

func norm(v map[string]float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
