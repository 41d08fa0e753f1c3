// internal/service/recommendation/domain/score.go
package domain

// ScoredProduct 是带推荐得分的商品。
type ScoredProduct struct {
	ProductID string  `json:"productId"`
	Score     float64 `json:"score"`
}
