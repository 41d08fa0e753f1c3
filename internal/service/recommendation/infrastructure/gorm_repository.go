// internal/service/recommendation/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"bazaar/internal/service/recommendation/domain"
)

// InteractionModel 对应 user_interactions 表。
type InteractionModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"size:36;not null;index:idx_user_product"`
	ProductID string    `gorm:"size:36;not null;index:idx_user_product"`
	Type      string    `gorm:"size:16;not null"`
	Weight    float64   `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (InteractionModel) TableName() string { return "user_interactions" }

// GormInteractionRepository 是 domain.InteractionRepository 的 GORM 实现。
type GormInteractionRepository struct {
	db *gorm.DB
}

func NewGormInteractionRepository(db *gorm.DB) *GormInteractionRepository {
	return &GormInteractionRepository{db: db}
}

func (r *GormInteractionRepository) Save(ctx context.Context, interaction *domain.Interaction) error {
	model := &InteractionModel{
		UserID:    interaction.UserID,
		ProductID: interaction.ProductID,
		Type:      string(interaction.Type),
		Weight:    interaction.Type.Weight(),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return pkgerrors.Wrap(err, "save interaction")
	}
	interaction.ID = model.ID
	interaction.CreatedAt = model.CreatedAt
	return nil
}

// UserProductScores 在数据库侧完成聚合，避免把全部行为明细拉回进程。
func (r *GormInteractionRepository) UserProductScores(ctx context.Context) (map[string]map[string]float64, error) {
	type row struct {
		UserID    string
		ProductID string
		Score     float64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&InteractionModel{}).
		Select("user_id, product_id, SUM(weight) AS score").
		Group("user_id, product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aggregate interaction scores")
	}

	out := map[string]map[string]float64{}
	for _, r := range rows {
		if out[r.UserID] == nil {
			out[r.UserID] = map[string]float64{}
		}
		out[r.UserID][r.ProductID] = r.Score
	}
	return out, nil
}

// AutoMigrate 建表。仅供本地开发和测试环境使用。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&InteractionModel{})
}
