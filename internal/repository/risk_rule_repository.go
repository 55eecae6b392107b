package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// RiskRuleRepository handles read/write operations for the supplemental
// named risk rules attached to a follower config.
type RiskRuleRepository struct {
	db *gorm.DB
}

func NewRiskRuleRepository() *RiskRuleRepository {
	return &RiskRuleRepository{db: database.DB}
}

func (r *RiskRuleRepository) WithDB(db *gorm.DB) *RiskRuleRepository {
	return &RiskRuleRepository{db: db}
}

func (r *RiskRuleRepository) Create(ctx context.Context, rule *model.RiskRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

// FindByConfig returns every risk rule attached to a follower config.
func (r *RiskRuleRepository) FindByConfig(ctx context.Context, configID string) ([]model.RiskRule, error) {
	var rules []model.RiskRule
	err := r.db.WithContext(ctx).
		Where("copier_account_config_id = ?", configID).
		Find(&rules).Error
	return rules, err
}

func (r *RiskRuleRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.RiskRule{}, "id = ?", id).Error
}
