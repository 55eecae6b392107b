package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// CopierAccountConfigRepository handles read/write operations for follower
// bindings.
type CopierAccountConfigRepository struct {
	db *gorm.DB
}

func NewCopierAccountConfigRepository() *CopierAccountConfigRepository {
	return &CopierAccountConfigRepository{db: database.DB}
}

func (r *CopierAccountConfigRepository) WithDB(db *gorm.DB) *CopierAccountConfigRepository {
	return &CopierAccountConfigRepository{db: db}
}

// Create binds a follower account to a copier. (CopierID, SlaveAccountID)
// is unique at the database level, so adding the same follower twice
// returns ConflictError rather than a duplicate row.
func (r *CopierAccountConfigRepository) Create(ctx context.Context, cfg *model.CopierAccountConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Create(cfg).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "CopierAccountConfigRepository", "op": "Create", "copier_id": cfg.CopierID,
		}).WithError(err).Error("failed to bind follower account")

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("this account is already a follower of this copier", err)
		}
		return err
	}
	return nil
}

// FindByID fetches a single follower binding by primary key.
func (r *CopierAccountConfigRepository) FindByID(ctx context.Context, id string) (*model.CopierAccountConfig, error) {
	var cfg model.CopierAccountConfig
	err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("follower binding not found", err)
		}
		return nil, err
	}
	return &cfg, nil
}

// ConfigPatch carries the PATCH /copiers/{id}/slaves/{slaveAccountId}
// mutable fields. A nil pointer leaves that column untouched.
type ConfigPatch struct {
	ScalingType     *model.ScalingType
	FixedContracts  *int
	PercentageScale *float64
	MaxContracts    *int
	DailyLossLimit  *float64
	AutoDisable     *bool
	IsActive        *bool
}

// Update applies a partial update to a follower binding's scaling/risk
// configuration.
func (r *CopierAccountConfigRepository) Update(ctx context.Context, id string, patch ConfigPatch) error {
	updates := map[string]interface{}{}
	if patch.ScalingType != nil {
		updates["scaling_type"] = *patch.ScalingType
	}
	if patch.FixedContracts != nil {
		updates["fixed_contracts"] = *patch.FixedContracts
	}
	if patch.PercentageScale != nil {
		updates["percentage_scale"] = *patch.PercentageScale
	}
	if patch.MaxContracts != nil {
		updates["max_contracts"] = *patch.MaxContracts
	}
	if patch.DailyLossLimit != nil {
		updates["daily_loss_limit"] = *patch.DailyLossLimit
	}
	if patch.AutoDisable != nil {
		updates["auto_disable"] = *patch.AutoDisable
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
		if *patch.IsActive {
			updates["disabled_reason"] = ""
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.CopierAccountConfig{}).Where("id = ?", id).Updates(updates).Error
}

// FindActiveByCopier returns every IsActive=true follower config for a copier.
func (r *CopierAccountConfigRepository) FindActiveByCopier(ctx context.Context, copierID string) ([]model.CopierAccountConfig, error) {
	var configs []model.CopierAccountConfig
	err := r.db.WithContext(ctx).
		Preload("SlaveAccount").
		Where("copier_id = ? AND is_active = ?", copierID, true).
		Find(&configs).Error
	return configs, err
}

// FindBySlaveAccount lists every follower binding that uses the given
// account, with its owning Copier preloaded so callers can name it in a
// deletion-guard error.
func (r *CopierAccountConfigRepository) FindBySlaveAccount(ctx context.Context, accountID string) ([]model.CopierAccountConfig, error) {
	var configs []model.CopierAccountConfig
	err := r.db.WithContext(ctx).
		Preload("Copier").
		Where("slave_account_id = ?", accountID).
		Find(&configs).Error
	return configs, err
}

// Disable flips IsActive off and records why, used by the risk gate's
// auto-disable path.
func (r *CopierAccountConfigRepository) Disable(ctx context.Context, id string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.CopierAccountConfig{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":       false,
			"disabled_reason": reason,
		}).Error
}

func (r *CopierAccountConfigRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.CopierAccountConfig{}, "id = ?", id).Error
}
