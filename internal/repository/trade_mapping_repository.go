package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// TradeMappingRepository handles read/write operations for master/follower
// trade mappings — the table that makes fan-out idempotent.
type TradeMappingRepository struct {
	db *gorm.DB
}

func NewTradeMappingRepository() *TradeMappingRepository {
	return &TradeMappingRepository{db: database.DB}
}

func (r *TradeMappingRepository) WithDB(db *gorm.DB) *TradeMappingRepository {
	return &TradeMappingRepository{db: db}
}

// CreateOrGet inserts a new mapping for (MasterTradeID, SlaveAccountID). If
// that pair is already mapped — the engine re-delivered the same master
// execution, or a crash-recovery replay re-ran the same fan-out — this is
// NOT an error: the existing mapping is returned so the caller can treat
// the fan-out as already satisfied instead of placing a second follower
// order.
func (r *TradeMappingRepository) CreateOrGet(ctx context.Context, mapping *model.TradeMapping) (*model.TradeMapping, bool, error) {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Create(mapping).Error
	if err == nil {
		return mapping, true, nil
	}

	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeMappingRepository", "op": "CreateOrGet",
			"master_trade_id": mapping.MasterTradeID, "slave_account_id": mapping.SlaveAccountID,
		}).WithError(err).Error("failed to create trade mapping")
		return nil, false, err
	}

	existing, findErr := r.FindByMasterAndSlave(ctx, mapping.MasterTradeID, mapping.SlaveAccountID)
	if findErr != nil {
		return nil, false, findErr
	}
	logger.WithFields(map[string]interface{}{
		"repo": "TradeMappingRepository", "op": "CreateOrGet",
		"master_trade_id": mapping.MasterTradeID, "slave_account_id": mapping.SlaveAccountID,
	}).Info("trade mapping already exists, treating fan-out as satisfied")
	return existing, false, nil
}

// FindByMasterAndSlave fetches the mapping for one (master trade, follower
// account) pair, if any.
func (r *TradeMappingRepository) FindByMasterAndSlave(ctx context.Context, masterTradeID, slaveAccountID string) (*model.TradeMapping, error) {
	var mapping model.TradeMapping
	err := r.db.WithContext(ctx).
		Where("master_trade_id = ? AND slave_account_id = ?", masterTradeID, slaveAccountID).
		First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

// FindByMaster lists every follower mapping produced from one master trade.
func (r *TradeMappingRepository) FindByMaster(ctx context.Context, masterTradeID string) ([]model.TradeMapping, error) {
	var mappings []model.TradeMapping
	err := r.db.WithContext(ctx).
		Where("master_trade_id = ?", masterTradeID).
		Find(&mappings).Error
	return mappings, err
}

// FindByCopier lists every mapping a copier has ever produced, newest first
// — the data behind GET /trades/mappings/{copierId}.
func (r *TradeMappingRepository) FindByCopier(ctx context.Context, copierID string) ([]model.TradeMapping, error) {
	var mappings []model.TradeMapping
	err := r.db.WithContext(ctx).
		Where("copier_id = ?", copierID).
		Order("created_at DESC").
		Find(&mappings).Error
	return mappings, err
}

// MarkSynced records a successful follower placement against a mapping.
func (r *TradeMappingRepository) MarkSynced(ctx context.Context, id string, slaveTradeID string, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.TradeMapping{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"slave_trade_id": slaveTradeID,
			"status":         model.MappingSynced,
			"synced_at":      syncedAt,
		}).Error
}

// MarkFailed records why a mapping's follower placement failed.
func (r *TradeMappingRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.TradeMapping{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.MappingFailed,
			"error_message": reason,
		}).Error
}
