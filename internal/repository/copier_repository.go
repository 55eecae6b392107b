package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// CopierRepository handles read/write operations for copiers and their
// follower configs.
type CopierRepository struct {
	db *gorm.DB
}

func NewCopierRepository() *CopierRepository {
	return &CopierRepository{db: database.DB}
}

func (r *CopierRepository) WithDB(db *gorm.DB) *CopierRepository {
	return &CopierRepository{db: db}
}

func (r *CopierRepository) Create(ctx context.Context, copier *model.Copier) error {
	if copier.ID == "" {
		copier.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(copier).Error
}

// FindByID loads a copier and its follower configs.
func (r *CopierRepository) FindByID(ctx context.Context, id string) (*model.Copier, error) {
	var copier model.Copier
	err := r.db.WithContext(ctx).
		Preload("Followers").
		Preload("MasterAccount").
		First(&copier, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("copier not found", err)
		}
		return nil, err
	}
	return &copier, nil
}

// FindAllByUser lists every copier owned by a user.
func (r *CopierRepository) FindAllByUser(ctx context.Context, userID string) ([]model.Copier, error) {
	var copiers []model.Copier
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&copiers).Error
	return copiers, err
}

// FindAllActive lists every copier currently ACTIVE, used on daemon startup
// to restore running state after a restart.
func (r *CopierRepository) FindAllActive(ctx context.Context) ([]model.Copier, error) {
	var copiers []model.Copier
	err := r.db.WithContext(ctx).
		Preload("Followers").
		Preload("MasterAccount").
		Where("status = ?", model.CopierActive).
		Find(&copiers).Error
	return copiers, err
}

// FindByMasterAccount lists every copier that uses the given account as its
// master, used by the Account Manager's deletion guard to name the
// referencing copiers in its error.
func (r *CopierRepository) FindByMasterAccount(ctx context.Context, accountID string) ([]model.Copier, error) {
	var copiers []model.Copier
	err := r.db.WithContext(ctx).
		Where("master_account_id = ?", accountID).
		Find(&copiers).Error
	return copiers, err
}

// CopierPatch carries the PATCH /copiers/{id} mutable fields. A nil pointer
// leaves that column untouched.
type CopierPatch struct {
	Name               *string
	CopyEntries        *bool
	CopyExits          *bool
	CopyModifications  *bool
	SessionAware       *bool
	LatencyToleranceMs *int
}

// Update applies a partial update to a copier's configuration. Status is
// deliberately excluded — it only ever transitions through the engine's
// Start/Stop/Pause/Restore, never a direct field write.
func (r *CopierRepository) Update(ctx context.Context, id string, patch CopierPatch) error {
	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.CopyEntries != nil {
		updates["copy_entries"] = *patch.CopyEntries
	}
	if patch.CopyExits != nil {
		updates["copy_exits"] = *patch.CopyExits
	}
	if patch.CopyModifications != nil {
		updates["copy_modifications"] = *patch.CopyModifications
	}
	if patch.SessionAware != nil {
		updates["session_aware"] = *patch.SessionAware
	}
	if patch.LatencyToleranceMs != nil {
		updates["latency_tolerance_ms"] = *patch.LatencyToleranceMs
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Copier{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatus transitions a copier's lifecycle state.
func (r *CopierRepository) UpdateStatus(ctx context.Context, id string, status model.CopierStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Copier{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *CopierRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Copier{}, "id = ?", id).Error
}
