package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// TradingAccountRepository handles read/write operations for trading accounts.
type TradingAccountRepository struct {
	db *gorm.DB
}

func NewTradingAccountRepository() *TradingAccountRepository {
	return &TradingAccountRepository{db: database.DB}
}

func (r *TradingAccountRepository) WithDB(db *gorm.DB) *TradingAccountRepository {
	return &TradingAccountRepository{db: db}
}

// Create inserts a new trading account belonging to a user.
func (r *TradingAccountRepository) Create(ctx context.Context, account *model.TradingAccount) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradingAccountRepository", "op": "Create", "platform": account.Platform,
		}).WithError(err).Error("failed to create trading account")
		return err
	}
	return nil
}

// FindByID fetches a single trading account by primary key.
func (r *TradingAccountRepository) FindByID(ctx context.Context, id string) (*model.TradingAccount, error) {
	var account model.TradingAccount
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("trading account not found", err)
		}
		return nil, err
	}
	return &account, nil
}

// FindAllByUser returns every trading account owned by the given user,
// newest first.
func (r *TradingAccountRepository) FindAllByUser(ctx context.Context, userID string) ([]model.TradingAccount, error) {
	var accounts []model.TradingAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}

// FindByUserFirmAccountNumber looks up the account uniquely identified by
// (userID, firm, accountNumber) — the upsert key createAccountsFromPlatform
// uses to avoid creating duplicate rows for an account discovered twice.
// Returns (nil, nil) when no match exists.
func (r *TradingAccountRepository) FindByUserFirmAccountNumber(ctx context.Context, userID string, firm model.Firm, accountNumber string) (*model.TradingAccount, error) {
	var account model.TradingAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND firm = ? AND account_number = ?", userID, firm, accountNumber).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// UpdateCredentials stores a freshly supplied credential bundle on an
// existing account and marks it connected, used when
// createAccountsFromPlatform upserts an account that already exists.
func (r *TradingAccountRepository) UpdateCredentials(ctx context.Context, id string, creds model.ConnectConfig) error {
	updates := map[string]interface{}{
		"credential_email":    creds.Email,
		"credential_password": creds.Password,
		"api_key":             creds.APIKey,
		"api_secret":          creds.APISecret,
		"is_connected":        true,
		"last_sync_at":        time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Model(&model.TradingAccount{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// AccountPatch carries the PATCH /accounts/{id} mutable fields. A nil
// pointer leaves that column untouched.
type AccountPatch struct {
	NominalSize    *float64
	MaxDrawdown    *float64
	DailyLossLimit *float64
}

// UpdateRiskSettings applies a partial update to an account's risk
// configuration. Credentials and connection state have their own narrower
// setters and are never touched here.
func (r *TradingAccountRepository) UpdateRiskSettings(ctx context.Context, id string, patch AccountPatch) error {
	updates := map[string]interface{}{}
	if patch.NominalSize != nil {
		updates["nominal_size"] = *patch.NominalSize
	}
	if patch.MaxDrawdown != nil {
		updates["max_drawdown"] = *patch.MaxDrawdown
	}
	if patch.DailyLossLimit != nil {
		updates["daily_loss_limit"] = *patch.DailyLossLimit
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.TradingAccount{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateConnectionState records the outcome of a connect/testConnection call.
func (r *TradingAccountRepository) UpdateConnectionState(ctx context.Context, id string, connected bool, errMsg string) error {
	updates := map[string]interface{}{
		"is_connected":  connected,
		"error_message": errMsg,
		"last_sync_at":  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Model(&model.TradingAccount{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateBalance persists the latest snapshot pulled from getAccountInfo.
func (r *TradingAccountRepository) UpdateBalance(ctx context.Context, id string, liveBalance float64) error {
	return r.db.WithContext(ctx).
		Model(&model.TradingAccount{}).
		Where("id = ?", id).
		Update("live_balance", liveBalance).Error
}

// Delete removes a trading account. Deletion is blocked at the database
// level (RESTRICT) while the account is still referenced as a master or
// follower by any Copier/CopierAccountConfig row, whatever its status.
func (r *TradingAccountRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Delete(&model.TradingAccount{}, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return apperr.Conflict("trading account is still referenced by a copier", err)
		}
		return err
	}
	return nil
}
