package model

import "time"

// CopierAccountConfig binds a Copier to one follower TradingAccount.
// Uniqueness of (CopierID, SlaveAccountID) is enforced at the database level
// (see internal/database migration index) and is the idempotency boundary
// for "a follower is bound to a copier at most once".
type CopierAccountConfig struct {
	ID             string      `gorm:"primaryKey;size:36" json:"id"`
	CopierID       string      `gorm:"size:36;not null;uniqueIndex:idx_copier_slave" json:"copier_id"`
	SlaveAccountID string      `gorm:"column:slave_account_id;size:36;not null;uniqueIndex:idx_copier_slave;index" json:"slave_account_id"`
	ScalingType    ScalingType `gorm:"column:scaling_type;size:20;not null" json:"scaling_type"`

	FixedContracts   *int     `gorm:"column:fixed_contracts" json:"fixed_contracts,omitempty"`
	PercentageScale  *float64 `gorm:"column:percentage_scale" json:"percentage_scale,omitempty"`

	MaxContracts   *int     `gorm:"column:max_contracts" json:"max_contracts,omitempty"`
	DailyLossLimit *float64 `gorm:"column:daily_loss_limit" json:"daily_loss_limit,omitempty"`
	AutoDisable    bool     `gorm:"column:auto_disable;not null;default:false" json:"auto_disable"`
	IsActive       bool     `gorm:"column:is_active;not null;default:true" json:"is_active"`
	DisabledReason string   `gorm:"column:disabled_reason;size:500" json:"disabled_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Copier         *Copier         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	SlaveAccount   *TradingAccount `gorm:"foreignKey:SlaveAccountID;constraint:OnDelete:RESTRICT" json:"slave_account,omitempty"`
}

func (CopierAccountConfig) TableName() string { return "copier_account_configs" }
