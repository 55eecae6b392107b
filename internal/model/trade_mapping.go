package model

import "time"

// TradeMapping links one master Trade to its follower Trade (or to a failure
// record). Uniqueness of (MasterTradeID, SlaveAccountID) is the system's
// idempotency guarantee: a retried fan-out can never produce two follower
// orders for the same master fill on the same follower account.
type TradeMapping struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"`
	CopierID       string        `gorm:"column:copier_id;size:36;not null;index" json:"copier_id"`
	MasterTradeID  string        `gorm:"column:master_trade_id;size:36;not null;uniqueIndex:idx_master_slave" json:"master_trade_id"`
	SlaveAccountID string        `gorm:"column:slave_account_id;size:36;not null;uniqueIndex:idx_master_slave" json:"slave_account_id"`
	SlaveTradeID   string        `gorm:"column:slave_trade_id;size:36" json:"slave_trade_id,omitempty"`
	Status         MappingStatus `gorm:"size:20;not null;default:pending" json:"status"`
	SyncedAt       *time.Time    `gorm:"column:synced_at" json:"synced_at,omitempty"`
	ErrorMessage   string        `gorm:"column:error_message;size:1000" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Copier      *Copier `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	MasterTrade *Trade  `gorm:"foreignKey:MasterTradeID" json:"-"`
	SlaveTrade  *Trade  `gorm:"foreignKey:SlaveTradeID" json:"-"`
}

func (TradeMapping) TableName() string { return "trade_mappings" }

// RiskRule is a named threshold/action attached to a CopierAccountConfig,
// evaluated in addition to the base daily-loss gate.
type RiskRule struct {
	ID                    string  `gorm:"primaryKey;size:36" json:"id"`
	CopierAccountConfigID string  `gorm:"column:copier_account_config_id;size:36;not null;index" json:"copier_account_config_id"`
	Name                  string  `gorm:"size:100;not null" json:"name"`
	Threshold             float64 `json:"threshold"`
	Action                string  `gorm:"size:20;not null" json:"action"` // "reject" | "disable"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Config *CopierAccountConfig `gorm:"foreignKey:CopierAccountConfigID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RiskRule) TableName() string { return "risk_rules" }

// ExecutionLog is an append-only audit entry written for every significant
// engine event.
type ExecutionLog struct {
	ID             string   `gorm:"primaryKey;size:36" json:"id"`
	CopierID       string   `gorm:"column:copier_id;size:36;not null;index" json:"copier_id"`
	Level          LogLevel `gorm:"size:10;not null" json:"level"`
	Message        string   `gorm:"size:1000;not null" json:"message"`
	MasterTradeID  *string  `gorm:"column:master_trade_id;size:36" json:"master_trade_id,omitempty"`
	SlaveTradeID   *string  `gorm:"column:slave_trade_id;size:36" json:"slave_trade_id,omitempty"`
	SlaveAccountID *string  `gorm:"column:slave_account_id;size:36" json:"slave_account_id,omitempty"`

	Details map[string]any `gorm:"serializer:json" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Copier *Copier `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (ExecutionLog) TableName() string { return "execution_logs" }
