package model

import "time"

// Trade is a recorded execution on one TradingAccount, optionally linked to
// the Copier that produced it (set-null on copier delete; deleted with its
// TradingAccount).
type Trade struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	AccountID string     `gorm:"column:account_id;size:36;not null;index" json:"account_id"`
	CopierID  *string    `gorm:"column:copier_id;size:36;index" json:"copier_id,omitempty"`

	Symbol   string      `gorm:"size:40;not null" json:"symbol"`
	Side     Side        `gorm:"size:10;not null" json:"side"`
	Type     OrderType   `gorm:"size:10;not null" json:"type"`
	Quantity int         `gorm:"not null" json:"quantity"`

	EntryPrice    *float64 `gorm:"column:entry_price" json:"entry_price,omitempty"`
	ExitPrice     *float64 `gorm:"column:exit_price" json:"exit_price,omitempty"`
	StopLoss      *float64 `gorm:"column:stop_loss" json:"stop_loss,omitempty"`
	TakeProfit    *float64 `gorm:"column:take_profit" json:"take_profit,omitempty"`

	Status TradeStatus `gorm:"size:20;not null;default:PENDING" json:"status"`

	OpenedAt *time.Time `gorm:"column:opened_at" json:"opened_at,omitempty"`
	ClosedAt *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`
	FilledAt *time.Time `gorm:"column:filled_at" json:"filled_at,omitempty"`

	RealizedPnL *float64 `gorm:"column:realized_pnl" json:"realized_pnl,omitempty"`

	ExternalOrderID string `gorm:"column:external_order_id;size:100;index" json:"external_order_id,omitempty"`
	ExternalTradeID string `gorm:"column:external_trade_id;size:100;index" json:"external_trade_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Account *TradingAccount `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"-"`
	Copier  *Copier         `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}

func (Trade) TableName() string { return "trades" }

// Execution is the adapter-normalised event delivered on a master
// subscription. It is not persisted directly — the engine maps it onto
// a Trade row.
type Execution struct {
	AccountID       string
	Symbol          string
	Side            Side
	Type            OrderType
	Quantity        int
	Price           float64
	StopLoss        *float64
	TakeProfit      *float64
	Status          TradeStatus
	ExternalOrderID string
	ExternalTradeID string
	FilledAt        time.Time
	// IsModification marks this execution as a change to an existing order
	// rather than a fresh entry/exit (used for the copyModifications filter).
	IsModification bool
}
