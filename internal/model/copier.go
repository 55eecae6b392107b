package model

import (
	"time"

	"github.com/tradecopier/copier/internal/apperr"
)

// Copier is a replication rule: one master TradingAccount fanned out to N
// follower CopierAccountConfig rows.
type Copier struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	UserID           string       `gorm:"size:36;not null;index" json:"user_id"`
	OrganisationID   *string      `gorm:"size:36;index" json:"organisation_id,omitempty"`
	Name             string       `gorm:"size:255;not null" json:"name"`
	MasterAccountID  string       `gorm:"column:master_account_id;size:36;not null;index" json:"master_account_id"`
	Status           CopierStatus `gorm:"size:20;not null;default:STOPPED" json:"status"`
	LatencyToleranceMs int        `gorm:"column:latency_tolerance_ms;not null;default:250" json:"latency_tolerance_ms"`

	CopyEntries       bool `gorm:"column:copy_entries;not null;default:true" json:"copy_entries"`
	CopyExits         bool `gorm:"column:copy_exits;not null;default:true" json:"copy_exits"`
	CopyModifications bool `gorm:"column:copy_modifications;not null;default:false" json:"copy_modifications"`

	// SessionAware opts this copier into the supplemental NY-session size
	// damper. Off by default; never changes the base scaling math
	// unless explicitly enabled.
	SessionAware bool `gorm:"column:session_aware;not null;default:false" json:"session_aware"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MasterAccount *TradingAccount        `gorm:"constraint:OnDelete:RESTRICT" json:"master_account,omitempty"`
	Followers     []CopierAccountConfig  `gorm:"foreignKey:CopierID" json:"followers,omitempty"`
}

func (Copier) TableName() string { return "copiers" }

// CanStart reports whether a STOPPED/PAUSED copier is eligible for `start`
// (master connected, at least one active follower).
func (c *Copier) CanStart(masterConnected bool, activeFollowers int) error {
	if c.Status == CopierActive {
		return apperr.ErrAlreadyRunning
	}
	if !masterConnected {
		return apperr.ErrMasterNotConnected
	}
	if activeFollowers < 1 {
		return apperr.ErrNoActiveFollowers
	}
	return nil
}
