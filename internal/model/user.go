package model

import "time"

// User owns every TradingAccount and Copier in the system. Deleting a User
// cascades to its TradingAccounts (see the constraint tag on
// TradingAccount.User). Copier carries UserID with no foreign-key
// constraint, so Copier rows are not removed by that cascade.
type User struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Email            string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash     string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role             Role       `gorm:"size:20;not null;default:USER" json:"role"`
	OrganisationID   *string    `gorm:"size:36;index" json:"organisation_id,omitempty"`
	TwoFactorEnabled bool       `gorm:"column:two_factor_enabled;not null;default:false" json:"two_factor_enabled"`
	TwoFactorSecret  string     `gorm:"column:two_factor_secret;size:255" json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Organisation *Organisation `gorm:"constraint:OnDelete:SET NULL" json:"organisation,omitempty"`
}

func (User) TableName() string { return "users" }

// Organisation is a tenant grouping referenced by User and optionally Copier.
type Organisation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Slug      string    `gorm:"size:100;not null;uniqueIndex" json:"slug"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Organisation) TableName() string { return "organisations" }
