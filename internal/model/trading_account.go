package model

import "time"

// TradingAccount is a brokerage account, at one Firm on one Platform, owned
// by a User. It can act as a Copier's master, a CopierAccountConfig's
// follower, or both.
type TradingAccount struct {
	ID               string   `gorm:"primaryKey;size:36" json:"id"`
	UserID           string   `gorm:"size:36;not null;index" json:"user_id"`
	Firm             Firm     `gorm:"size:40;not null" json:"firm"`
	Platform         Platform `gorm:"size:20;not null" json:"platform"`
	AccountNumber    string   `gorm:"size:100;not null;index" json:"account_number"`
	NominalSize      float64  `json:"nominal_size"`
	LiveBalance      float64  `json:"live_balance"`

	// Credentials — stored and read as plain strings; encryption at rest is
	// an underlying concern layered below the persistence gateway (see
	// DESIGN.md open question).
	CredentialEmail    string `gorm:"column:credential_email;size:255" json:"-"`
	CredentialPassword string `gorm:"column:credential_password;size:255" json:"-"`
	APIKey             string `gorm:"column:api_key;size:255" json:"-"`
	APISecret          string `gorm:"column:api_secret;size:255" json:"-"`

	IsConnected  bool       `gorm:"column:is_connected;not null;default:false" json:"is_connected"`
	LastSyncAt   *time.Time `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	ErrorMessage string     `gorm:"column:error_message;size:1000" json:"error_message,omitempty"`

	MaxDrawdown    *float64 `gorm:"column:max_drawdown" json:"max_drawdown,omitempty"`
	DailyLossLimit *float64 `gorm:"column:daily_loss_limit" json:"daily_loss_limit,omitempty"`

	// AdditionalConfig is free-form per-adapter configuration: environment,
	// explicit base URL overrides, discovered endpoint cache, etc.
	AdditionalConfig map[string]any `gorm:"serializer:json" json:"additional_config,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (TradingAccount) TableName() string { return "trading_accounts" }

// Credentials extracts the adapter-facing connection payload from a stored
// account. Never logged directly — see internal/adapters logging rules.
func (a *TradingAccount) Credentials() ConnectConfig {
	return ConnectConfig{
		Email:         a.CredentialEmail,
		Password:      a.CredentialPassword,
		APIKey:        a.APIKey,
		APISecret:     a.APISecret,
		AccountNumber: a.AccountNumber,
		Extra:         a.AdditionalConfig,
	}
}

// ConnectConfig is the normalised credential bundle an Adapter.Connect
// accepts.
type ConnectConfig struct {
	Email         string
	Password      string
	APIKey        string
	APISecret     string
	AccountNumber string
	Extra         map[string]any
}

// HasEmailPassword reports whether the email+password credential shape is
// usable, without ever returning the secret itself.
func (c ConnectConfig) HasEmailPassword() bool { return c.Email != "" && c.Password != "" }

// HasAPIKey reports whether the apiKey+apiSecret credential shape is usable.
func (c ConnectConfig) HasAPIKey() bool { return c.APIKey != "" && c.APISecret != "" }
