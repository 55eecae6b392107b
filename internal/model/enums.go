package model

// Role is a User's access level.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Firm identifies the prop-trading firm that issued a TradingAccount.
type Firm string

const (
	FirmTopstepX          Firm = "TOPSTEPX"
	FirmAlphaFutures      Firm = "ALPHA_FUTURES"
	FirmMyFundedFutures   Firm = "MYFUNDED_FUTURES"
	FirmTakeProfitTrader  Firm = "TAKEPROFIT_TRADER"
	FirmTradefy           Firm = "TRADEFY"
)

// Platform identifies the underlying brokerage platform family a Firm runs on.
type Platform string

const (
	PlatformRithmic     Platform = "RITHMIC"
	PlatformTradovate   Platform = "TRADOVATE"
	PlatformNinjaTrader Platform = "NINJATRADER"
	PlatformProjectX    Platform = "PROJECTX"
	PlatformOther       Platform = "OTHER"
)

// CopierStatus is the Copier.status state machine.
type CopierStatus string

const (
	CopierStopped CopierStatus = "STOPPED"
	CopierActive  CopierStatus = "ACTIVE"
	CopierPaused  CopierStatus = "PAUSED"
	CopierError   CopierStatus = "ERROR"
)

// ScalingType selects how a follower's order size is derived from the master's.
type ScalingType string

const (
	ScalingFixed         ScalingType = "FIXED"
	ScalingPercentage    ScalingType = "PERCENTAGE"
	ScalingBalanceBased  ScalingType = "BALANCE_BASED"
)

// Side is the canonical, adapter-normalised order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType is the canonical order type. Stop/limit propagation to followers
// is not performed in the current engine (see DESIGN.md open question), but
// the type is still recorded on the master Trade.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// TradeStatus is the canonical, adapter-normalised execution status.
type TradeStatus string

const (
	TradeStatusPending         TradeStatus = "PENDING"
	TradeStatusFilled          TradeStatus = "FILLED"
	TradeStatusPartiallyFilled TradeStatus = "PARTIALLY_FILLED"
	TradeStatusCancelled       TradeStatus = "CANCELLED"
	TradeStatusRejected        TradeStatus = "REJECTED"
)

// MappingStatus is the TradeMapping lifecycle, doubling as the idempotent
// replay signal: a mapping already SYNCED or FAILED means this fan-out
// attempt has already happened.
type MappingStatus string

const (
	MappingPending MappingStatus = "pending"
	MappingSynced  MappingStatus = "synced"
	MappingFailed  MappingStatus = "failed"
)

// LogLevel is the ExecutionLog severity.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)
