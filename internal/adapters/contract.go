// Package adapters defines the brokerage-facing contract every platform
// family (PROJECTX, RITHMIC, TRADOVATE, NINJATRADER) implements, plus the
// shared transport helpers (auth probing, backoff, polling fallback) those
// implementations build on.
package adapters

import (
	"context"
	"time"

	"github.com/tradecopier/copier/internal/model"
)

// TradeOrder is the normalised instruction the engine sends to an adapter
// when fanning out a master execution to one follower account.
type TradeOrder struct {
	AccountID  string
	Symbol     string
	Side       model.Side
	Type       model.OrderType
	Quantity   int
	Price      *float64
	StopLoss   *float64
	TakeProfit *float64
	// ClientOrderID is generated by the caller (google/uuid) so a retried
	// placeOrder call can be recognised by the broker as the same request.
	ClientOrderID string
}

// OrderResult is what a successful placeOrder/modifyOrder/closePosition
// call returns: the broker's own identifiers for the resulting order.
type OrderResult struct {
	ExternalOrderID string
	ExternalTradeID string
	Status          model.TradeStatus
	FilledAt        *time.Time
}

// AccountSnapshot is the normalised form of getAccountInfo/getAllAccounts.
type AccountSnapshot struct {
	AccountNumber string
	Balance       float64
	IsConnected   bool
}

// TradeUpdateHandler receives normalised executions pushed (or polled) from
// a master account subscription.
type TradeUpdateHandler func(model.Execution)

// PositionUpdateHandler receives position-level updates used to detect
// full position closes for the closePosition fan-out path.
type PositionUpdateHandler func(accountID string, symbol string, netQuantity int)

// Adapter is the capability set every platform-family adapter implements.
// A single Adapter value is shared by every TradingAccount of its
// (platform, firm) pair; account-specific state is threaded through via
// ConnectConfig/accountID arguments rather than per-account adapter
// instances.
type Adapter interface {
	// Identity reports the (firm, platform) pair this adapter instance was
	// constructed for. The registry binds one instance per pair even when
	// several firms share a platform family, so this is fixed for the
	// instance's lifetime rather than computed per call.
	Identity() (model.Firm, model.Platform)

	Connect(ctx context.Context, cfg model.ConnectConfig) error
	Disconnect(ctx context.Context, accountID string) error

	// IsConnected reports the account's live connection state without a
	// network round trip: whether a session exists and, once subscribed,
	// whether its underlying stream/poll transport is currently healthy.
	// It never returns an error for "not connected" — that's a valid false,
	// not a failure of the check itself.
	IsConnected(ctx context.Context, accountID string) (bool, error)

	PlaceOrder(ctx context.Context, order TradeOrder) (OrderResult, error)
	CancelOrder(ctx context.Context, accountID, externalOrderID string) error
	ModifyOrder(ctx context.Context, accountID, externalOrderID string, order TradeOrder) (OrderResult, error)
	ClosePosition(ctx context.Context, accountID, symbol string) (OrderResult, error)

	GetAccountInfo(ctx context.Context, accountID string) (AccountSnapshot, error)
	GetAllAccounts(ctx context.Context) ([]AccountSnapshot, error)

	OnTradeUpdate(ctx context.Context, accountID string, handler TradeUpdateHandler) error
	OnPositionUpdate(ctx context.Context, accountID string, handler PositionUpdateHandler) error
	Unsubscribe(ctx context.Context, accountID string) error
}
