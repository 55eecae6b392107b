package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

// MockAdapter satisfies the Adapter contract entirely in memory, standing in
// for every real platform family when USE_REAL_ADAPTERS=false (local dev,
// integration tests against cmd/copierd without brokerage credentials).
// Orders are accepted unconditionally and immediately marked FILLED; there
// is no simulated rejection path since nothing in this codebase exercises
// one against a live account here.
type MockAdapter struct {
	firm     model.Firm
	platform model.Platform

	mu       sync.Mutex
	sessions map[string]model.ConnectConfig
}

// NewMock builds a MockAdapter bound to one (firm, platform) pair, mirroring
// how the real platform-family adapters are constructed one-per-pair.
func NewMock(firm model.Firm, platform model.Platform) *MockAdapter {
	return &MockAdapter{firm: firm, platform: platform, sessions: make(map[string]model.ConnectConfig)}
}

func (a *MockAdapter) Identity() (model.Firm, model.Platform) { return a.firm, a.platform }

func (a *MockAdapter) Connect(ctx context.Context, cfg model.ConnectConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions[cfg.AccountNumber] = cfg
	return nil
}

func (a *MockAdapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, accountID)
	return nil
}

func (a *MockAdapter) connected(accountID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.sessions[accountID]
	return ok
}

// IsConnected mirrors connected() without a network round trip — there's
// nothing to probe in memory, so the session map is the whole answer.
func (a *MockAdapter) IsConnected(ctx context.Context, accountID string) (bool, error) {
	return a.connected(accountID), nil
}

func (a *MockAdapter) PlaceOrder(ctx context.Context, order TradeOrder) (OrderResult, error) {
	if !a.connected(order.AccountID) {
		return OrderResult{}, apperr.NotConnected("mock: account is not connected", nil)
	}
	now := time.Now()
	return OrderResult{
		ExternalOrderID: uuid.NewString(),
		ExternalTradeID: uuid.NewString(),
		Status:          model.TradeStatusFilled,
		FilledAt:        &now,
	}, nil
}

func (a *MockAdapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	if !a.connected(accountID) {
		return apperr.NotConnected("mock: account is not connected", nil)
	}
	return nil
}

func (a *MockAdapter) ModifyOrder(ctx context.Context, accountID, externalOrderID string, order TradeOrder) (OrderResult, error) {
	if !a.connected(accountID) {
		return OrderResult{}, apperr.NotConnected("mock: account is not connected", nil)
	}
	now := time.Now()
	return OrderResult{ExternalOrderID: externalOrderID, ExternalTradeID: uuid.NewString(), Status: model.TradeStatusFilled, FilledAt: &now}, nil
}

func (a *MockAdapter) ClosePosition(ctx context.Context, accountID, symbol string) (OrderResult, error) {
	if !a.connected(accountID) {
		return OrderResult{}, apperr.NotConnected("mock: account is not connected", nil)
	}
	now := time.Now()
	return OrderResult{ExternalOrderID: uuid.NewString(), ExternalTradeID: uuid.NewString(), Status: model.TradeStatusFilled, FilledAt: &now}, nil
}

func (a *MockAdapter) GetAccountInfo(ctx context.Context, accountID string) (AccountSnapshot, error) {
	if !a.connected(accountID) {
		return AccountSnapshot{}, apperr.NotConnected("mock: account is not connected", nil)
	}
	return AccountSnapshot{AccountNumber: accountID, Balance: 50000, IsConnected: true}, nil
}

func (a *MockAdapter) GetAllAccounts(ctx context.Context) ([]AccountSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AccountSnapshot, 0, len(a.sessions))
	for accountNumber := range a.sessions {
		out = append(out, AccountSnapshot{AccountNumber: accountNumber, Balance: 50000, IsConnected: true})
	}
	return out, nil
}

// OnTradeUpdate never pushes anything on its own; tests and local
// exercising code drive fills by calling Push directly.
func (a *MockAdapter) OnTradeUpdate(ctx context.Context, accountID string, handler TradeUpdateHandler) error {
	if !a.connected(accountID) {
		return apperr.NotConnected("mock: account is not connected", nil)
	}
	return nil
}

func (a *MockAdapter) OnPositionUpdate(ctx context.Context, accountID string, handler PositionUpdateHandler) error {
	return nil
}

func (a *MockAdapter) Unsubscribe(ctx context.Context, accountID string) error {
	return nil
}
