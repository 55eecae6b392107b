// Package projectx implements the adapters.Adapter contract for the
// PROJECTX platform family (registered for the TOPSTEPX prop firm). ProjectX exposes a conventional REST API and has no native push
// stream, so trade updates are delivered via the shared polling fallback.
package projectx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

const defaultBaseURL = "https://api.projectx.com"

type session struct {
	cfg     model.ConnectConfig
	disc    *adapters.DiscoveredSession
	poller  *adapters.Poller
	handler adapters.TradeUpdateHandler
	seen    map[string]bool
}

// authorize attaches whichever credential shape discovery settled on: a
// bearer token when the auth endpoint issued one, otherwise the raw
// apiKey/apiSecret headers ProjectX also accepts on every request.
func (s *session) authorize(req *resty.Request) *resty.Request {
	if s.disc.Token != "" {
		return req.SetAuthToken(s.disc.Token)
	}
	return req.SetHeader("X-API-KEY", s.cfg.APIKey).SetHeader("X-API-SECRET", s.cfg.APISecret)
}

// Adapter is the PROJECTX implementation, shared by every TradingAccount
// on this (platform, firm) pair.
type Adapter struct {
	firm    model.Firm
	baseURL string

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a PROJECTX adapter for one firm. baseURL is that firm's
// configured override; the package default is still tried as a fallback
// candidate during connection discovery.
func New(firm model.Firm, baseURL string) *Adapter {
	return &Adapter{firm: firm, baseURL: baseURL, sessions: make(map[string]*session)}
}

func (a *Adapter) Identity() (model.Firm, model.Platform) { return a.firm, model.PlatformProjectX }

func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectConfig) error {
	if !cfg.HasAPIKey() && !cfg.HasEmailPassword() && cfg.AccountNumber == "" {
		return apperr.Validation("projectx: requires a usable credential shape", nil)
	}

	disc, err := adapters.Discover(ctx, "projectx",
		adapters.CandidateBaseURLs(a.baseURL, defaultBaseURL), cfg,
		func(client *resty.Client, d *adapters.DiscoveredSession) error {
			req := client.R().SetContext(ctx)
			if d.Token != "" {
				req.SetAuthToken(d.Token)
			} else {
				req.SetHeader("X-API-KEY", cfg.APIKey).SetHeader("X-API-SECRET", cfg.APISecret)
			}
			resp, perr := req.Get("/api/v1/accounts")
			if perr != nil {
				return perr
			}
			if resp.IsError() {
				return fmt.Errorf("account probe returned %d", resp.StatusCode())
			}
			return nil
		})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.sessions[cfg.AccountNumber] = &session{cfg: cfg, disc: disc, seen: make(map[string]bool)}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[accountID]; ok && s.poller != nil {
		s.poller.Stop()
	}
	delete(a.sessions, accountID)
	return nil
}

func (a *Adapter) session(accountID string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[accountID]
	if !ok {
		return nil, apperr.NotConnected("projectx: account is not connected", nil)
	}
	return s, nil
}

// IsConnected reports whether a session exists and, once a poll subscription
// is running, whether that poller's most recent fetch succeeded. A session
// with no poller yet (connected but not subscribed) is reported live: the
// Connect probe already confirmed the account is reachable.
func (a *Adapter) IsConnected(ctx context.Context, accountID string) (bool, error) {
	s, err := a.session(accountID)
	if err != nil {
		return false, nil
	}
	a.mu.Lock()
	poller := s.poller
	a.mu.Unlock()
	if poller == nil {
		return true, nil
	}
	return poller.Healthy(), nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, order adapters.TradeOrder) (adapters.OrderResult, error) {
	s, err := a.session(order.AccountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}

	var body struct {
		OrderID string `json:"orderId"`
		TradeID string `json:"tradeId"`
		Status  string `json:"status"`
	}

	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"clientOrderId": order.ClientOrderID,
			"symbol":        order.Symbol,
			"side":          order.Side,
			"type":          order.Type,
			"quantity":      order.Quantity,
		}).
		SetResult(&body).
		Post("/api/v1/orders")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("projectx: placeOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("projectx: placeOrder rejected (%d)", resp.StatusCode()), nil)
	}

	return adapters.OrderResult{
		ExternalOrderID: body.OrderID,
		ExternalTradeID: body.TradeID,
		Status:          model.TradeStatus(body.Status),
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		Delete(fmt.Sprintf("/api/v1/orders/%s", externalOrderID))
	if err != nil {
		return apperr.Transport("projectx: cancelOrder request failed", err)
	}
	if resp.IsError() {
		return apperr.Transport(fmt.Sprintf("projectx: cancelOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return nil
}

func (a *Adapter) ModifyOrder(ctx context.Context, accountID, externalOrderID string, order adapters.TradeOrder) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}

	var body struct {
		OrderID string `json:"orderId"`
		TradeID string `json:"tradeId"`
		Status  string `json:"status"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"quantity":   order.Quantity,
			"price":      order.Price,
			"stopLoss":   order.StopLoss,
			"takeProfit": order.TakeProfit,
		}).
		SetResult(&body).
		Put(fmt.Sprintf("/api/v1/orders/%s", externalOrderID))
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("projectx: modifyOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("projectx: modifyOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.OrderID, ExternalTradeID: body.TradeID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) ClosePosition(ctx context.Context, accountID, symbol string) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		OrderID string `json:"orderId"`
		TradeID string `json:"tradeId"`
		Status  string `json:"status"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{"symbol": symbol}).
		SetResult(&body).
		Post("/api/v1/positions/close")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("projectx: closePosition request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("projectx: closePosition rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.OrderID, ExternalTradeID: body.TradeID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) GetAccountInfo(ctx context.Context, accountID string) (adapters.AccountSnapshot, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.AccountSnapshot{}, err
	}

	var body struct {
		AccountNumber string  `json:"accountNumber"`
		Balance       float64 `json:"balance"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get("/api/v1/accounts/me")
	if err != nil {
		return adapters.AccountSnapshot{}, apperr.Transport("projectx: getAccountInfo request failed", err)
	}
	if resp.IsError() {
		return adapters.AccountSnapshot{}, apperr.Transport(fmt.Sprintf("projectx: getAccountInfo rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.AccountSnapshot{AccountNumber: body.AccountNumber, Balance: body.Balance, IsConnected: true}, nil
}

// GetAllAccounts falls back to a single-account result (wrapping
// GetAccountInfo) when the credential set is scoped to one account,
// mirroring the account manager's connectPlatform fallback.
func (a *Adapter) GetAllAccounts(ctx context.Context) ([]adapters.AccountSnapshot, error) {
	var body []struct {
		AccountNumber string  `json:"accountNumber"`
		Balance       float64 `json:"balance"`
	}

	a.mu.Lock()
	var any *session
	for _, s := range a.sessions {
		any = s
		break
	}
	a.mu.Unlock()
	if any == nil {
		return nil, apperr.NotConnected("projectx: no connected session", nil)
	}

	resp, err := any.authorize(any.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get("/api/v1/accounts")
	if err != nil {
		return nil, apperr.Transport("projectx: getAllAccounts request failed", err)
	}
	if resp.IsError() {
		if s, err2 := a.GetAccountInfo(ctx, any.cfg.AccountNumber); err2 == nil {
			return []adapters.AccountSnapshot{s}, nil
		}
		return nil, apperr.Transport(fmt.Sprintf("projectx: getAllAccounts rejected (%d)", resp.StatusCode()), nil)
	}

	out := make([]adapters.AccountSnapshot, 0, len(body))
	for _, b := range body {
		out = append(out, adapters.AccountSnapshot{AccountNumber: b.AccountNumber, Balance: b.Balance, IsConnected: true})
	}
	return out, nil
}

func (a *Adapter) OnTradeUpdate(ctx context.Context, accountID string, handler adapters.TradeUpdateHandler) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	s.handler = handler

	s.poller = adapters.NewPoller(ctx, "projectx", func(pctx context.Context) error {
		return a.pollFills(pctx, accountID, s)
	})
	return nil
}

func (a *Adapter) pollFills(ctx context.Context, accountID string, s *session) error {
	var body []struct {
		OrderID  string    `json:"orderId"`
		TradeID  string    `json:"tradeId"`
		Symbol   string    `json:"symbol"`
		Side     string    `json:"side"`
		Type     string    `json:"type"`
		Quantity int       `json:"quantity"`
		Price    float64   `json:"price"`
		Status   string    `json:"status"`
		FilledAt time.Time `json:"filledAt"`
	}

	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get("/api/v1/fills/recent")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("projectx: poll fills returned %d", resp.StatusCode())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range body {
		if s.seen[f.TradeID] {
			continue
		}
		s.seen[f.TradeID] = true
		if s.handler != nil {
			s.handler(model.Execution{
				AccountID:       accountID,
				Symbol:          f.Symbol,
				Side:            model.Side(f.Side),
				Type:            model.OrderType(f.Type),
				Quantity:        f.Quantity,
				Price:           f.Price,
				Status:          model.TradeStatus(f.Status),
				ExternalOrderID: f.OrderID,
				ExternalTradeID: f.TradeID,
				FilledAt:        f.FilledAt,
			})
		}
	}
	return nil
}

func (a *Adapter) OnPositionUpdate(ctx context.Context, accountID string, handler adapters.PositionUpdateHandler) error {
	// ProjectX position snapshots ride the same poll cycle as fills; a
	// dedicated position stream is not part of its public API.
	logger.WithField("adapter", "projectx").Debug("position updates delivered via poll fallback, not a dedicated stream")
	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[accountID]; ok && s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
	return nil
}
