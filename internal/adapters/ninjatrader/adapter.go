// Package ninjatrader implements the adapters.Adapter contract for the
// NINJATRADER platform family. NinjaTrader's Automated Trading Interface
// runs locally alongside the desktop terminal and exposes no push stream,
// so this adapter relies entirely on the shared polling fallback for trade
// updates.
package ninjatrader

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

const defaultBaseURL = "http://127.0.0.1:36973"

type session struct {
	cfg     model.ConnectConfig
	disc    *adapters.DiscoveredSession
	poller  *adapters.Poller
	handler adapters.TradeUpdateHandler
	seen    map[string]bool
}

// authorize attaches NinjaTrader's ATI bridge token when discovery issued
// one, otherwise the raw apiKey the bridge also accepts as that header.
func (s *session) authorize(req *resty.Request) *resty.Request {
	token := s.disc.Token
	if token == "" {
		token = s.cfg.APIKey
	}
	return req.SetHeader("X-ATI-Token", token)
}

// Adapter is the NINJATRADER implementation, talking to the local ATI
// bridge over HTTP.
type Adapter struct {
	firm model.Firm
	base string

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a NINJATRADER adapter for one firm. baseURL is that firm's
// configured override; the package default is still tried during
// discovery when no override is set.
func New(firm model.Firm, baseURL string) *Adapter {
	return &Adapter{firm: firm, base: baseURL, sessions: make(map[string]*session)}
}

func (a *Adapter) Identity() (model.Firm, model.Platform) { return a.firm, model.PlatformNinjaTrader }

func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectConfig) error {
	if !cfg.HasAPIKey() && !cfg.HasEmailPassword() && cfg.AccountNumber == "" {
		return apperr.Validation("ninjatrader: requires an account number, an API key and secret, or an email and password", nil)
	}

	disc, err := adapters.Discover(ctx, "ninjatrader",
		adapters.CandidateBaseURLs(a.base, defaultBaseURL), cfg,
		func(client *resty.Client, d *adapters.DiscoveredSession) error {
			token := d.Token
			if token == "" {
				token = cfg.APIKey
			}
			resp, perr := client.R().SetContext(ctx).SetHeader("X-ATI-Token", token).
				Get(fmt.Sprintf("/accounts/%s", cfg.AccountNumber))
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
	return a.Unsubscribe(ctx, accountID)
}

func (a *Adapter) session(accountID string) (*session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[accountID]
	if !ok {
		return nil, apperr.NotConnected("ninjatrader: account is not connected", nil)
	}
	return s, nil
}

// IsConnected reports whether a session exists and, once a poll subscription
// is running, whether that poller's most recent fetch succeeded. A session
// with no poller yet is reported live: the Connect probe already confirmed
// the ATI bridge is reachable.
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
		Status  string `json:"status"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"account":  order.AccountID,
			"clientId": order.ClientOrderID,
			"symbol":   order.Symbol,
			"action":   order.Side,
			"type":     order.Type,
			"quantity": order.Quantity,
		}).
		SetResult(&body).
		Post("/orders")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("ninjatrader: placeOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("ninjatrader: placeOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.OrderID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		Delete(fmt.Sprintf("/orders/%s", externalOrderID))
	if err != nil {
		return apperr.Transport("ninjatrader: cancelOrder request failed", err)
	}
	if resp.IsError() {
		return apperr.Transport(fmt.Sprintf("ninjatrader: cancelOrder rejected (%d)", resp.StatusCode()), nil)
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
		Status  string `json:"status"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{"quantity": order.Quantity}).
		SetResult(&body).
		Put(fmt.Sprintf("/orders/%s", externalOrderID))
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("ninjatrader: modifyOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("ninjatrader: modifyOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.OrderID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) ClosePosition(ctx context.Context, accountID, symbol string) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetBody(map[string]interface{}{"symbol": symbol}).
		SetResult(&body).
		Post("/positions/flatten")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("ninjatrader: closePosition request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("ninjatrader: closePosition rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.OrderID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) GetAccountInfo(ctx context.Context, accountID string) (adapters.AccountSnapshot, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.AccountSnapshot{}, err
	}
	var body struct {
		CashValue float64 `json:"cashValue"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/accounts/%s", accountID))
	if err != nil {
		return adapters.AccountSnapshot{}, apperr.Transport("ninjatrader: getAccountInfo request failed", err)
	}
	if resp.IsError() {
		return adapters.AccountSnapshot{}, apperr.Transport(fmt.Sprintf("ninjatrader: getAccountInfo rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.AccountSnapshot{AccountNumber: accountID, Balance: body.CashValue, IsConnected: true}, nil
}

func (a *Adapter) GetAllAccounts(ctx context.Context) ([]adapters.AccountSnapshot, error) {
	a.mu.Lock()
	var any *session
	for _, s := range a.sessions {
		any = s
		break
	}
	a.mu.Unlock()
	if any == nil {
		return nil, apperr.NotConnected("ninjatrader: no connected session", nil)
	}

	var body []struct {
		AccountID string `json:"accountId"`
	}
	resp, err := any.authorize(any.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get("/accounts")
	if err != nil {
		return nil, apperr.Transport("ninjatrader: getAllAccounts request failed", err)
	}
	if resp.IsError() {
		if snap, err2 := a.GetAccountInfo(ctx, any.cfg.AccountNumber); err2 == nil {
			return []adapters.AccountSnapshot{snap}, nil
		}
		return nil, apperr.Transport(fmt.Sprintf("ninjatrader: getAllAccounts rejected (%d)", resp.StatusCode()), nil)
	}

	out := make([]adapters.AccountSnapshot, 0, len(body))
	for _, acc := range body {
		snap, err := a.GetAccountInfo(ctx, acc.AccountID)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (a *Adapter) OnTradeUpdate(ctx context.Context, accountID string, handler adapters.TradeUpdateHandler) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	s.handler = handler
	s.poller = adapters.NewPoller(ctx, "ninjatrader", func(pctx context.Context) error {
		return a.pollFills(pctx, accountID, s)
	})
	return nil
}

func (a *Adapter) pollFills(ctx context.Context, accountID string, s *session) error {
	var body []struct {
		OrderID  string    `json:"orderId"`
		FillID   string    `json:"fillId"`
		Symbol   string    `json:"symbol"`
		Side     string    `json:"action"`
		Quantity int       `json:"quantity"`
		Price    float64   `json:"price"`
		FilledAt time.Time `json:"filledAt"`
	}
	resp, err := s.authorize(s.disc.Client.R()).
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("/accounts/%s/fills/recent", accountID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("ninjatrader: poll fills returned %d", resp.StatusCode())
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range body {
		if s.seen[f.FillID] {
			continue
		}
		s.seen[f.FillID] = true
		if s.handler != nil {
			s.handler(model.Execution{
				AccountID:       accountID,
				Symbol:          f.Symbol,
				Side:            model.Side(f.Side),
				Type:            model.OrderTypeMarket,
				Quantity:        f.Quantity,
				Price:           f.Price,
				Status:          model.TradeStatusFilled,
				ExternalOrderID: f.OrderID,
				ExternalTradeID: f.FillID,
				FilledAt:        f.FilledAt,
			})
		}
	}
	return nil
}

func (a *Adapter) OnPositionUpdate(ctx context.Context, accountID string, handler adapters.PositionUpdateHandler) error {
	logger.WithField("adapter", "ninjatrader").Debug("position updates delivered via poll fallback, not a dedicated stream")
	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[accountID]; ok && s.poller != nil {
		s.poller.Stop()
		s.poller = nil
	}
	delete(a.sessions, accountID)
	return nil
}
