// Package rithmic implements the adapters.Adapter contract for the RITHMIC
// platform family (used by the MYFUNDED_FUTURES, TAKEPROFIT_TRADER,
// ALPHA_FUTURES, TRADEFY and TOPSTEPX prop firms). Rithmic's own wire
// protocol is a binary SSL gateway; this adapter fronts it with a
// lightweight REST session layer for order placement and a websocket feed
// for fills, matching the shape the other platform families expose so the
// engine never has to special-case it.
package rithmic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

const (
	defaultBaseURL = "https://rithmic-gateway.example.com"
	defaultWSURL   = "wss://rithmic-gateway.example.com/ws/fills"
)

type session struct {
	cfg     model.ConnectConfig
	disc    *adapters.DiscoveredSession
	cancel  context.CancelFunc
	handler adapters.TradeUpdateHandler
	poller  *adapters.Poller

	mu   sync.Mutex
	live bool
}

func (s *session) setLive(live bool) {
	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
}

func (s *session) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Adapter is the RITHMIC implementation for one firm.
type Adapter struct {
	firm  model.Firm
	base  string
	wsURL string

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a RITHMIC adapter for one firm. baseURL/wsURL are that firm's
// configured overrides; the package defaults are tried during discovery
// when no override is set.
func New(firm model.Firm, baseURL, wsURL string) *Adapter {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &Adapter{
		firm:     firm,
		base:     baseURL,
		wsURL:    wsURL,
		sessions: make(map[string]*session),
	}
}

func (a *Adapter) Identity() (model.Firm, model.Platform) { return a.firm, model.PlatformRithmic }

func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectConfig) error {
	if !cfg.HasEmailPassword() && cfg.AccountNumber == "" {
		return apperr.Validation("rithmic: requires email/password or an account number credential", nil)
	}

	disc, err := adapters.Discover(ctx, "rithmic",
		adapters.CandidateBaseURLs(a.base, defaultBaseURL), cfg,
		func(client *resty.Client, d *adapters.DiscoveredSession) error {
			resp, perr := client.R().SetContext(ctx).SetAuthToken(d.Token).
				Get(fmt.Sprintf("/accounts/%s/summary", cfg.AccountNumber))
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

	s := &session{cfg: cfg, disc: disc}
	s.setLive(true)

	a.mu.Lock()
	a.sessions[cfg.AccountNumber] = s
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
		return nil, apperr.NotConnected("rithmic: account is not connected", nil)
	}
	return s, nil
}

// IsConnected reports the cached session/stream liveness without issuing a
// request: true immediately after a successful Connect, then tracking the
// websocket dial/read loop once OnTradeUpdate starts it.
func (a *Adapter) IsConnected(ctx context.Context, accountID string) (bool, error) {
	s, err := a.session(accountID)
	if err != nil {
		return false, nil
	}
	return s.isLive(), nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, order adapters.TradeOrder) (adapters.OrderResult, error) {
	s, err := a.session(order.AccountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		BasketID string `json:"basketId"`
		Status   string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{
			"userTag":     order.ClientOrderID,
			"symbol":      order.Symbol,
			"transaction": order.Side,
			"orderType":   order.Type,
			"quantity":    order.Quantity,
		}).
		SetResult(&body).
		Post("/orders/submit")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("rithmic: placeOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("rithmic: placeOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.BasketID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		Post(fmt.Sprintf("/orders/%s/cancel", externalOrderID))
	if err != nil {
		return apperr.Transport("rithmic: cancelOrder request failed", err)
	}
	if resp.IsError() {
		return apperr.Transport(fmt.Sprintf("rithmic: cancelOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return nil
}

func (a *Adapter) ModifyOrder(ctx context.Context, accountID, externalOrderID string, order adapters.TradeOrder) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		BasketID string `json:"basketId"`
		Status   string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{"quantity": order.Quantity}).
		SetResult(&body).
		Post(fmt.Sprintf("/orders/%s/modify", externalOrderID))
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("rithmic: modifyOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("rithmic: modifyOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.BasketID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) ClosePosition(ctx context.Context, accountID, symbol string) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		BasketID string `json:"basketId"`
		Status   string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{"symbol": symbol}).
		SetResult(&body).
		Post("/positions/flatten")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("rithmic: closePosition request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("rithmic: closePosition rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: body.BasketID, Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) GetAccountInfo(ctx context.Context, accountID string) (adapters.AccountSnapshot, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.AccountSnapshot{}, err
	}
	var body struct {
		AccountBalance float64 `json:"accountBalance"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetResult(&body).
		Get(fmt.Sprintf("/accounts/%s/summary", accountID))
	if err != nil {
		return adapters.AccountSnapshot{}, apperr.Transport("rithmic: getAccountInfo request failed", err)
	}
	if resp.IsError() {
		return adapters.AccountSnapshot{}, apperr.Transport(fmt.Sprintf("rithmic: getAccountInfo rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.AccountSnapshot{AccountNumber: accountID, Balance: body.AccountBalance, IsConnected: true}, nil
}

func (a *Adapter) GetAllAccounts(ctx context.Context) ([]adapters.AccountSnapshot, error) {
	a.mu.Lock()
	var any *session
	for id := range a.sessions {
		any = a.sessions[id]
		break
	}
	a.mu.Unlock()
	if any == nil {
		return nil, apperr.NotConnected("rithmic: no connected session", nil)
	}

	var body []struct {
		AccountID string `json:"accountId"`
	}
	resp, err := any.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(any.disc.Token).
		SetResult(&body).
		Get("/accounts/list")
	if err != nil {
		return nil, apperr.Transport("rithmic: getAllAccounts request failed", err)
	}
	if resp.IsError() {
		if snap, err2 := a.GetAccountInfo(ctx, any.cfg.AccountNumber); err2 == nil {
			return []adapters.AccountSnapshot{snap}, nil
		}
		return nil, apperr.Transport(fmt.Sprintf("rithmic: getAllAccounts rejected (%d)", resp.StatusCode()), nil)
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

	wsCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go a.runStream(wsCtx, accountID, s)
	return nil
}

func (a *Adapter) runStream(ctx context.Context, accountID string, s *session) {
	for attempt := 1; attempt <= adapters.MaxReconnectAttempts(); attempt++ {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.wsURL, http.Header{
			"Authorization": []string{"Bearer " + s.disc.Token},
		})
		if err != nil {
			s.setLive(false)
			logger.WithFields(map[string]interface{}{
				"adapter": "rithmic", "account_id": accountID, "attempt": attempt,
			}).WithError(err).Warn("stream dial failed, backing off")
			time.Sleep(adapters.ReconnectDelay(attempt))
			continue
		}

		s.setLive(true)
		a.consume(ctx, accountID, s, conn)
		conn.Close()
		s.setLive(false)

		if ctx.Err() != nil {
			return
		}
		time.Sleep(adapters.ReconnectDelay(attempt))
	}

	logger.WithField("adapter", "rithmic").WithField("account_id", accountID).
		Warn("stream reconnect attempts exhausted, falling back to poll")

	poller := adapters.NewPoller(ctx, "rithmic", func(pctx context.Context) error {
		_, err := a.GetAccountInfo(pctx, accountID)
		return err
	})
	a.mu.Lock()
	s.poller = poller
	a.mu.Unlock()
}

func (a *Adapter) consume(ctx context.Context, accountID string, s *session, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var fill struct {
			BasketID string  `json:"basketId"`
			FillID   string  `json:"fillId"`
			Symbol   string  `json:"symbol"`
			Side     string  `json:"transaction"`
			Quantity int     `json:"quantity"`
			Price    float64 `json:"price"`
		}
		if err := json.Unmarshal(raw, &fill); err != nil {
			continue
		}
		if s.handler == nil {
			continue
		}
		s.handler(model.Execution{
			AccountID:       accountID,
			Symbol:          fill.Symbol,
			Side:            model.Side(fill.Side),
			Type:            model.OrderTypeMarket,
			Quantity:        fill.Quantity,
			Price:           fill.Price,
			Status:          model.TradeStatusFilled,
			ExternalOrderID: fill.BasketID,
			ExternalTradeID: fill.FillID,
			FilledAt:        time.Now().UTC(),
		})
	}
}

func (a *Adapter) OnPositionUpdate(ctx context.Context, accountID string, handler adapters.PositionUpdateHandler) error {
	logger.WithField("adapter", "rithmic").Debug("position updates inferred from fill stream, no dedicated channel")
	return nil
}

func (a *Adapter) Unsubscribe(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[accountID]
	if !ok {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.poller != nil {
		s.poller.Stop()
	}
	delete(a.sessions, accountID)
	return nil
}
