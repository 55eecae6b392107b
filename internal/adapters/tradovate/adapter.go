// Package tradovate implements the adapters.Adapter contract for the
// TRADOVATE platform family (used by the TAKEPROFIT_TRADER and
// MYFUNDED_FUTURES prop firms). Tradovate authenticates with email/password
// to obtain a bearer token, then pushes fills over a websocket feed.
package tradovate

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
	defaultBaseURL = "https://demo.tradovateapi.com/v1"
	defaultWSURL   = "wss://demo.tradovateapi.com/v1/websocket"
)

type session struct {
	cfg        model.ConnectConfig
	disc       *adapters.DiscoveredSession
	conn       *websocket.Conn
	cancel     context.CancelFunc
	handler    adapters.TradeUpdateHandler
	posHandler adapters.PositionUpdateHandler
	poller     *adapters.Poller

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

// Adapter is the TRADOVATE implementation for one firm.
type Adapter struct {
	firm  model.Firm
	base  string
	wsURL string

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a TRADOVATE adapter for one firm. baseURL/wsURL are that
// firm's configured overrides; the package defaults are tried during
// discovery when no override is set.
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

func (a *Adapter) Identity() (model.Firm, model.Platform) { return a.firm, model.PlatformTradovate }

func (a *Adapter) Connect(ctx context.Context, cfg model.ConnectConfig) error {
	if !cfg.HasEmailPassword() {
		return apperr.Validation("tradovate: requires email/password credentials", nil)
	}

	disc, err := adapters.Discover(ctx, "tradovate",
		adapters.CandidateBaseURLs(a.base, defaultBaseURL), cfg,
		func(client *resty.Client, d *adapters.DiscoveredSession) error {
			resp, perr := client.R().SetContext(ctx).SetAuthToken(d.Token).Get("/account/list")
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
		return nil, apperr.NotConnected("tradovate: account is not connected", nil)
	}
	return s, nil
}

// IsConnected reports the cached session/stream liveness without issuing a
// request, the same way the rithmic adapter does.
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
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{
			"accountId": order.AccountID,
			"clOrdId":   order.ClientOrderID,
			"symbol":    order.Symbol,
			"action":    order.Side,
			"orderType": order.Type,
			"orderQty":  order.Quantity,
			"price":     order.Price,
		}).
		SetResult(&body).
		Post("/order/placeorder")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("tradovate: placeOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("tradovate: placeOrder rejected (%d)", resp.StatusCode()), nil)
	}

	return adapters.OrderResult{
		ExternalOrderID: fmt.Sprintf("%d", body.OrderID),
		Status:          model.TradeStatus(body.Status),
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{"orderId": externalOrderID}).
		Post("/order/cancelorder")
	if err != nil {
		return apperr.Transport("tradovate: cancelOrder request failed", err)
	}
	if resp.IsError() {
		return apperr.Transport(fmt.Sprintf("tradovate: cancelOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return nil
}

func (a *Adapter) ModifyOrder(ctx context.Context, accountID, externalOrderID string, order adapters.TradeOrder) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{
			"orderId":  externalOrderID,
			"orderQty": order.Quantity,
			"price":    order.Price,
		}).
		SetResult(&body).
		Post("/order/modifyorder")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("tradovate: modifyOrder request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("tradovate: modifyOrder rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: fmt.Sprintf("%d", body.OrderID), Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) ClosePosition(ctx context.Context, accountID, symbol string) (adapters.OrderResult, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.OrderResult{}, err
	}
	var body struct {
		OrderID int64  `json:"orderId"`
		Status  string `json:"status"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetBody(map[string]interface{}{"accountId": accountID, "symbol": symbol}).
		SetResult(&body).
		Post("/position/closeposition")
	if err != nil {
		return adapters.OrderResult{}, apperr.Transport("tradovate: closePosition request failed", err)
	}
	if resp.IsError() {
		return adapters.OrderResult{}, apperr.Transport(fmt.Sprintf("tradovate: closePosition rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.OrderResult{ExternalOrderID: fmt.Sprintf("%d", body.OrderID), Status: model.TradeStatus(body.Status)}, nil
}

func (a *Adapter) GetAccountInfo(ctx context.Context, accountID string) (adapters.AccountSnapshot, error) {
	s, err := a.session(accountID)
	if err != nil {
		return adapters.AccountSnapshot{}, err
	}
	var body struct {
		CashBalance float64 `json:"cashBalance"`
	}
	resp, err := s.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(s.disc.Token).
		SetResult(&body).
		Get(fmt.Sprintf("/cashBalance/getcashbalancesnapshot/%s", accountID))
	if err != nil {
		return adapters.AccountSnapshot{}, apperr.Transport("tradovate: getAccountInfo request failed", err)
	}
	if resp.IsError() {
		return adapters.AccountSnapshot{}, apperr.Transport(fmt.Sprintf("tradovate: getAccountInfo rejected (%d)", resp.StatusCode()), nil)
	}
	return adapters.AccountSnapshot{AccountNumber: accountID, Balance: body.CashBalance, IsConnected: true}, nil
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
		return nil, apperr.NotConnected("tradovate: no connected session", nil)
	}

	var body []struct {
		ID int64 `json:"id"`
	}
	resp, err := any.disc.Client.R().
		SetContext(ctx).
		SetAuthToken(any.disc.Token).
		SetResult(&body).
		Get("/account/list")
	if err != nil {
		return nil, apperr.Transport("tradovate: getAllAccounts request failed", err)
	}
	if resp.IsError() {
		if snap, err2 := a.GetAccountInfo(ctx, any.cfg.AccountNumber); err2 == nil {
			return []adapters.AccountSnapshot{snap}, nil
		}
		return nil, apperr.Transport(fmt.Sprintf("tradovate: getAllAccounts rejected (%d)", resp.StatusCode()), nil)
	}

	out := make([]adapters.AccountSnapshot, 0, len(body))
	for _, acc := range body {
		accountID := fmt.Sprintf("%d", acc.ID)
		snap, err := a.GetAccountInfo(ctx, accountID)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// OnTradeUpdate opens the websocket fill feed and reconnects with the
// shared backoff policy until adapters.MaxReconnectAttempts is
// exhausted, at which point it falls back to a poller that calls
// GetAccountInfo each tick. That fallback tracks session health only; it
// does not deliver fills to handler.
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
				"adapter": "tradovate", "account_id": accountID, "attempt": attempt,
			}).WithError(err).Warn("stream dial failed, backing off")
			time.Sleep(adapters.ReconnectDelay(attempt))
			continue
		}

		a.mu.Lock()
		s.conn = conn
		a.mu.Unlock()

		s.setLive(true)
		a.consume(ctx, accountID, s, conn)
		conn.Close()
		s.setLive(false)

		if ctx.Err() != nil {
			return
		}
		time.Sleep(adapters.ReconnectDelay(attempt))
	}

	logger.WithField("adapter", "tradovate").WithField("account_id", accountID).
		Warn("stream reconnect attempts exhausted, falling back to poll")

	a.pollFallback(ctx, accountID, s)
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

		var evt struct {
			EventType string `json:"e"`
			Fill      struct {
				OrderID int64   `json:"orderId"`
				TradeID int64   `json:"id"`
				Symbol  string  `json:"contractId"`
				Side    string  `json:"action"`
				Qty     int     `json:"qty"`
				Price   float64 `json:"price"`
			} `json:"d"`
		}
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}
		if evt.EventType != "fill" || s.handler == nil {
			continue
		}
		s.handler(model.Execution{
			AccountID:       accountID,
			Symbol:          evt.Fill.Symbol,
			Side:            model.Side(evt.Fill.Side),
			Type:            model.OrderTypeMarket,
			Quantity:        evt.Fill.Qty,
			Price:           evt.Fill.Price,
			Status:          model.TradeStatusFilled,
			ExternalOrderID: fmt.Sprintf("%d", evt.Fill.OrderID),
			ExternalTradeID: fmt.Sprintf("%d", evt.Fill.TradeID),
			FilledAt:        time.Now().UTC(),
		})
	}
}

func (a *Adapter) pollFallback(ctx context.Context, accountID string, s *session) {
	poller := adapters.NewPoller(ctx, "tradovate", func(pctx context.Context) error {
		_, err := a.GetAccountInfo(pctx, accountID)
		return err
	})
	a.mu.Lock()
	s.poller = poller
	a.mu.Unlock()
}

func (a *Adapter) OnPositionUpdate(ctx context.Context, accountID string, handler adapters.PositionUpdateHandler) error {
	s, err := a.session(accountID)
	if err != nil {
		return err
	}
	s.posHandler = handler
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
	if s.conn != nil {
		s.conn.Close()
	}
	if s.poller != nil {
		s.poller.Stop()
	}
	delete(a.sessions, accountID)
	return nil
}
