package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradecopier/copier/internal/adapters"
	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

type fakeCopierStore struct {
	mu      sync.Mutex
	byID    map[string]*model.Copier
}

func newFakeCopierStore(copiers ...*model.Copier) *fakeCopierStore {
	s := &fakeCopierStore{byID: make(map[string]*model.Copier)}
	for _, c := range copiers {
		s.byID[c.ID] = c
	}
	return s
}

func (s *fakeCopierStore) FindByID(ctx context.Context, id string) (*model.Copier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("copier not found", nil)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCopierStore) FindAllActive(ctx context.Context) ([]model.Copier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Copier
	for _, c := range s.byID {
		if c.Status == model.CopierActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCopierStore) UpdateStatus(ctx context.Context, id string, status model.CopierStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return apperr.NotFound("copier not found", nil)
	}
	c.Status = status
	return nil
}

type fakeConfigStore struct {
	mu      sync.Mutex
	byCopier map[string][]*model.CopierAccountConfig
}

func newFakeConfigStore(configs ...*model.CopierAccountConfig) *fakeConfigStore {
	s := &fakeConfigStore{byCopier: make(map[string][]*model.CopierAccountConfig)}
	for _, c := range configs {
		s.byCopier[c.CopierID] = append(s.byCopier[c.CopierID], c)
	}
	return s
}

func (s *fakeConfigStore) FindActiveByCopier(ctx context.Context, copierID string) ([]model.CopierAccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CopierAccountConfig
	for _, c := range s.byCopier[copierID] {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeConfigStore) Disable(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range s.byCopier {
		for _, c := range list {
			if c.ID == id {
				c.IsActive = false
				c.DisabledReason = reason
				return nil
			}
		}
	}
	return apperr.NotFound("config not found", nil)
}

type fakeAccountStore struct {
	mu   sync.Mutex
	byID map[string]*model.TradingAccount
}

func newFakeAccountStore(accounts ...*model.TradingAccount) *fakeAccountStore {
	s := &fakeAccountStore{byID: make(map[string]*model.TradingAccount)}
	for _, a := range accounts {
		s.byID[a.ID] = a
	}
	return s
}

func (s *fakeAccountStore) FindByID(ctx context.Context, id string) (*model.TradingAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("trading account not found", nil)
	}
	acc := *a
	return &acc, nil
}

type fakeTradeStore struct {
	mu        sync.Mutex
	trades    map[string]*model.Trade
	seq       int
	pnlToday  map[string]float64
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{trades: make(map[string]*model.Trade), pnlToday: make(map[string]float64)}
}

func (s *fakeTradeStore) Create(ctx context.Context, trade *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trade.ID == "" {
		s.seq++
		trade.ID = fmt.Sprintf("trade-%d", s.seq)
	}
	cp := *trade
	s.trades[trade.ID] = &cp
	return nil
}

func (s *fakeTradeStore) FindByExternalOrderID(ctx context.Context, accountID, externalOrderID string) (*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if externalOrderID == "" {
		return nil, nil
	}
	for _, t := range s.trades {
		if t.AccountID == accountID && t.ExternalOrderID == externalOrderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeTradeStore) UpdateStatus(ctx context.Context, id string, status model.TradeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return apperr.NotFound("trade not found", nil)
	}
	t.Status = status
	return nil
}

func (s *fakeTradeStore) SumRealizedPnLToday(ctx context.Context, accountID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pnlToday[accountID], nil
}

type fakeMappingStore struct {
	mu       sync.Mutex
	byKey    map[string]*model.TradeMapping
	seq      int
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{byKey: make(map[string]*model.TradeMapping)}
}

func mappingKey(masterTradeID, slaveAccountID string) string {
	return masterTradeID + "|" + slaveAccountID
}

func (s *fakeMappingStore) CreateOrGet(ctx context.Context, mapping *model.TradeMapping) (*model.TradeMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := mappingKey(mapping.MasterTradeID, mapping.SlaveAccountID)
	if existing, ok := s.byKey[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	s.seq++
	mapping.ID = fmt.Sprintf("mapping-%d", s.seq)
	cp := *mapping
	s.byKey[key] = &cp
	out := *mapping
	return &out, true, nil
}

func (s *fakeMappingStore) MarkSynced(ctx context.Context, id string, slaveTradeID string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byKey {
		if m.ID == id {
			m.Status = model.MappingSynced
			m.SlaveTradeID = slaveTradeID
			m.SyncedAt = &syncedAt
			return nil
		}
	}
	return apperr.NotFound("mapping not found", nil)
}

func (s *fakeMappingStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byKey {
		if m.ID == id {
			m.Status = model.MappingFailed
			m.ErrorMessage = reason
			return nil
		}
	}
	return apperr.NotFound("mapping not found", nil)
}

type fakeRiskRuleStore struct {
	mu       sync.Mutex
	byConfig map[string][]model.RiskRule
}

func newFakeRiskRuleStore(configID string, rules ...model.RiskRule) *fakeRiskRuleStore {
	return &fakeRiskRuleStore{byConfig: map[string][]model.RiskRule{configID: rules}}
}

func (s *fakeRiskRuleStore) FindByConfig(ctx context.Context, configID string) ([]model.RiskRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byConfig[configID], nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	entries []*model.ExecutionLog
}

func newFakeLogStore() *fakeLogStore { return &fakeLogStore{} }

func (s *fakeLogStore) Create(ctx context.Context, entry *model.ExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// fakeAdapter is a minimal adapters.Adapter usable by both a single
// platform/firm pair in the registry and direct fan-out tests.
type fakeAdapter struct {
	mu sync.Mutex

	handlers map[string]adapters.TradeUpdateHandler

	placeOrderErr  error
	subscribeErr   error
	placedOrders   []adapters.TradeOrder
	resultStatus   model.TradeStatus
	nextOrderID    int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{handlers: make(map[string]adapters.TradeUpdateHandler), resultStatus: model.TradeStatusFilled}
}

func (a *fakeAdapter) Identity() (model.Firm, model.Platform) {
	return model.FirmTopstepX, model.PlatformProjectX
}

func (a *fakeAdapter) Connect(ctx context.Context, cfg model.ConnectConfig) error { return nil }
func (a *fakeAdapter) Disconnect(ctx context.Context, accountID string) error    { return nil }

func (a *fakeAdapter) IsConnected(ctx context.Context, accountID string) (bool, error) {
	return true, nil
}

func (a *fakeAdapter) PlaceOrder(ctx context.Context, order adapters.TradeOrder) (adapters.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.placeOrderErr != nil {
		return adapters.OrderResult{}, a.placeOrderErr
	}
	a.nextOrderID++
	a.placedOrders = append(a.placedOrders, order)
	return adapters.OrderResult{
		ExternalOrderID: fmt.Sprintf("ext-order-%d", a.nextOrderID),
		ExternalTradeID: fmt.Sprintf("ext-trade-%d", a.nextOrderID),
		Status:          a.resultStatus,
	}, nil
}

func (a *fakeAdapter) CancelOrder(ctx context.Context, accountID, externalOrderID string) error {
	return nil
}

func (a *fakeAdapter) ModifyOrder(ctx context.Context, accountID, externalOrderID string, order adapters.TradeOrder) (adapters.OrderResult, error) {
	return adapters.OrderResult{}, nil
}

func (a *fakeAdapter) ClosePosition(ctx context.Context, accountID, symbol string) (adapters.OrderResult, error) {
	return adapters.OrderResult{}, nil
}

func (a *fakeAdapter) GetAccountInfo(ctx context.Context, accountID string) (adapters.AccountSnapshot, error) {
	return adapters.AccountSnapshot{AccountNumber: accountID, IsConnected: true}, nil
}

func (a *fakeAdapter) GetAllAccounts(ctx context.Context) ([]adapters.AccountSnapshot, error) {
	return nil, nil
}

func (a *fakeAdapter) OnTradeUpdate(ctx context.Context, accountID string, handler adapters.TradeUpdateHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subscribeErr != nil {
		return a.subscribeErr
	}
	a.handlers[accountID] = handler
	return nil
}

func (a *fakeAdapter) OnPositionUpdate(ctx context.Context, accountID string, handler adapters.PositionUpdateHandler) error {
	return nil
}

func (a *fakeAdapter) Unsubscribe(ctx context.Context, accountID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.handlers, accountID)
	return nil
}

// deliver simulates the adapter pushing an execution for accountID,
// invoking whatever handler OnTradeUpdate registered.
func (a *fakeAdapter) deliver(accountID string, exec model.Execution) {
	a.mu.Lock()
	h := a.handlers[accountID]
	a.mu.Unlock()
	if h != nil {
		h(exec)
	}
}

// fakeRegistry resolves every account to the same adapter, sufficient for
// tests that only exercise one platform/firm pair at a time.
type fakeRegistry struct {
	adapter *fakeAdapter
}

func (r *fakeRegistry) ResolveForAccount(account *model.TradingAccount) (adapters.Adapter, error) {
	return r.adapter, nil
}
