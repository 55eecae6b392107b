package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// TradeRepository handles read/write operations for trades.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.DB}
}

func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(trade).Error
}

func (r *TradeRepository) FindByID(ctx context.Context, id string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).First(&trade, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("trade not found", err)
		}
		return nil, err
	}
	return &trade, nil
}

// FindByExternalOrderID looks up a trade by the adapter's order ID, used to
// detect whether an execution has already been recorded on an account.
func (r *TradeRepository) FindByExternalOrderID(ctx context.Context, accountID, externalOrderID string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND external_order_id = ?", accountID, externalOrderID).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// FindOpenByAccount lists every non-terminal (PENDING, FILLED or
// PARTIALLY_FILLED) trade on an account.
func (r *TradeRepository) FindOpenByAccount(ctx context.Context, accountID string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status IN ?", accountID,
			[]model.TradeStatus{model.TradeStatusPending, model.TradeStatusFilled, model.TradeStatusPartiallyFilled}).
		Find(&trades).Error
	return trades, err
}

func (r *TradeRepository) UpdateStatus(ctx context.Context, id string, status model.TradeStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// TradeSearchOptions filters the trade listing endpoints (GET /trades,
// GET /trades/history). A nil pointer leaves that filter off.
type TradeSearchOptions struct {
	AccountID *string
	CopierID  *string
	Symbol    *string
	Status    *model.TradeStatus
	Limit     int
	Offset    int
}

// Search lists trades matching the given filters, newest first.
func (r *TradeRepository) Search(ctx context.Context, opts TradeSearchOptions) ([]model.Trade, error) {
	q := r.db.WithContext(ctx).Model(&model.Trade{})
	if opts.AccountID != nil {
		q = q.Where("account_id = ?", *opts.AccountID)
	}
	if opts.CopierID != nil {
		q = q.Where("copier_id = ?", *opts.CopierID)
	}
	if opts.Symbol != nil {
		q = q.Where("symbol = ?", *opts.Symbol)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", *opts.Status)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	var trades []model.Trade
	err := q.Order("created_at DESC").Limit(limit).Offset(opts.Offset).Find(&trades).Error
	return trades, err
}

// SumRealizedPnLToday returns the sum of RealizedPnL for trades closed on
// the given account since the start of the current UTC day — the figure
// the risk gate compares against the configured daily loss limit. The day
// boundary is computed here rather than with a database-side date_trunc so
// the same query runs unchanged against both the postgres production
// dialector and the sqlite dialector the repository tests run against.
func (r *TradeRepository) SumRealizedPnLToday(ctx context.Context, accountID string) (float64, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var total float64
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("account_id = ? AND status = ? AND closed_at >= ?", accountID, model.TradeStatusFilled, dayStart).
		Select("COALESCE(SUM(realized_pnl), 0)").
		Scan(&total).Error
	return total, err
}
