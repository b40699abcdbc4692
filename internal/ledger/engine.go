package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/models"
	"crypto-ledger-go/internal/quotes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// TradeResult describes an executed buy or sell.
type TradeResult struct {
	Action      string
	Symbol      string
	AssetAmount float64
	FiatAmount  float64
	Price       float64
}

// PositionReport is one row of a wallet valuation.
type PositionReport struct {
	Currency      string  `json:"currency"`
	Amount        float64 `json:"amount"`
	BoughtPrice   float64 `json:"bought_price"`
	CurrentPrice  float64 `json:"current_price"`
	ValueInFiat   float64 `json:"value_in_fiat"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
	IsFiat        bool    `json:"is_fiat"` // profit/loss is not applicable to the cash row
}

// Engine is the wallet ledger engine. It holds no balance state of its own:
// every operation loads what it needs from the database and writes back, so
// the store is always the single source of truth.
type Engine struct {
	logger *zap.Logger
	cfg    *config.Config
	quotes quotes.Source
	db     *gorm.DB

	// Serializes the read-check-write sequence of trade operations so a
	// racing buy and sell cannot lose an update on the fiat row.
	mu sync.Mutex
}

// NewEngine creates a new ledger engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, source quotes.Source, db *gorm.DB) *Engine {
	return &Engine{
		logger: logger,
		cfg:    cfg,
		quotes: source,
		db:     db,
	}
}

// EnsureWallet loads the owner's fiat entry, creating it with the configured
// initial balance on first access. Idempotent: an existing balance is never
// reset.
func (e *Engine) EnsureWallet(ctx context.Context, owner string) (*models.WalletEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ensureWallet(e.db.WithContext(ctx), owner)
}

func (e *Engine) ensureWallet(tx *gorm.DB, owner string) (*models.WalletEntry, error) {
	entry := models.WalletEntry{}
	err := tx.Where(&models.WalletEntry{Owner: owner, Currency: e.cfg.Trading.FiatSymbol}).
		Attrs(models.WalletEntry{Amount: e.cfg.Trading.InitialFiat, BoughtPrice: 1}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wallet for %s: %w", owner, err)
	}
	return &entry, nil
}

// Buy converts fiatAmount of the owner's cash into symbol at the current
// market price. The balance check and both balance writes run in one store
// transaction; on any failure nothing is applied.
func (e *Engine) Buy(ctx context.Context, owner, symbol string, fiatAmount float64) (*TradeResult, error) {
	if fiatAmount <= 0 {
		return nil, fmt.Errorf("%w: fiat amount must be positive, got %g", ErrInvalidAmount, fiatAmount)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.lookupPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	assetAmount := fiatAmount / price

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fiat, err := e.ensureWallet(tx, owner)
		if err != nil {
			return err
		}
		if fiatAmount > fiat.Amount {
			return fmt.Errorf("%w: balance %.2f %s, requested %.2f",
				ErrInsufficientFunds, fiat.Amount, fiat.Currency, fiatAmount)
		}

		fiat.Amount -= fiatAmount
		if err := tx.Save(fiat).Error; err != nil {
			return fmt.Errorf("failed to debit fiat balance: %w", err)
		}

		var entry models.WalletEntry
		err = tx.Where("owner = ? AND currency = ?", owner, symbol).First(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.WalletEntry{Owner: owner, Currency: symbol, Amount: assetAmount, BoughtPrice: price}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to create position %s: %w", symbol, err)
			}
		case err != nil:
			return fmt.Errorf("failed to load position %s: %w", symbol, err)
		default:
			// Cost basis takes the latest trade's price rather than a
			// quantity-weighted average. Historical behavior, kept as-is.
			entry.Amount += assetAmount
			entry.BoughtPrice = price
			if err := tx.Save(&entry).Error; err != nil {
				return fmt.Errorf("failed to update position %s: %w", symbol, err)
			}
		}

		record := models.Transaction{
			Owner:       owner,
			Action:      ActionBuy,
			Currency:    symbol,
			AssetAmount: assetAmount,
			FiatAmount:  fiatAmount,
			Timestamp:   time.Now().Unix(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to append trade record: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logFailure("buy", owner, symbol, err)
		return nil, err
	}

	e.logger.Info("Executed buy",
		zap.String("owner", owner),
		zap.String("symbol", symbol),
		zap.Float64("asset_amount", assetAmount),
		zap.Float64("fiat_amount", fiatAmount),
		zap.Float64("price", price),
	)
	return &TradeResult{
		Action:      ActionBuy,
		Symbol:      symbol,
		AssetAmount: assetAmount,
		FiatAmount:  fiatAmount,
		Price:       price,
	}, nil
}

// Sell liquidates the owner's entire position in symbol at the current
// market price and credits the proceeds to the fiat entry. There is no
// partial sell.
func (e *Engine) Sell(ctx context.Context, owner, symbol string) (*TradeResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	e.mu.Lock()
	defer e.mu.Unlock()

	price, err := e.lookupPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var result *TradeResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.WalletEntry
		err := tx.Where("owner = ? AND currency = ?", owner, symbol).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}
		if err != nil {
			return fmt.Errorf("failed to load position %s: %w", symbol, err)
		}
		if entry.Amount == 0 {
			return fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}

		fiatValue := entry.Amount * price

		// Hard delete: a soft-deleted row would keep a stale bought price
		// around and collide with the unique index on the next buy.
		if err := tx.Unscoped().Delete(&entry).Error; err != nil {
			return fmt.Errorf("failed to close position %s: %w", symbol, err)
		}

		fiat, err := e.ensureWallet(tx, owner)
		if err != nil {
			return err
		}
		fiat.Amount += fiatValue
		if err := tx.Save(fiat).Error; err != nil {
			return fmt.Errorf("failed to credit fiat balance: %w", err)
		}

		record := models.Transaction{
			Owner:       owner,
			Action:      ActionSell,
			Currency:    symbol,
			AssetAmount: entry.Amount,
			FiatAmount:  fiatValue,
			Timestamp:   time.Now().Unix(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to append trade record: %w", err)
		}

		result = &TradeResult{
			Action:      ActionSell,
			Symbol:      symbol,
			AssetAmount: entry.Amount,
			FiatAmount:  fiatValue,
			Price:       price,
		}
		return nil
	})
	if err != nil {
		e.logFailure("sell", owner, symbol, err)
		return nil, err
	}

	e.logger.Info("Executed sell",
		zap.String("owner", owner),
		zap.String("symbol", symbol),
		zap.Float64("asset_amount", result.AssetAmount),
		zap.Float64("fiat_value", result.FiatAmount),
		zap.Float64("price", price),
	)
	return result, nil
}

// Valuate builds a read-only report over all of the owner's positions,
// ordered by currency. One listings snapshot serves the whole report; if
// the quote source is unavailable or a symbol is unlisted, that row is
// valued at price 0 instead of failing the report.
func (e *Engine) Valuate(ctx context.Context, owner string) ([]PositionReport, error) {
	var entries []models.WalletEntry
	if err := e.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("currency").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list wallet entries: %w", err)
	}

	prices := e.currentPrices(ctx)

	reports := make([]PositionReport, 0, len(entries))
	for _, entry := range entries {
		report := PositionReport{
			Currency:    entry.Currency,
			Amount:      entry.Amount,
			BoughtPrice: entry.BoughtPrice,
		}
		if entry.Currency == e.cfg.Trading.FiatSymbol {
			report.IsFiat = true
			report.CurrentPrice = 1
		} else {
			report.CurrentPrice = prices[entry.Currency]
		}
		report.ValueInFiat = entry.Amount * report.CurrentPrice
		if !report.IsFiat && report.CurrentPrice != 0 && report.BoughtPrice != 0 {
			report.ProfitLossPct = (report.CurrentPrice - report.BoughtPrice) / report.BoughtPrice * 100
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// History returns the owner's trade records, most recent first.
func (e *Engine) History(ctx context.Context, owner string) ([]models.Transaction, error) {
	var records []models.Transaction
	if err := e.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id desc").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return records, nil
}

// ListPrices returns the current market listings for display.
func (e *Engine) ListPrices(ctx context.Context) ([]quotes.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Quotes.Timeout())
	defer cancel()

	listings, err := e.quotes.ListQuotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	return listings, nil
}

// lookupPrice resolves the current unit price of symbol against one
// listings snapshot.
func (e *Engine) lookupPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Quotes.Timeout())
	defer cancel()

	listings, err := e.quotes.ListQuotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	for _, q := range listings {
		if q.Symbol == symbol {
			return q.Price, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
}

// currentPrices fetches one snapshot of all listings keyed by symbol. An
// unavailable source degrades to an empty map.
func (e *Engine) currentPrices(ctx context.Context) map[string]float64 {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Quotes.Timeout())
	defer cancel()

	listings, err := e.quotes.ListQuotes(ctx)
	if err != nil {
		e.logger.Warn("Quote source unavailable for valuation", zap.Error(err))
		return map[string]float64{}
	}
	m := make(map[string]float64, len(listings))
	for _, q := range listings {
		m[q.Symbol] = q.Price
	}
	return m
}

// logFailure separates expected rejections from store failures: the latter
// mean the transaction was rolled back and deserve an error-level entry.
func (e *Engine) logFailure(op, owner, symbol string, err error) {
	switch {
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrNoPosition):
		e.logger.Info("Trade rejected",
			zap.String("op", op), zap.String("owner", owner),
			zap.String("symbol", symbol), zap.Error(err))
	default:
		e.logger.Error("Trade aborted, transaction rolled back",
			zap.String("op", op), zap.String("owner", owner),
			zap.String("symbol", symbol), zap.Error(err))
	}
}
