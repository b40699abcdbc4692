package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/ledger"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"
)

const (
	menuPrices  = "prices"
	menuBuy     = "buy"
	menuSell    = "sell"
	menuWallet  = "wallet"
	menuHistory = "history"
	menuExit    = "exit"
)

var tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// session drives the interactive menu loop for one logged-in user.
type session struct {
	logger *zap.Logger
	cfg    *config.Config
	engine *ledger.Engine
	owner  string
}

func newSession(logger *zap.Logger, cfg *config.Config, engine *ledger.Engine, owner string) *session {
	return &session{logger: logger, cfg: cfg, engine: engine, owner: owner}
}

// run shows the menu until the user exits. Engine failures are rendered as
// messages; they never end the session.
func (s *session) run() error {
	ctx := context.Background()

	// Seed the fiat balance on first login.
	if _, err := s.engine.EnsureWallet(ctx, s.owner); err != nil {
		return err
	}

	for {
		var choice string
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Wallet of %s", s.owner)).
					Options(
						huh.NewOption("List of crypto", menuPrices),
						huh.NewOption("Buy", menuBuy),
						huh.NewOption("Sell", menuSell),
						huh.NewOption("View wallet", menuWallet),
						huh.NewOption("View history", menuHistory),
						huh.NewOption("Exit", menuExit),
					).
					Value(&choice),
			),
		).Run()
		if err != nil {
			return err
		}

		switch choice {
		case menuPrices:
			s.showPrices(ctx)
		case menuBuy:
			s.buy(ctx)
		case menuSell:
			s.sell(ctx)
		case menuWallet:
			s.showWallet(ctx)
		case menuHistory:
			s.showHistory(ctx)
		case menuExit:
			fmt.Println("Goodbye!")
			return nil
		}
	}
}

func (s *session) showPrices(ctx context.Context) {
	listings, err := s.engine.ListPrices(ctx)
	if err != nil {
		fmt.Println(failureMessage(err))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers("Name", "Symbol", fmt.Sprintf("Price per 1 coin (%s)", s.cfg.Trading.FiatSymbol))
	for _, q := range listings {
		t.Row(q.Name, q.Symbol, formatFiat(q.Price))
	}
	fmt.Println(t)
}

func (s *session) buy(ctx context.Context) {
	var symbol, amountStr string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cryptocurrency symbol").
				Value(&symbol).
				Validate(notEmpty),
			huh.NewInput().
				Title(fmt.Sprintf("Amount in %s to buy", s.cfg.Trading.FiatSymbol)).
				Value(&amountStr).
				Validate(positiveNumber),
		),
	).Run()
	if err != nil {
		s.logger.Warn("Buy prompt aborted", zap.Error(err))
		return
	}

	amount, _ := strconv.ParseFloat(strings.TrimSpace(amountStr), 64)
	result, err := s.engine.Buy(ctx, s.owner, symbol, amount)
	if err != nil {
		fmt.Println(failureMessage(err))
		return
	}
	fmt.Printf("Bought %g %s at %s each.\n", result.AssetAmount, result.Symbol, formatFiat(result.Price))
}

func (s *session) sell(ctx context.Context) {
	var symbol string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cryptocurrency symbol").
				Value(&symbol).
				Validate(notEmpty),
		),
	).Run()
	if err != nil {
		s.logger.Warn("Sell prompt aborted", zap.Error(err))
		return
	}

	result, err := s.engine.Sell(ctx, s.owner, symbol)
	if err != nil {
		fmt.Println(failureMessage(err))
		return
	}
	fmt.Printf("Sold %g %s at %s each, credited %s.\n",
		result.AssetAmount, result.Symbol, formatFiat(result.Price), formatFiat(result.FiatAmount))
}

func (s *session) showWallet(ctx context.Context) {
	reports, err := s.engine.Valuate(ctx, s.owner)
	if err != nil {
		fmt.Println(failureMessage(err))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers("Currency", "Amount",
			fmt.Sprintf("Value in %s", s.cfg.Trading.FiatSymbol),
			"Bought Price", "Profit/Loss (%)")
	for _, r := range reports {
		profitLoss := "-"
		if !r.IsFiat {
			profitLoss = fmt.Sprintf("%.2f%%", r.ProfitLossPct)
		}
		t.Row(r.Currency,
			strconv.FormatFloat(r.Amount, 'f', -1, 64),
			formatFiat(r.ValueInFiat),
			formatFiat(r.BoughtPrice),
			profitLoss)
	}
	fmt.Println(t)
}

func (s *session) showHistory(ctx context.Context) {
	records, err := s.engine.History(ctx, s.owner)
	if err != nil {
		fmt.Println(failureMessage(err))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers("Time", "Action", "Currency", "Asset Amount",
			fmt.Sprintf("%s Amount", s.cfg.Trading.FiatSymbol))
	for _, r := range records {
		t.Row(time.Unix(r.Timestamp, 0).Format(time.DateTime),
			r.Action,
			r.Currency,
			strconv.FormatFloat(r.AssetAmount, 'f', -1, 64),
			formatFiat(r.FiatAmount))
	}
	fmt.Println(t)
}

// failureMessage maps each failure kind of the engine to its own
// human-readable message.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnknownSymbol):
		return "Error: crypto quote not found for that symbol."
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "Insufficient funds for this purchase."
	case errors.Is(err, ledger.ErrNoPosition):
		return "You do not hold a position in that symbol."
	case errors.Is(err, ledger.ErrQuoteUnavailable):
		return "The price source is currently unavailable, please try again."
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "The amount must be a positive number."
	default:
		return fmt.Sprintf("Operation failed: %v", err)
	}
}

func formatFiat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func positiveNumber(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if v <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
