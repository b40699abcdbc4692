package main

import (
	"fmt"
	"net/http"
	"os"

	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/database"
	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/logger"
	"crypto-ledger-go/internal/quotes"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// The web UI is read-only: it serves valuations and history through the
	// same ledger engine the console uses.
	quoteClient := quotes.NewClient(&cfg.Quotes, log.Named("quotes"))
	engine := ledger.NewEngine(log.Named("ledger"), &cfg, quoteClient, db)

	mux := http.NewServeMux()

	apiHandler := NewAPIHandler(log, &cfg, engine)

	// API endpoints
	mux.HandleFunc("/api/wallet", apiHandler.WalletHandler)
	mux.HandleFunc("/api/history", apiHandler.HistoryHandler)
	mux.HandleFunc("/api/prices", apiHandler.PricesHandler)
	mux.HandleFunc("/api/health", apiHandler.HealthHandler)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
