package main

import (
	"fmt"
	"os"

	"crypto-ledger-go/internal/auth"
	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/database"
	"crypto-ledger-go/internal/ledger"
	"crypto-ledger-go/internal/logger"
	"crypto-ledger-go/internal/quotes"
	"github.com/charmbracelet/huh"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
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

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Initialize the quote source client and the ledger engine
	quoteClient := quotes.NewClient(&cfg.Quotes, log.Named("quotes"))
	engine := ledger.NewEngine(log.Named("ledger"), &cfg, quoteClient, db)

	// Login before anything else; a failed login ends the program.
	var username, password string
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Username").Value(&username),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
		),
	).Run()
	if err != nil {
		log.Fatal("Login prompt failed", zap.Error(err))
	}

	user, err := auth.Authenticate(db, username, password)
	if err != nil {
		fmt.Println("Invalid username or password.")
		os.Exit(1)
	}

	session := newSession(log, &cfg, engine, user.Username)
	if err := session.run(); err != nil {
		log.Fatal("Session failed", zap.Error(err))
	}
}
