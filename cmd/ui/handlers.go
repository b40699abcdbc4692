package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"crypto-ledger-go/internal/config"
	"crypto-ledger-go/internal/ledger"
	"go.uber.org/zap"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log    *zap.Logger
	cfg    *config.Config
	engine *ledger.Engine
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, cfg *config.Config, engine *ledger.Engine) *APIHandler {
	return &APIHandler{log: log, cfg: cfg, engine: engine}
}

// owner resolves the wallet owner from the query string, falling back to
// the configured default user.
func (h *APIHandler) owner(r *http.Request) string {
	if owner := r.URL.Query().Get("owner"); owner != "" {
		return owner
	}
	return h.cfg.Auth.DefaultUser
}

// WalletHandler returns the valuation report for the owner's wallet.
func (h *APIHandler) WalletHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := h.engine.Valuate(r.Context(), h.owner(r))
	if err != nil {
		h.log.Error("Failed to valuate wallet", zap.Error(err))
		http.Error(w, "Failed to valuate wallet", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}

// HistoryHandler returns the owner's trade records, most recent first.
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.History(r.Context(), h.owner(r))
	if err != nil {
		h.log.Error("Failed to get trade history", zap.Error(err))
		http.Error(w, "Failed to get trade history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// priceRow is the wire shape of one listing in the prices endpoint.
type priceRow struct {
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
}

// PricesHandler returns the current market listings.
func (h *APIHandler) PricesHandler(w http.ResponseWriter, r *http.Request) {
	listings, err := h.engine.ListPrices(r.Context())
	if err != nil {
		h.log.Error("Failed to list prices", zap.Error(err))
		http.Error(w, "Price source unavailable", http.StatusBadGateway)
		return
	}

	rows := make([]priceRow, 0, len(listings))
	for _, q := range listings {
		rows = append(rows, priceRow{Symbol: q.Symbol, Name: q.Name, Price: q.Price})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
