package models

import "gorm.io/gorm"

// Transaction is an append-only record of an executed trade.
// Rows are written once by the ledger engine and never updated.
type Transaction struct {
	gorm.Model
	Owner       string  `json:"owner" gorm:"index;not null"`
	Action      string  `json:"action"` // "buy" or "sell"
	Currency    string  `json:"currency"`
	AssetAmount float64 `json:"asset_amount"`
	FiatAmount  float64 `json:"fiat_amount"`
	Timestamp   int64   `json:"timestamp"`
}
