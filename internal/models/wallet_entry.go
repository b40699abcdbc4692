package models

import "gorm.io/gorm"

// WalletEntry represents one position of an owner in a single currency.
// The reference fiat currency (e.g. "EUR") is stored as a regular entry
// with BoughtPrice fixed at 1; asset entries are created on the first buy
// and deleted again when the position is fully sold.
type WalletEntry struct {
	gorm.Model
	Owner       string  `gorm:"uniqueIndex:idx_owner_currency;not null"`
	Currency    string  `gorm:"uniqueIndex:idx_owner_currency;not null"`
	Amount      float64 `gorm:"not null"`
	BoughtPrice float64 `gorm:"not null"`
}
