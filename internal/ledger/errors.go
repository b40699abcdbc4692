package ledger

import "errors"

// Failure taxonomy for ledger operations. Callers match with errors.Is and
// map each kind to its own user-facing message; store failures are returned
// as wrapped errors outside this set and abort the operation without any
// partial state change.
var (
	ErrUnknownSymbol     = errors.New("unknown symbol")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoPosition        = errors.New("no open position")
	ErrQuoteUnavailable  = errors.New("quote source unavailable")
	ErrInvalidAmount     = errors.New("invalid amount")
)
