package ledger

import "errors"

var (
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds   = errors.New("ledger: insufficient escrow")
	ErrNothingToWithdraw   = errors.New("ledger: no credit to withdraw")
	ErrSupplyExceeded      = errors.New("ledger: mint would exceed supply cap")
	ErrInsufficientBalance = errors.New("ledger: insufficient share balance")
)
