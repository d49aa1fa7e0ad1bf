package wallet

import "errors"

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrWalletInactive      = errors.New("wallet is deactivated")
)
