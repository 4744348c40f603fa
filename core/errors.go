package core

import "errors"

// Every operation fails with exactly one of these, wrapped with context.
// Callers match with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrVerificationFailure = errors.New("verification failure")
	ErrReplay              = errors.New("replay")
	ErrSupplyExceeded      = errors.New("supply exceeded")
)
