package service

import "errors"

var (
	// ErrInvalidRequest marks caller errors in a scoring request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSearchDisabled is returned when no score index is configured
	ErrSearchDisabled = errors.New("score search is not enabled")
	// ErrLedgerDisabled is returned when no run ledger is configured
	ErrLedgerDisabled = errors.New("run ledger is not enabled")
)
