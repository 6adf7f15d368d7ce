package treasury

import "errors"

var (
	ErrNilState            = errors.New("treasury: state not configured")
	ErrLedgerNotConfigured = errors.New("treasury: token ledger not configured")
	ErrNotInitialized      = errors.New("treasury: not initialized")
	ErrAlreadyInitialized  = errors.New("treasury: already initialized")
	ErrUnauthorized        = errors.New("treasury: unauthorized")
	ErrInvalidAmount       = errors.New("treasury: amount must be positive")
	ErrBeneficiaryExists   = errors.New("treasury: beneficiary already registered")
	ErrBeneficiaryNotFound = errors.New("treasury: beneficiary not found")
	ErrTransferFailed      = errors.New("treasury: token transfer failed")
)
