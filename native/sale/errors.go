package sale

import "errors"

var (
	ErrNilState                = errors.New("sale: state not configured")
	ErrLedgerNotConfigured     = errors.New("sale: token ledger not configured")
	ErrRewardsVaultNotSet      = errors.New("sale: rewards vault not configured")
	ErrUnauthorized            = errors.New("sale: unauthorized")
	ErrSaleNotActive           = errors.New("sale: sale not active")
	ErrCapExceeded             = errors.New("sale: allocation cap exceeded")
	ErrInvalidAmount           = errors.New("sale: amount must be positive")
	ErrInvalidPhases           = errors.New("sale: invalid sale schedule")
	ErrDuplicateInitialization = errors.New("sale: already initialized")
	ErrAccountNotFound         = errors.New("sale: participant account not found")
	ErrAlreadyReferred         = errors.New("sale: referral already set")
	ErrSelfReferral            = errors.New("sale: self referral")
	ErrInvalidReferral         = errors.New("sale: invalid referral")
	ErrVestingNotComplete      = errors.New("sale: vesting period not completed")
	ErrNothingToClaim          = errors.New("sale: nothing to claim")
	ErrTransferFailed          = errors.New("sale: token transfer failed")
	ErrSupplyMinted            = errors.New("sale: supply already minted")
)
