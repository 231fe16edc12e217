package services

import "errors"

// Validation failures: rejected before any write.
var (
	ErrInvalidIdentifier = errors.New("email or phone is required")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrZeroAdjustment    = errors.New("adjustment delta cannot be zero")
	ErrReasonRequired    = errors.New("adjustment reason is required")
)

// Conflict and state failures: rejected inside the transaction, which is
// rolled back.
var (
	ErrClientBlocked         = errors.New("client is blocked")
	ErrInsufficientBalance   = errors.New("insufficient points balance")
	ErrNegativeBalance       = errors.New("adjustment would make balance negative")
	ErrSelfMerge             = errors.New("cannot merge a client into itself")
	ErrPinRequired           = errors.New("pin verification required")
	ErrPinIncorrect          = errors.New("pin is incorrect")
	ErrNothingToGift         = errors.New("no points to gift")
	ErrVoucherAlreadyClaimed = errors.New("voucher already claimed")
	ErrVoucherExpired        = errors.New("voucher expired")
)

// Not-found failures: reported distinctly so callers can 404 instead of 400.
var (
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrClientNotFound   = errors.New("merchant client not found")
	ErrEndUserNotFound  = errors.New("end user not found")
	ErrVoucherNotFound  = errors.New("voucher not found")
)
