package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType is the kind of balance-affecting event a ledger entry records.
type EntryType string

const (
	EntryCredit     EntryType = "credit"
	EntryReward     EntryType = "reward"
	EntryMerge      EntryType = "merge"
	EntryAdjustment EntryType = "adjustment"
	EntryGiftOut    EntryType = "gift_out"
	EntryGiftIn     EntryType = "gift_in"
	EntryGiftRefund EntryType = "gift_refund"
)

// LedgerEntry is an immutable record of one balance-affecting event. Entries
// are only ever written by the ledger engine and only deleted as part of an
// explicit client-deletion flow. Merge entries may carry PointsDelta == 0
// purely as an audit trace.
type LedgerEntry struct {
	ID               int64            `json:"id"`
	MerchantID       int64            `json:"merchant_id"`
	MerchantClientID int64            `json:"merchant_client_id"`
	StaffID          *int64           `json:"staff_id,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	PointsDelta      int64            `json:"points_delta"`
	Type             EntryType        `json:"type"`
	IdempotencyKey   *string          `json:"idempotency_key,omitempty"`
	Source           string           `json:"source"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// CreditRequest is the input for crediting points after a visit.
type CreditRequest struct {
	MerchantID     int64
	StaffID        *int64
	Email          string
	Phone          string
	Name           string
	PinHash        string
	Amount         decimal.Decimal
	IdempotencyKey string
	Source         string
}

func (r CreditRequest) Validate() error {
	if r.MerchantID == 0 {
		return errors.New("merchant_id is required")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.Email == "" && r.Phone == "" {
		return errors.New("email or phone is required")
	}
	return nil
}

// CreditResult reports a completed (or replayed) credit. NewEndUser and
// NewClient let callers pick the right notification; Idempotent marks a
// replay whose side effects must not repeat.
type CreditResult struct {
	EndUser    *EndUser        `json:"end_user"`
	Client     *MerchantClient `json:"client"`
	Entry      *LedgerEntry    `json:"entry"`
	NewEndUser bool            `json:"new_end_user"`
	NewClient  bool            `json:"new_client"`
	Idempotent bool            `json:"idempotent"`
}

// RedeemRequest is the input for converting a balance into a reward.
// Verification is either a plain-text PIN checked against the end user's
// stored hash, or a presence token proving a QR scan happened.
type RedeemRequest struct {
	MerchantID       int64
	MerchantClientID int64
	StaffID          *int64
	IdempotencyKey   string
	Pin              string
	VerifiedPresence bool
}

// RedeemResult reports a completed (or replayed) redemption.
type RedeemResult struct {
	Client      *MerchantClient `json:"client"`
	Entry       *LedgerEntry    `json:"entry"`
	RewardLabel string          `json:"reward_label"`
	Idempotent  bool            `json:"idempotent"`
}

// AdjustRequest is a deliberate one-shot manual balance correction. No
// idempotency key: retries are the operator's responsibility.
type AdjustRequest struct {
	MerchantID       int64
	MerchantClientID int64
	PointsDelta      int64
	StaffID          int64
	Reason           string
}

// AdjustResult reports a completed manual adjustment.
type AdjustResult struct {
	Client *MerchantClient `json:"client"`
	Entry  *LedgerEntry    `json:"entry"`
}

// MergeRecord is the append-only audit trail of an end user consolidation.
// SourceEndUserID may no longer exist as an active entity.
type MergeRecord struct {
	ID              int64     `json:"id"`
	SourceEndUserID int64     `json:"source_end_user_id"`
	TargetEndUserID int64     `json:"target_end_user_id"`
	Actor           string    `json:"actor"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}
