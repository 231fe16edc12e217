package model

import "time"

// VoucherStatus is the gift voucher lifecycle state.
type VoucherStatus string

const (
	VoucherPending VoucherStatus = "pending"
	VoucherClaimed VoucherStatus = "claimed"
	VoucherExpired VoucherStatus = "expired"
)

// Voucher is an ephemeral bearer token carrying gifted points. Creating one
// zeroes the sender's balance; claiming credits the recipient; the expiry
// sweep refunds the sender.
type Voucher struct {
	ID               int64         `json:"id"`
	Token            string        `json:"token"`
	MerchantID       int64         `json:"merchant_id"`
	MerchantClientID int64         `json:"merchant_client_id"`
	Points           int64         `json:"points"`
	Status           VoucherStatus `json:"status"`
	ClaimedByID      *int64        `json:"claimed_by_id,omitempty"`
	ExpiresAt        time.Time     `json:"expires_at"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ClaimResult reports a successful voucher claim.
type ClaimResult struct {
	Voucher *Voucher        `json:"voucher"`
	Client  *MerchantClient `json:"client"`
	Entry   *LedgerEntry    `json:"entry"`
}
