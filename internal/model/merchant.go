package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantStatus is the tenant lifecycle state.
type MerchantStatus string

const (
	MerchantStatusPending   MerchantStatus = "pending"
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusSuspended MerchantStatus = "suspended"
	MerchantStatusRejected  MerchantStatus = "rejected"
	MerchantStatusCancelled MerchantStatus = "cancelled"
)

// Merchant is a tenant with its loyalty configuration.
type Merchant struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Status            MerchantStatus  `json:"status"`
	PointsPerUnit     decimal.Decimal `json:"points_per_unit"`
	PointsForReward   int64           `json:"points_for_reward"`
	RewardDescription string          `json:"reward_description"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// MerchantClient is the tenant-scoped relationship holding one merchant's
// points balance for one end user. PointsBalance is a materialized view over
// the ledger: it must equal the signed sum of PointsDelta of all ledger
// entries referencing this row.
type MerchantClient struct {
	ID            int64           `json:"id"`
	MerchantID    int64           `json:"merchant_id"`
	EndUserID     int64           `json:"end_user_id"`
	PointsBalance int64           `json:"points_balance"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	VisitCount    int64           `json:"visit_count"`
	FirstVisit    *time.Time      `json:"first_visit,omitempty"`
	LastVisit     *time.Time      `json:"last_visit,omitempty"`
	Blocked       bool            `json:"blocked"`
	CustomReward  *string         `json:"custom_reward,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RewardLabel resolves the reward description shown on redemption: the
// per-client override wins over the merchant default.
func (c *MerchantClient) RewardLabel(m *Merchant) string {
	if c.CustomReward != nil && *c.CustomReward != "" {
		return *c.CustomReward
	}
	return m.RewardDescription
}
