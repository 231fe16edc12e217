package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
)

type MerchantClientEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	MerchantID    int64           `db:"merchant_id"    gorm:"column:merchant_id;not null;uniqueIndex:idx_client_merchant_user"`
	EndUserID     int64           `db:"end_user_id"    gorm:"column:end_user_id;not null;uniqueIndex:idx_client_merchant_user"`
	PointsBalance int64           `db:"points_balance" gorm:"column:points_balance;not null;default:0"`
	TotalSpent    decimal.Decimal `db:"total_spent"    gorm:"column:total_spent;type:decimal(12,2);not null;default:0"`
	VisitCount    int64           `db:"visit_count"    gorm:"column:visit_count;not null;default:0"`
	FirstVisit    *time.Time      `db:"first_visit"    gorm:"column:first_visit"`
	LastVisit     *time.Time      `db:"last_visit"     gorm:"column:last_visit"`
	Blocked       bool            `db:"blocked"        gorm:"column:blocked;not null;default:false"`
	CustomReward  *string         `db:"custom_reward"  gorm:"column:custom_reward"`
	CreatedAt     time.Time       `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `db:"updated_at"     gorm:"column:updated_at;autoUpdateTime"`
}

func (MerchantClientEntity) TableName() string {
	return "merchant_clients"
}

func toMerchantClientEntity(m *model.MerchantClient) *MerchantClientEntity {
	if m == nil {
		return nil
	}
	return &MerchantClientEntity{
		ID:            m.ID,
		MerchantID:    m.MerchantID,
		EndUserID:     m.EndUserID,
		PointsBalance: m.PointsBalance,
		TotalSpent:    m.TotalSpent,
		VisitCount:    m.VisitCount,
		FirstVisit:    m.FirstVisit,
		LastVisit:     m.LastVisit,
		Blocked:       m.Blocked,
		CustomReward:  m.CustomReward,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toMerchantClientModel(e *MerchantClientEntity) *model.MerchantClient {
	if e == nil {
		return nil
	}
	return &model.MerchantClient{
		ID:            e.ID,
		MerchantID:    e.MerchantID,
		EndUserID:     e.EndUserID,
		PointsBalance: e.PointsBalance,
		TotalSpent:    e.TotalSpent,
		VisitCount:    e.VisitCount,
		FirstVisit:    e.FirstVisit,
		LastVisit:     e.LastVisit,
		Blocked:       e.Blocked,
		CustomReward:  e.CustomReward,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
