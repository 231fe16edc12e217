package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
)

type MerchantEntity struct {
	ID                int64           `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Name              string          `db:"name"               gorm:"column:name;not null"`
	Status            string          `db:"status"             gorm:"column:status;not null;default:'pending';index"`
	PointsPerUnit     decimal.Decimal `db:"points_per_unit"    gorm:"column:points_per_unit;type:decimal(8,2);not null;default:1"`
	PointsForReward   int64           `db:"points_for_reward"  gorm:"column:points_for_reward;not null;default:100"`
	RewardDescription string          `db:"reward_description" gorm:"column:reward_description;not null;default:''"`
	CreatedAt         time.Time       `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (MerchantEntity) TableName() string {
	return "merchants"
}

func toMerchantEntity(m *model.Merchant) *MerchantEntity {
	if m == nil {
		return nil
	}
	return &MerchantEntity{
		ID:                m.ID,
		Name:              m.Name,
		Status:            string(m.Status),
		PointsPerUnit:     m.PointsPerUnit,
		PointsForReward:   m.PointsForReward,
		RewardDescription: m.RewardDescription,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toMerchantModel(e *MerchantEntity) *model.Merchant {
	if e == nil {
		return nil
	}
	return &model.Merchant{
		ID:                e.ID,
		Name:              e.Name,
		Status:            model.MerchantStatus(e.Status),
		PointsPerUnit:     e.PointsPerUnit,
		PointsForReward:   e.PointsForReward,
		RewardDescription: e.RewardDescription,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}
