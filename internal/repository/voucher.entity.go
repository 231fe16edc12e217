package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
)

type VoucherEntity struct {
	ID               int64     `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	Token            string    `db:"token"              gorm:"column:token;not null;uniqueIndex"`
	MerchantID       int64     `db:"merchant_id"        gorm:"column:merchant_id;not null;index"`
	MerchantClientID int64     `db:"merchant_client_id" gorm:"column:merchant_client_id;not null;index"`
	Points           int64     `db:"points"             gorm:"column:points;not null"`
	Status           string    `db:"status"             gorm:"column:status;not null;default:'pending';index"`
	ClaimedByID      *int64    `db:"claimed_by_id"      gorm:"column:claimed_by_id"`
	ExpiresAt        time.Time `db:"expires_at"         gorm:"column:expires_at;not null;index"`
	CreatedAt        time.Time `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `db:"updated_at"         gorm:"column:updated_at;autoUpdateTime"`
}

func (VoucherEntity) TableName() string {
	return "point_vouchers"
}

func toVoucherEntity(m *model.Voucher) *VoucherEntity {
	if m == nil {
		return nil
	}
	return &VoucherEntity{
		ID:               m.ID,
		Token:            m.Token,
		MerchantID:       m.MerchantID,
		MerchantClientID: m.MerchantClientID,
		Points:           m.Points,
		Status:           string(m.Status),
		ClaimedByID:      m.ClaimedByID,
		ExpiresAt:        m.ExpiresAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toVoucherModel(e *VoucherEntity) *model.Voucher {
	if e == nil {
		return nil
	}
	return &model.Voucher{
		ID:               e.ID,
		Token:            e.Token,
		MerchantID:       e.MerchantID,
		MerchantClientID: e.MerchantClientID,
		Points:           e.Points,
		Status:           model.VoucherStatus(e.Status),
		ClaimedByID:      e.ClaimedByID,
		ExpiresAt:        e.ExpiresAt,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
