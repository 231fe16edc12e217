package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
)

type LedgerEntryEntity struct {
	ID               int64            `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	MerchantID       int64            `db:"merchant_id"        gorm:"column:merchant_id;not null;index;uniqueIndex:idx_txn_merchant_idem"`
	MerchantClientID int64            `db:"merchant_client_id" gorm:"column:merchant_client_id;not null;index"`
	StaffID          *int64           `db:"staff_id"           gorm:"column:staff_id"`
	Amount           *decimal.Decimal `db:"amount"             gorm:"column:amount;type:decimal(12,2)"`
	PointsDelta      int64            `db:"points_delta"       gorm:"column:points_delta;not null"`
	Type             string           `db:"type"               gorm:"column:type;not null"`
	IdempotencyKey   *string          `db:"idempotency_key"    gorm:"column:idempotency_key;uniqueIndex:idx_txn_merchant_idem"`
	Source           string           `db:"source"             gorm:"column:source;not null;default:''"`
	Notes            string           `db:"notes"              gorm:"column:notes;not null;default:''"`
	CreatedAt        time.Time        `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntryEntity) TableName() string {
	return "transactions"
}

func toLedgerEntryEntity(m *model.LedgerEntry) *LedgerEntryEntity {
	if m == nil {
		return nil
	}
	return &LedgerEntryEntity{
		ID:               m.ID,
		MerchantID:       m.MerchantID,
		MerchantClientID: m.MerchantClientID,
		StaffID:          m.StaffID,
		Amount:           m.Amount,
		PointsDelta:      m.PointsDelta,
		Type:             string(m.Type),
		IdempotencyKey:   m.IdempotencyKey,
		Source:           m.Source,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
	}
}

func toLedgerEntryModel(e *LedgerEntryEntity) *model.LedgerEntry {
	if e == nil {
		return nil
	}
	return &model.LedgerEntry{
		ID:               e.ID,
		MerchantID:       e.MerchantID,
		MerchantClientID: e.MerchantClientID,
		StaffID:          e.StaffID,
		Amount:           e.Amount,
		PointsDelta:      e.PointsDelta,
		Type:             model.EntryType(e.Type),
		IdempotencyKey:   e.IdempotencyKey,
		Source:           e.Source,
		Notes:            e.Notes,
		CreatedAt:        e.CreatedAt,
	}
}

func toLedgerEntryModels(entities []*LedgerEntryEntity) []*model.LedgerEntry {
	if entities == nil {
		return nil
	}
	models := make([]*model.LedgerEntry, len(entities))
	for i, e := range entities {
		models[i] = toLedgerEntryModel(e)
	}
	return models
}
