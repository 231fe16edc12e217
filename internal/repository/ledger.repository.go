package repository

import (
	"context"
	"errors"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

type LedgerRepository struct {
	*pg.DB
}

func NewLedgerRepository(db *pg.DB) *LedgerRepository {
	return &LedgerRepository{
		db,
	}
}

// Create appends one ledger entry. A second insert carrying the same
// (merchant_id, idempotency_key) hits the unique index and comes back as
// ErrDuplicateIdempotencyKey; that is the backstop closing the
// pre-check-then-insert race, and the caller resolves it by fetching the
// winning entry.
func (r *LedgerRepository) Create(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error) {
	entity := toLedgerEntryEntity(e)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, err
	}

	return toLedgerEntryModel(entity), nil
}

// FindByIdempotencyKey returns the entry a previous identical request
// produced, or (nil, nil) when the key is unseen for this merchant.
func (r *LedgerRepository) FindByIdempotencyKey(ctx context.Context, merchantID int64, key string) (*model.LedgerEntry, error) {
	var entity LedgerEntryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("merchant_id = ? AND idempotency_key = ?", merchantID, key).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toLedgerEntryModel(&entity), nil
}

// ReassignClient re-points every entry of one client to another. Entries are
// moved, never copied or deleted: the full history survives the merge under
// the surviving roll-up.
func (r *LedgerRepository) ReassignClient(ctx context.Context, fromClientID, toClientID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Where("merchant_client_id = ?", fromClientID).
		Update("merchant_client_id", toClientID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumPointsByClient re-derives a balance from the ledger. The result must
// equal merchant_clients.points_balance for every client; the audit command
// reports any drift.
func (r *LedgerRepository) SumPointsByClient(ctx context.Context, clientID int64) (int64, error) {
	var sum *int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Select("SUM(points_delta)").
		Where("merchant_client_id = ?", clientID).
		Scan(&sum).
		Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// DeleteByClient removes a client's ledger rows. Only the explicit
// client-deletion flow calls this; everything else treats entries as
// immutable.
func (r *LedgerRepository) DeleteByClient(ctx context.Context, clientID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Where("merchant_client_id = ?", clientID).
		Delete(&LedgerEntryEntity{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ListByClient returns a client's entries, newest first.
func (r *LedgerRepository) ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*model.LedgerEntry, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int64
	q := r.Read(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Where("merchant_client_id = ?", clientID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entities []*LedgerEntryEntity
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}
	return toLedgerEntryModels(entities), total, nil
}
