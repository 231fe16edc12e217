package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrVoucherNotFound   = errors.New("voucher not found")
	ErrVoucherNotPending = errors.New("voucher is not pending")
)

type VoucherRepository struct {
	*pg.DB
}

func NewVoucherRepository(db *pg.DB) *VoucherRepository {
	return &VoucherRepository{
		db,
	}
}

func (r *VoucherRepository) Create(ctx context.Context, v *model.Voucher) (*model.Voucher, error) {
	entity := toVoucherEntity(v)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toVoucherModel(entity), nil
}

func (r *VoucherRepository) GetByToken(ctx context.Context, token string) (*model.Voucher, error) {
	var entity VoucherEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("token = ?", token).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return toVoucherModel(&entity), nil
}

// GetByTokenForUpdate locks the voucher row for a claim attempt so two
// concurrent claims of the same token serialize.
func (r *VoucherRepository) GetByTokenForUpdate(ctx context.Context, token string) (*model.Voucher, error) {
	var entity VoucherEntity
	err := withRowLock(r.Write(ctx).WithContext(ctx)).
		Where("token = ?", token).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return toVoucherModel(&entity), nil
}

// ListExpiredPending returns pending vouchers past their expiry, oldest
// first, for the sweep.
func (r *VoucherRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Voucher, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*VoucherEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(model.VoucherPending), now).
		Order("expires_at").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	vouchers := make([]*model.Voucher, len(entities))
	for i, e := range entities {
		vouchers[i] = toVoucherModel(e)
	}
	return vouchers, nil
}

// MarkClaimed flips pending → claimed. The status guard in the WHERE clause
// makes the transition run at most once; a lost race surfaces as
// ErrVoucherNotPending.
func (r *VoucherRepository) MarkClaimed(ctx context.Context, id int64, claimedByID int64) error {
	return r.transition(ctx, id, string(model.VoucherClaimed), map[string]any{
		"claimed_by_id": claimedByID,
	})
}

// MarkExpired flips pending → expired, same guard as MarkClaimed. Running
// the sweep twice over one voucher is therefore harmless.
func (r *VoucherRepository) MarkExpired(ctx context.Context, id int64) error {
	return r.transition(ctx, id, string(model.VoucherExpired), nil)
}

// ReassignClient re-points pending vouchers from one merchant client to
// another. Claimed and expired vouchers keep their historical sender.
func (r *VoucherRepository) ReassignClient(ctx context.Context, fromClientID, toClientID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&VoucherEntity{}).
		Where("merchant_client_id = ? AND status = ?", fromClientID, string(model.VoucherPending)).
		Update("merchant_client_id", toClientID)
	return result.RowsAffected, result.Error
}

// CancelPendingByClient expires every pending voucher of a client. Used when
// the client row is hard-deleted and no account remains to refund to.
func (r *VoucherRepository) CancelPendingByClient(ctx context.Context, clientID int64) (int64, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&VoucherEntity{}).
		Where("merchant_client_id = ? AND status = ?", clientID, string(model.VoucherPending)).
		Update("status", string(model.VoucherExpired))
	return result.RowsAffected, result.Error
}

func (r *VoucherRepository) transition(ctx context.Context, id int64, to string, extra map[string]any) error {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&VoucherEntity{}).
		Where("id = ? AND status = ?", id, string(model.VoucherPending)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVoucherNotPending
	}
	return nil
}
