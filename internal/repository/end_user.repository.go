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
	ErrEndUserNotFound = errors.New("end user not found")
)

type EndUserRepository struct {
	*pg.DB
}

func NewEndUserRepository(db *pg.DB) *EndUserRepository {
	return &EndUserRepository{
		db,
	}
}

// Get returns an end user by id, soft-deleted ones included: ledger views
// still need to render absorbed or deleted identities.
func (r *EndUserRepository) Get(ctx context.Context, id int64) (*model.EndUser, error) {
	var entity EndUserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEndUserNotFound
		}
		return nil, err
	}
	return toEndUserModel(&entity), nil
}

// FindByEmailLower looks up a non-deleted end user by normalized email.
// Returns (nil, nil) when no row matches.
func (r *EndUserRepository) FindByEmailLower(ctx context.Context, email string) (*model.EndUser, error) {
	return r.findOne(ctx, "email_lower = ?", email)
}

// FindByCanonicalEmail looks up a non-deleted end user by plus-tag-stripped
// email. Returns (nil, nil) when no row matches.
func (r *EndUserRepository) FindByCanonicalEmail(ctx context.Context, email string) (*model.EndUser, error) {
	return r.findOne(ctx, "email_canonical = ?", email)
}

// FindByPhone looks up a non-deleted end user by E.164 phone.
// Returns (nil, nil) when no row matches.
func (r *EndUserRepository) FindByPhone(ctx context.Context, phone string) (*model.EndUser, error) {
	return r.findOne(ctx, "phone_e164 = ?", phone)
}

func (r *EndUserRepository) findOne(ctx context.Context, cond string, arg any) (*model.EndUser, error) {
	var entity EndUserEntity
	err := r.Read(ctx).WithContext(ctx).
		Where(cond, arg).
		Where("deleted_at IS NULL").
		Order("id").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toEndUserModel(&entity), nil
}

func (r *EndUserRepository) Create(ctx context.Context, u *model.EndUser) (*model.EndUser, error) {
	entity := toEndUserEntity(u)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toEndUserModel(entity), nil
}

func (r *EndUserRepository) Update(ctx context.Context, u *model.EndUser) (*model.EndUser, error) {
	entity := toEndUserEntity(u)

	result := r.Write(ctx).WithContext(ctx).Save(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrEndUserNotFound
	}

	return toEndUserModel(entity), nil
}

// SoftDelete retires an account: identifiers are nulled so the row carries
// no PII, and deleted_at marks the state. The row itself stays, referenced
// by ledger entries.
func (r *EndUserRepository) SoftDelete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&EndUserEntity{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			"email":           nil,
			"email_lower":     nil,
			"email_canonical": nil,
			"phone":           nil,
			"phone_e164":      nil,
			"name":            nil,
			"pin_hash":        nil,
			"deleted_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEndUserNotFound
	}
	return nil
}
