package repository

import (
	"context"
	"errors"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrClientNotFound = errors.New("merchant client not found")
	ErrLinkExists     = errors.New("merchant client link already exists")
)

type MerchantClientRepository struct {
	*pg.DB
}

func NewMerchantClientRepository(db *pg.DB) *MerchantClientRepository {
	return &MerchantClientRepository{
		db,
	}
}

func (r *MerchantClientRepository) Get(ctx context.Context, id int64) (*model.MerchantClient, error) {
	var entity MerchantClientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return toMerchantClientModel(&entity), nil
}

// GetForUpdate reads a client row under SELECT ... FOR UPDATE. Every balance
// mutation goes through this inside a transaction, so concurrent operations
// on the same client serialize on the row lock.
func (r *MerchantClientRepository) GetForUpdate(ctx context.Context, merchantID, id int64) (*model.MerchantClient, error) {
	var entity MerchantClientEntity
	err := withRowLock(r.Write(ctx).WithContext(ctx)).
		Where("id = ? AND merchant_id = ?", id, merchantID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return toMerchantClientModel(&entity), nil
}

// FindByMerchantAndUser returns the unique (merchant, end user) link.
// Returns (nil, nil) when the relationship does not exist yet.
func (r *MerchantClientRepository) FindByMerchantAndUser(ctx context.Context, merchantID, endUserID int64) (*model.MerchantClient, error) {
	var entity MerchantClientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("merchant_id = ? AND end_user_id = ?", merchantID, endUserID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toMerchantClientModel(&entity), nil
}

// Create inserts the relationship row. The unique (merchant_id, end_user_id)
// index keeps the link at-most-one even when two requests race past
// FindByMerchantAndUser.
func (r *MerchantClientRepository) Create(ctx context.Context, c *model.MerchantClient) (*model.MerchantClient, error) {
	entity := toMerchantClientEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrLinkExists
		}
		return nil, err
	}

	return toMerchantClientModel(entity), nil
}

// Update persists all counter fields of a client. Callers hold the row lock
// from GetForUpdate, so a plain save is race-free.
func (r *MerchantClientRepository) Update(ctx context.Context, c *model.MerchantClient) (*model.MerchantClient, error) {
	entity := toMerchantClientEntity(c)

	result := r.Write(ctx).WithContext(ctx).Save(entity)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrClientNotFound
	}

	return toMerchantClientModel(entity), nil
}

func (r *MerchantClientRepository) Delete(ctx context.Context, id int64) error {
	result := r.Write(ctx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&MerchantClientEntity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// ListAll walks every client row in id order. Used by the audit tool.
func (r *MerchantClientRepository) ListAll(ctx context.Context, afterID int64, limit int) ([]*model.MerchantClient, error) {
	if limit <= 0 {
		limit = 500
	}
	var entities []*MerchantClientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	clients := make([]*model.MerchantClient, len(entities))
	for i, e := range entities {
		clients[i] = toMerchantClientModel(e)
	}
	return clients, nil
}

// ListByMerchant returns clients of one merchant, newest first.
func (r *MerchantClientRepository) ListByMerchant(ctx context.Context, merchantID int64, limit, offset int) ([]*model.MerchantClient, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int64
	q := r.Read(ctx).WithContext(ctx).
		Model(&MerchantClientEntity{}).
		Where("merchant_id = ?", merchantID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entities []*MerchantClientEntity
	err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error
	if err != nil {
		return nil, 0, err
	}

	clients := make([]*model.MerchantClient, len(entities))
	for i, e := range entities {
		clients[i] = toMerchantClientModel(e)
	}
	return clients, total, nil
}
