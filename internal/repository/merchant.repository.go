package repository

import (
	"context"
	"errors"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrMerchantNotFound = errors.New("merchant not found")
)

type MerchantRepository struct {
	*pg.DB
}

func NewMerchantRepository(db *pg.DB) *MerchantRepository {
	return &MerchantRepository{
		db,
	}
}

func (r *MerchantRepository) Get(ctx context.Context, id int64) (*model.Merchant, error) {
	var entity MerchantEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return toMerchantModel(&entity), nil
}

func (r *MerchantRepository) Create(ctx context.Context, m *model.Merchant) (*model.Merchant, error) {
	entity := toMerchantEntity(m)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMerchantModel(entity), nil
}
