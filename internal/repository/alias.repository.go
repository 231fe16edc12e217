package repository

import (
	"context"
	"errors"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrAliasExists = errors.New("alias already exists")
)

type AliasRepository struct {
	*pg.DB
}

func NewAliasRepository(db *pg.DB) *AliasRepository {
	return &AliasRepository{
		db,
	}
}

// FindOwner resolves an alias (type, value) to its redirect record.
// Returns (nil, nil) when no alias matches.
func (r *AliasRepository) FindOwner(ctx context.Context, typ model.AliasType, value string) (*model.Alias, error) {
	var entity AliasEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("type = ? AND value = ?", string(typ), value).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAliasModel(&entity), nil
}

// Create inserts an alias. (type, value) is globally unique: a second insert
// for the same identifier fails with ErrAliasExists regardless of owner, so
// an alias can never be silently re-pointed.
func (r *AliasRepository) Create(ctx context.Context, a *model.Alias) (*model.Alias, error) {
	entity := toAliasEntity(a)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAliasExists
		}
		return nil, err
	}

	return toAliasModel(entity), nil
}
