package repository

import (
	"context"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/pkg/pg"
)

type MergeRepository struct {
	*pg.DB
}

func NewMergeRepository(db *pg.DB) *MergeRepository {
	return &MergeRepository{
		db,
	}
}

// Create appends a merge audit record. Rows are never updated or removed.
func (r *MergeRepository) Create(ctx context.Context, m *model.MergeRecord) (*model.MergeRecord, error) {
	entity := toMergeRecordEntity(m)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMergeRecordModel(entity), nil
}
