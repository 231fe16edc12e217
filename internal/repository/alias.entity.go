package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
)

type AliasEntity struct {
	ID        int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Type      string    `db:"type"        gorm:"column:type;not null;uniqueIndex:idx_alias_type_value"`
	Value     string    `db:"value"       gorm:"column:value;not null;uniqueIndex:idx_alias_type_value"`
	EndUserID int64     `db:"end_user_id" gorm:"column:end_user_id;not null;index"`
	CreatedAt time.Time `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (AliasEntity) TableName() string {
	return "end_user_aliases"
}

func toAliasEntity(m *model.Alias) *AliasEntity {
	if m == nil {
		return nil
	}
	return &AliasEntity{
		ID:        m.ID,
		Type:      string(m.Type),
		Value:     m.Value,
		EndUserID: m.EndUserID,
		CreatedAt: m.CreatedAt,
	}
}

func toAliasModel(e *AliasEntity) *model.Alias {
	if e == nil {
		return nil
	}
	return &model.Alias{
		ID:        e.ID,
		Type:      model.AliasType(e.Type),
		Value:     e.Value,
		EndUserID: e.EndUserID,
		CreatedAt: e.CreatedAt,
	}
}
