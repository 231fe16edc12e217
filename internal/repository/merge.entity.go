package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
)

type MergeRecordEntity struct {
	ID              int64     `db:"id"                 gorm:"primaryKey;autoIncrement;column:id"`
	SourceEndUserID int64     `db:"source_end_user_id" gorm:"column:source_end_user_id;not null;index"`
	TargetEndUserID int64     `db:"target_end_user_id" gorm:"column:target_end_user_id;not null;index"`
	Actor           string    `db:"actor"              gorm:"column:actor;not null;default:''"`
	Reason          string    `db:"reason"             gorm:"column:reason;not null;default:''"`
	CreatedAt       time.Time `db:"created_at"         gorm:"column:created_at;autoCreateTime"`
}

func (MergeRecordEntity) TableName() string {
	return "end_user_merges"
}

func toMergeRecordEntity(m *model.MergeRecord) *MergeRecordEntity {
	if m == nil {
		return nil
	}
	return &MergeRecordEntity{
		ID:              m.ID,
		SourceEndUserID: m.SourceEndUserID,
		TargetEndUserID: m.TargetEndUserID,
		Actor:           m.Actor,
		Reason:          m.Reason,
		CreatedAt:       m.CreatedAt,
	}
}

func toMergeRecordModel(e *MergeRecordEntity) *model.MergeRecord {
	if e == nil {
		return nil
	}
	return &model.MergeRecord{
		ID:              e.ID,
		SourceEndUserID: e.SourceEndUserID,
		TargetEndUserID: e.TargetEndUserID,
		Actor:           e.Actor,
		Reason:          e.Reason,
		CreatedAt:       e.CreatedAt,
	}
}
