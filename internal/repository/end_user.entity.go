package repository

import (
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
)

type EndUserEntity struct {
	ID              int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Email           *string    `db:"email"            gorm:"column:email"`
	EmailLower      *string    `db:"email_lower"      gorm:"column:email_lower;index"`
	EmailCanonical  *string    `db:"email_canonical"  gorm:"column:email_canonical;index"`
	Phone           *string    `db:"phone"            gorm:"column:phone"`
	PhoneE164       *string    `db:"phone_e164"       gorm:"column:phone_e164;index"`
	Name            *string    `db:"name"             gorm:"column:name"`
	PinHash         *string    `db:"pin_hash"         gorm:"column:pin_hash"`
	ValidationToken string     `db:"validation_token" gorm:"column:validation_token;not null"`
	QRToken         string     `db:"qr_token"         gorm:"column:qr_token;not null"`
	EmailValidated  bool       `db:"email_validated"  gorm:"column:email_validated;not null;default:false"`
	ConsentMethod   *string    `db:"consent_method"   gorm:"column:consent_method"`
	Blocked         bool       `db:"blocked"          gorm:"column:blocked;not null;default:false"`
	DeletedAt       *time.Time `db:"deleted_at"       gorm:"column:deleted_at;index"`
	CreatedAt       time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (EndUserEntity) TableName() string {
	return "end_users"
}

func toEndUserEntity(m *model.EndUser) *EndUserEntity {
	if m == nil {
		return nil
	}
	return &EndUserEntity{
		ID:              m.ID,
		Email:           m.Email,
		EmailLower:      m.EmailLower,
		EmailCanonical:  m.EmailCanonical,
		Phone:           m.Phone,
		PhoneE164:       m.PhoneE164,
		Name:            m.Name,
		PinHash:         m.PinHash,
		ValidationToken: m.ValidationToken,
		QRToken:         m.QRToken,
		EmailValidated:  m.EmailValidated,
		ConsentMethod:   m.ConsentMethod,
		Blocked:         m.Blocked,
		DeletedAt:       m.DeletedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toEndUserModel(e *EndUserEntity) *model.EndUser {
	if e == nil {
		return nil
	}
	return &model.EndUser{
		ID:              e.ID,
		Email:           e.Email,
		EmailLower:      e.EmailLower,
		EmailCanonical:  e.EmailCanonical,
		Phone:           e.Phone,
		PhoneE164:       e.PhoneE164,
		Name:            e.Name,
		PinHash:         e.PinHash,
		ValidationToken: e.ValidationToken,
		QRToken:         e.QRToken,
		EmailValidated:  e.EmailValidated,
		ConsentMethod:   e.ConsentMethod,
		Blocked:         e.Blocked,
		DeletedAt:       e.DeletedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
