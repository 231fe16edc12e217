package model

import (
	"errors"
	"time"
)

// EndUser is a global customer identity, independent of any merchant.
// A non-deleted end user always carries at least one of EmailLower/PhoneE164.
type EndUser struct {
	ID              int64      `json:"id"`
	Email           *string    `json:"email,omitempty"`
	EmailLower      *string    `json:"-"`
	EmailCanonical  *string    `json:"-"`
	Phone           *string    `json:"phone,omitempty"`
	PhoneE164       *string    `json:"-"`
	Name            *string    `json:"name,omitempty"`
	PinHash         *string    `json:"-"`
	ValidationToken string     `json:"-"`
	QRToken         string     `json:"-"`
	EmailValidated  bool       `json:"email_validated"`
	ConsentMethod   *string    `json:"-"`
	Blocked         bool       `json:"blocked"`
	DeletedAt       *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Deleted reports whether the account went through soft deletion. Deleted
// users keep their row (ledger entries reference it) but carry no identifiers.
func (u *EndUser) Deleted() bool { return u.DeletedAt != nil }

// AliasType distinguishes retired identifier kinds.
type AliasType string

const (
	AliasEmail AliasType = "email"
	AliasPhone AliasType = "phone"
)

// Alias redirects a retired identifier to the surviving end user after a
// merge. (Type, Value) is globally unique.
type Alias struct {
	ID        int64     `json:"id"`
	Type      AliasType `json:"type"`
	Value     string    `json:"value"`
	EndUserID int64     `json:"end_user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolveRequest is the input for identity resolution.
type ResolveRequest struct {
	Email   string
	Phone   string
	Name    string
	PinHash string
	// ConsentMerchantCredit marks resolution happening during an in-person
	// credit: a physically present customer implicitly consents, so a newly
	// created identity is auto-validated. Self-service callers leave it unset.
	ConsentMerchantCredit bool
}

func (r ResolveRequest) Validate() error {
	if r.Email == "" && r.Phone == "" {
		return errors.New("email or phone is required")
	}
	return nil
}
