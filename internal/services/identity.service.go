package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/normalize"
)

const consentMerchantCredit = "merchant_credit"

type EndUserRepository interface {
	Get(ctx context.Context, id int64) (*model.EndUser, error)
	FindByEmailLower(ctx context.Context, email string) (*model.EndUser, error)
	FindByCanonicalEmail(ctx context.Context, email string) (*model.EndUser, error)
	FindByPhone(ctx context.Context, phone string) (*model.EndUser, error)
	Create(ctx context.Context, u *model.EndUser) (*model.EndUser, error)
	Update(ctx context.Context, u *model.EndUser) (*model.EndUser, error)
	SoftDelete(ctx context.Context, id int64) error
}

type AliasRepository interface {
	FindOwner(ctx context.Context, typ model.AliasType, value string) (*model.Alias, error)
	Create(ctx context.Context, a *model.Alias) (*model.Alias, error)
}

// IdentityService maps raw contact identifiers onto durable end user
// identities. It is the only creator of end users; aliases are created by
// the merge engine alone.
type IdentityService struct {
	users       EndUserRepository
	aliases     AliasRepository
	countryCode string
}

func NewIdentityService(users EndUserRepository, aliases AliasRepository, countryCode string) *IdentityService {
	return &IdentityService{
		users:       users,
		aliases:     aliases,
		countryCode: countryCode,
	}
}

// Resolve returns the end user behind the supplied identifiers, creating one
// when nothing matches. Lookup order, first match wins: direct email, direct
// phone, canonical (plus-tag-stripped) email, alias email, alias phone.
func (s *IdentityService) Resolve(ctx context.Context, req model.ResolveRequest) (*model.EndUser, bool, error) {
	emailLower := normalize.Email(req.Email)
	phone := normalize.Phone(req.Phone, s.countryCode)
	if emailLower == "" && phone == "" {
		return nil, false, ErrInvalidIdentifier
	}

	if emailLower != "" {
		u, err := s.users.FindByEmailLower(ctx, emailLower)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}
	if phone != "" {
		u, err := s.users.FindByPhone(ctx, phone)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}

	// user+tag@domain and user@domain are the same person at the provider
	// level; skip when the canonical form adds nothing
	if canonical := normalize.CanonicalEmail(req.Email); canonical != "" && canonical != emailLower {
		u, err := s.users.FindByCanonicalEmail(ctx, canonical)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}

	if emailLower != "" {
		u, err := s.resolveAlias(ctx, model.AliasEmail, emailLower)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}
	if phone != "" {
		u, err := s.resolveAlias(ctx, model.AliasPhone, phone)
		if err != nil {
			return nil, false, err
		}
		if u != nil {
			return u, false, nil
		}
	}

	u, err := s.create(ctx, req, emailLower, phone)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *IdentityService) resolveAlias(ctx context.Context, typ model.AliasType, value string) (*model.EndUser, error) {
	alias, err := s.aliases.FindOwner(ctx, typ, value)
	if err != nil || alias == nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, alias.EndUserID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *IdentityService) create(ctx context.Context, req model.ResolveRequest, emailLower, phone string) (*model.EndUser, error) {
	u := &model.EndUser{
		ValidationToken: uuid.NewString(),
		QRToken:         uuid.NewString(),
	}
	if emailLower != "" {
		raw := req.Email
		canonical := normalize.CanonicalEmail(req.Email)
		u.Email = &raw
		u.EmailLower = &emailLower
		u.EmailCanonical = &canonical
	}
	if phone != "" {
		raw := req.Phone
		u.Phone = &raw
		u.PhoneE164 = &phone
	}
	if req.Name != "" {
		name := req.Name
		u.Name = &name
	}
	if req.PinHash != "" {
		hash := req.PinHash
		u.PinHash = &hash
	}
	// a customer physically present at the counter implicitly consents;
	// self-service signups still have to confirm their address
	if req.ConsentMerchantCredit && emailLower != "" {
		method := consentMerchantCredit
		u.EmailValidated = true
		u.ConsentMethod = &method
	}
	return s.users.Create(ctx, u)
}

// Get returns an end user by id.
func (s *IdentityService) Get(ctx context.Context, id int64) (*model.EndUser, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, mapEndUserErr(err)
	}
	return u, nil
}

// Delete soft-deletes an account: the row survives for the ledger, the
// identifiers do not.
func (s *IdentityService) Delete(ctx context.Context, id int64) error {
	return mapEndUserErr(s.users.SoftDelete(ctx, id))
}
