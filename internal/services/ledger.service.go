package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/prom"
	"golang.org/x/crypto/bcrypt"
)

// errIdempotencyRace marks a transaction aborted because another request won
// the insert for the same idempotency key. The loser re-reads the winning
// entry and returns it, so the caller cannot tell it lost.
var errIdempotencyRace = errors.New("lost idempotency-key race")

type MerchantRepository interface {
	Get(ctx context.Context, id int64) (*model.Merchant, error)
}

type MerchantClientRepository interface {
	Get(ctx context.Context, id int64) (*model.MerchantClient, error)
	GetForUpdate(ctx context.Context, merchantID, id int64) (*model.MerchantClient, error)
	FindByMerchantAndUser(ctx context.Context, merchantID, endUserID int64) (*model.MerchantClient, error)
	Create(ctx context.Context, c *model.MerchantClient) (*model.MerchantClient, error)
	Update(ctx context.Context, c *model.MerchantClient) (*model.MerchantClient, error)
	Delete(ctx context.Context, id int64) error
	ListByMerchant(ctx context.Context, merchantID int64, limit, offset int) ([]*model.MerchantClient, int64, error)
}

type LedgerRepository interface {
	Create(ctx context.Context, e *model.LedgerEntry) (*model.LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, merchantID int64, key string) (*model.LedgerEntry, error)
	DeleteByClient(ctx context.Context, clientID int64) (int64, error)
	ListByClient(ctx context.Context, clientID int64, limit, offset int) ([]*model.LedgerEntry, int64, error)
}

// VoucherCanceler expires a deleted client's pending vouchers so the sweep
// never chases a refund target that no longer exists.
type VoucherCanceler interface {
	CancelPendingByClient(ctx context.Context, clientID int64) (int64, error)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, req model.ResolveRequest) (*model.EndUser, bool, error)
	Get(ctx context.Context, id int64) (*model.EndUser, error)
}

// TxRunner runs fn inside one atomic unit of work; repository calls made
// with the inner context join that transaction.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerService is the only writer of balance-affecting rows. Every
// operation produces exactly one immutable ledger entry and one balance
// mutation, inside one transaction.
type LedgerService struct {
	merchants MerchantRepository
	clients   MerchantClientRepository
	ledger    LedgerRepository
	vouchers  VoucherCanceler
	identity  IdentityResolver
	tx        TxRunner
	notify    Dispatcher
}

func NewLedgerService(merchants MerchantRepository, clients MerchantClientRepository, ledger LedgerRepository, vouchers VoucherCanceler, identity IdentityResolver, tx TxRunner, notify Dispatcher) *LedgerService {
	return &LedgerService{
		merchants: merchants,
		clients:   clients,
		ledger:    ledger,
		vouchers:  vouchers,
		identity:  identity,
		tx:        tx,
		notify:    notify,
	}
}

// Credit books points for a visit. The whole chain (identity resolution,
// link creation, ledger write, balance update) runs in one transaction, so
// a crash cannot leave a balance change without its ledger entry.
func (s *LedgerService) Credit(ctx context.Context, req model.CreditRequest) (*model.CreditResult, error) {
	defer func(start time.Time) {
		prom.AddLedgerOperationDuration(time.Since(start).Seconds(), "credit")
	}(time.Now())

	if err := req.Validate(); err != nil {
		if req.Email == "" && req.Phone == "" {
			return nil, ErrInvalidIdentifier
		}
		if !req.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		return nil, err
	}

	merchant, err := s.merchants.Get(ctx, req.MerchantID)
	if err != nil {
		return nil, mapMerchantErr(err)
	}

	// fast path for retried requests; the unique index below is the
	// correctness guarantee, this only saves a transaction
	if req.IdempotencyKey != "" {
		entry, err := s.ledger.FindByIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return s.creditReplay(ctx, entry)
		}
	}

	points := req.Amount.Mul(merchant.PointsPerUnit).IntPart()
	now := time.Now()

	var result model.CreditResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, isNew, err := s.identity.Resolve(ctx, model.ResolveRequest{
			Email:                 req.Email,
			Phone:                 req.Phone,
			Name:                  req.Name,
			PinHash:               req.PinHash,
			ConsentMerchantCredit: true,
		})
		if err != nil {
			return err
		}
		if user.Blocked {
			return ErrClientBlocked
		}

		client, newClient, err := s.ensureLink(ctx, req.MerchantID, user.ID, now)
		if err != nil {
			return err
		}
		if client.Blocked {
			return ErrClientBlocked
		}
		if !newClient {
			client, err = s.clients.GetForUpdate(ctx, req.MerchantID, client.ID)
			if err != nil {
				return mapClientErr(err)
			}
		}

		amount := req.Amount
		entry := &model.LedgerEntry{
			MerchantID:       req.MerchantID,
			MerchantClientID: client.ID,
			StaffID:          req.StaffID,
			Amount:           &amount,
			PointsDelta:      points,
			Type:             model.EntryCredit,
			Source:           req.Source,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			entry.IdempotencyKey = &key
		}
		entry, err = s.ledger.Create(ctx, entry)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
				return errIdempotencyRace
			}
			return err
		}

		client.PointsBalance += points
		client.TotalSpent = client.TotalSpent.Add(req.Amount)
		client.VisitCount++
		client.LastVisit = &now
		if client.FirstVisit == nil {
			client.FirstVisit = &now
		}
		client, err = s.clients.Update(ctx, client)
		if err != nil {
			return mapClientErr(err)
		}

		result = model.CreditResult{
			EndUser:    user,
			Client:     client,
			Entry:      entry,
			NewEndUser: isNew,
			NewClient:  newClient,
		}
		return nil
	})
	if errors.Is(err, errIdempotencyRace) {
		entry, ferr := s.ledger.FindByIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
		if ferr != nil || entry == nil {
			return nil, fmt.Errorf("resolving idempotency-key race: %w", err)
		}
		return s.creditReplay(ctx, entry)
	}
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventCreditApplied,
		MerchantID:       req.MerchantID,
		MerchantClientID: result.Client.ID,
		EndUserID:        result.EndUser.ID,
		PointsDelta:      points,
		Balance:          result.Client.PointsBalance,
	})
	return &result, nil
}

// creditReplay rebuilds the result of the request that originally consumed
// the idempotency key. Replays carry no side effects.
func (s *LedgerService) creditReplay(ctx context.Context, entry *model.LedgerEntry) (*model.CreditResult, error) {
	client, err := s.clients.Get(ctx, entry.MerchantClientID)
	if err != nil {
		return nil, mapClientErr(err)
	}
	user, err := s.identity.Get(ctx, client.EndUserID)
	if err != nil {
		return nil, err
	}
	return &model.CreditResult{
		EndUser:    user,
		Client:     client,
		Entry:      entry,
		Idempotent: true,
	}, nil
}

// Redeem converts points_for_reward points into a reward. Verification is
// either a PIN matching the end user's stored hash or an asserted verified
// presence (QR scan). The balance is re-read under lock inside the
// transaction; whatever a pre-check saw does not count.
func (s *LedgerService) Redeem(ctx context.Context, req model.RedeemRequest) (*model.RedeemResult, error) {
	defer func(start time.Time) {
		prom.AddLedgerOperationDuration(time.Since(start).Seconds(), "redeem")
	}(time.Now())

	merchant, err := s.merchants.Get(ctx, req.MerchantID)
	if err != nil {
		return nil, mapMerchantErr(err)
	}

	if req.IdempotencyKey != "" {
		entry, err := s.ledger.FindByIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return s.redeemReplay(ctx, merchant, entry)
		}
	}

	var result model.RedeemResult
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		client, err := s.clients.GetForUpdate(ctx, req.MerchantID, req.MerchantClientID)
		if err != nil {
			return mapClientErr(err)
		}
		if client.Blocked {
			return ErrClientBlocked
		}
		user, err := s.identity.Get(ctx, client.EndUserID)
		if err != nil {
			return err
		}
		if user.Blocked {
			return ErrClientBlocked
		}

		if err := verifyRedeem(user, req); err != nil {
			return err
		}

		if client.PointsBalance < merchant.PointsForReward {
			return ErrInsufficientBalance
		}

		entry := &model.LedgerEntry{
			MerchantID:       req.MerchantID,
			MerchantClientID: client.ID,
			StaffID:          req.StaffID,
			PointsDelta:      -merchant.PointsForReward,
			Type:             model.EntryReward,
			Notes:            client.RewardLabel(merchant),
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			entry.IdempotencyKey = &key
		}
		entry, err = s.ledger.Create(ctx, entry)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
				return errIdempotencyRace
			}
			return err
		}

		client.PointsBalance -= merchant.PointsForReward
		client, err = s.clients.Update(ctx, client)
		if err != nil {
			return mapClientErr(err)
		}

		result = model.RedeemResult{
			Client:      client,
			Entry:       entry,
			RewardLabel: entry.Notes,
		}
		return nil
	})
	if errors.Is(err, errIdempotencyRace) {
		entry, ferr := s.ledger.FindByIdempotencyKey(ctx, req.MerchantID, req.IdempotencyKey)
		if ferr != nil || entry == nil {
			return nil, fmt.Errorf("resolving idempotency-key race: %w", err)
		}
		return s.redeemReplay(ctx, merchant, entry)
	}
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventRewardRedeemed,
		MerchantID:       req.MerchantID,
		MerchantClientID: result.Client.ID,
		EndUserID:        result.Client.EndUserID,
		PointsDelta:      -merchant.PointsForReward,
		Balance:          result.Client.PointsBalance,
		Detail:           result.RewardLabel,
	})
	return &result, nil
}

func (s *LedgerService) redeemReplay(ctx context.Context, merchant *model.Merchant, entry *model.LedgerEntry) (*model.RedeemResult, error) {
	client, err := s.clients.Get(ctx, entry.MerchantClientID)
	if err != nil {
		return nil, mapClientErr(err)
	}
	return &model.RedeemResult{
		Client:      client,
		Entry:       entry,
		RewardLabel: entry.Notes,
		Idempotent:  true,
	}, nil
}

func verifyRedeem(user *model.EndUser, req model.RedeemRequest) error {
	// a scan of the per-user QR token is proof of physical presence and
	// consent; no PIN needed
	if req.VerifiedPresence {
		return nil
	}
	if user.PinHash == nil || req.Pin == "" {
		return ErrPinRequired
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PinHash), []byte(req.Pin)) != nil {
		return ErrPinIncorrect
	}
	return nil
}

// Adjust applies a deliberate manual balance correction. No idempotency
// key: an adjustment is a one-shot staff action.
func (s *LedgerService) Adjust(ctx context.Context, req model.AdjustRequest) (*model.AdjustResult, error) {
	defer func(start time.Time) {
		prom.AddLedgerOperationDuration(time.Since(start).Seconds(), "adjust")
	}(time.Now())

	if req.PointsDelta == 0 {
		return nil, ErrZeroAdjustment
	}
	if req.Reason == "" {
		return nil, ErrReasonRequired
	}
	if _, err := s.merchants.Get(ctx, req.MerchantID); err != nil {
		return nil, mapMerchantErr(err)
	}

	var result model.AdjustResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		client, err := s.clients.GetForUpdate(ctx, req.MerchantID, req.MerchantClientID)
		if err != nil {
			return mapClientErr(err)
		}
		if client.PointsBalance+req.PointsDelta < 0 {
			return ErrNegativeBalance
		}

		staffID := req.StaffID
		entry, err := s.ledger.Create(ctx, &model.LedgerEntry{
			MerchantID:       req.MerchantID,
			MerchantClientID: client.ID,
			StaffID:          &staffID,
			PointsDelta:      req.PointsDelta,
			Type:             model.EntryAdjustment,
			Notes:            req.Reason,
		})
		if err != nil {
			return err
		}

		client.PointsBalance += req.PointsDelta
		client, err = s.clients.Update(ctx, client)
		if err != nil {
			return mapClientErr(err)
		}

		result = model.AdjustResult{Client: client, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// EnsureLink guarantees the (merchant, end user) relationship row exists.
func (s *LedgerService) EnsureLink(ctx context.Context, merchantID, endUserID int64) (*model.MerchantClient, bool, error) {
	if _, err := s.merchants.Get(ctx, merchantID); err != nil {
		return nil, false, mapMerchantErr(err)
	}
	if _, err := s.identity.Get(ctx, endUserID); err != nil {
		return nil, false, err
	}
	client, isNew, err := s.ensureLink(ctx, merchantID, endUserID, time.Now())
	return client, isNew, err
}

func (s *LedgerService) ensureLink(ctx context.Context, merchantID, endUserID int64, now time.Time) (*model.MerchantClient, bool, error) {
	client, err := s.clients.FindByMerchantAndUser(ctx, merchantID, endUserID)
	if err != nil {
		return nil, false, err
	}
	if client != nil {
		return client, false, nil
	}

	client, err = s.clients.Create(ctx, &model.MerchantClient{
		MerchantID: merchantID,
		EndUserID:  endUserID,
		FirstVisit: &now,
	})
	if err != nil {
		// lost a link-creation race; the unique index kept the row unique
		if errors.Is(err, repository.ErrLinkExists) {
			client, err = s.clients.FindByMerchantAndUser(ctx, merchantID, endUserID)
			if err != nil {
				return nil, false, err
			}
			return client, false, nil
		}
		return nil, false, err
	}
	return client, true, nil
}

// DeleteClient is the one sanctioned hard delete: it removes a merchant
// client together with its ledger entries, in one transaction.
func (s *LedgerService) DeleteClient(ctx context.Context, merchantID, clientID int64) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		client, err := s.clients.GetForUpdate(ctx, merchantID, clientID)
		if err != nil {
			return mapClientErr(err)
		}
		removed, err := s.ledger.DeleteByClient(ctx, client.ID)
		if err != nil {
			return err
		}
		// outstanding gifts die with the account that would receive the refund
		cancelled, err := s.vouchers.CancelPendingByClient(ctx, client.ID)
		if err != nil {
			return err
		}
		if err := s.clients.Delete(ctx, client.ID); err != nil {
			return mapClientErr(err)
		}
		logger.Info("merchant client deleted",
			"merchant_id", merchantID,
			"merchant_client_id", clientID,
			"ledger_entries_removed", removed,
			"vouchers_cancelled", cancelled)
		return nil
	})
}

// GetClient returns one merchant client, scoped to its merchant.
func (s *LedgerService) GetClient(ctx context.Context, merchantID, clientID int64) (*model.MerchantClient, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, mapClientErr(err)
	}
	if client.MerchantID != merchantID {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// ListClients pages through a merchant's client roster.
func (s *LedgerService) ListClients(ctx context.Context, merchantID int64, limit, offset int) ([]*model.MerchantClient, int64, error) {
	if _, err := s.merchants.Get(ctx, merchantID); err != nil {
		return nil, 0, mapMerchantErr(err)
	}
	return s.clients.ListByMerchant(ctx, merchantID, limit, offset)
}

// History lists a client's ledger entries.
func (s *LedgerService) History(ctx context.Context, merchantID, clientID int64, limit, offset int) ([]*model.LedgerEntry, int64, error) {
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, 0, mapClientErr(err)
	}
	if client.MerchantID != merchantID {
		return nil, 0, ErrClientNotFound
	}
	return s.ledger.ListByClient(ctx, clientID, limit, offset)
}
