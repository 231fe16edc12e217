package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/logger"
)

type VoucherRepository interface {
	Create(ctx context.Context, v *model.Voucher) (*model.Voucher, error)
	GetByToken(ctx context.Context, token string) (*model.Voucher, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*model.Voucher, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*model.Voucher, error)
	MarkClaimed(ctx context.Context, id int64, claimedByID int64) error
	MarkExpired(ctx context.Context, id int64) error
}

// VoucherService converts a balance into a bearer token and back. The
// gift_out entry is written when the voucher is created, so the sender's
// history shows the outflow immediately; claim writes only the recipient's
// gift_in.
type VoucherService struct {
	vouchers VoucherRepository
	clients  MerchantClientRepository
	ledger   LedgerRepository
	users    EndUserRepository
	tx       TxRunner
	notify   Dispatcher
	ttl      time.Duration
}

func NewVoucherService(vouchers VoucherRepository, clients MerchantClientRepository, ledger LedgerRepository, users EndUserRepository, tx TxRunner, notify Dispatcher, ttl time.Duration) *VoucherService {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &VoucherService{
		vouchers: vouchers,
		clients:  clients,
		ledger:   ledger,
		users:    users,
		tx:       tx,
		notify:   notify,
		ttl:      ttl,
	}
}

// Create zeroes the sender's balance and mints a pending voucher for that
// amount.
func (s *VoucherService) Create(ctx context.Context, merchantID, merchantClientID int64) (*model.Voucher, error) {
	var voucher *model.Voucher
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		client, err := s.clients.GetForUpdate(ctx, merchantID, merchantClientID)
		if err != nil {
			return mapClientErr(err)
		}
		if client.PointsBalance <= 0 {
			return ErrNothingToGift
		}
		points := client.PointsBalance

		voucher, err = s.vouchers.Create(ctx, &model.Voucher{
			Token:            uuid.NewString(),
			MerchantID:       merchantID,
			MerchantClientID: client.ID,
			Points:           points,
			Status:           model.VoucherPending,
			ExpiresAt:        time.Now().Add(s.ttl),
		})
		if err != nil {
			return err
		}

		if _, err := s.ledger.Create(ctx, &model.LedgerEntry{
			MerchantID:       merchantID,
			MerchantClientID: client.ID,
			PointsDelta:      -points,
			Type:             model.EntryGiftOut,
			Notes:            "voucher " + voucher.Token,
		}); err != nil {
			return err
		}

		client.PointsBalance = 0
		_, err = s.clients.Update(ctx, client)
		return mapClientErr(err)
	})
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventVoucherCreated,
		MerchantID:       merchantID,
		MerchantClientID: merchantClientID,
		PointsDelta:      -voucher.Points,
		Detail:           voucher.Token,
	})
	return voucher, nil
}

// Get returns a voucher by its bearer token.
func (s *VoucherService) Get(ctx context.Context, token string) (*model.Voucher, error) {
	v, err := s.vouchers.GetByToken(ctx, token)
	if err != nil {
		return nil, mapVoucherErr(err)
	}
	return v, nil
}

// Claim moves a pending voucher's points onto the recipient, creating the
// merchant link lazily when the recipient never visited this merchant.
// A voucher stays claimable past its nominal expiry until the sweep gets
// to it; only the status decides.
func (s *VoucherService) Claim(ctx context.Context, token string, recipientEndUserID int64) (*model.ClaimResult, error) {
	if _, err := s.users.Get(ctx, recipientEndUserID); err != nil {
		return nil, mapEndUserErr(err)
	}

	var result model.ClaimResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		voucher, err := s.vouchers.GetByTokenForUpdate(ctx, token)
		if err != nil {
			return mapVoucherErr(err)
		}
		switch voucher.Status {
		case model.VoucherClaimed:
			return ErrVoucherAlreadyClaimed
		case model.VoucherExpired:
			return ErrVoucherExpired
		}

		client, _, err := s.ensureLink(ctx, voucher.MerchantID, recipientEndUserID)
		if err != nil {
			return err
		}
		client, err = s.clients.GetForUpdate(ctx, voucher.MerchantID, client.ID)
		if err != nil {
			return mapClientErr(err)
		}

		entry, err := s.ledger.Create(ctx, &model.LedgerEntry{
			MerchantID:       voucher.MerchantID,
			MerchantClientID: client.ID,
			PointsDelta:      voucher.Points,
			Type:             model.EntryGiftIn,
			Notes:            "voucher " + voucher.Token,
		})
		if err != nil {
			return err
		}

		client.PointsBalance += voucher.Points
		client, err = s.clients.Update(ctx, client)
		if err != nil {
			return mapClientErr(err)
		}

		if err := s.vouchers.MarkClaimed(ctx, voucher.ID, recipientEndUserID); err != nil {
			if errors.Is(err, repository.ErrVoucherNotPending) {
				return ErrVoucherAlreadyClaimed
			}
			return err
		}
		voucher.Status = model.VoucherClaimed
		voucher.ClaimedByID = &recipientEndUserID

		result = model.ClaimResult{Voucher: voucher, Client: client, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventVoucherClaimed,
		MerchantID:       result.Voucher.MerchantID,
		MerchantClientID: result.Client.ID,
		EndUserID:        recipientEndUserID,
		PointsDelta:      result.Voucher.Points,
		Balance:          result.Client.PointsBalance,
	})
	return &result, nil
}

func (s *VoucherService) ensureLink(ctx context.Context, merchantID, endUserID int64) (*model.MerchantClient, bool, error) {
	client, err := s.clients.FindByMerchantAndUser(ctx, merchantID, endUserID)
	if err != nil {
		return nil, false, err
	}
	if client != nil {
		return client, false, nil
	}
	now := time.Now()
	client, err = s.clients.Create(ctx, &model.MerchantClient{
		MerchantID: merchantID,
		EndUserID:  endUserID,
		FirstVisit: &now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkExists) {
			client, err = s.clients.FindByMerchantAndUser(ctx, merchantID, endUserID)
			return client, false, err
		}
		return nil, false, err
	}
	return client, true, nil
}

// SweepExpired refunds every pending voucher past its expiry back to its
// sender, one transaction per voucher. The pending → expired status guard
// makes a doubled sweep harmless. Returns the number of vouchers refunded.
func (s *VoucherService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.vouchers.ListExpiredPending(ctx, now, 0)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, v := range expired {
		if err := s.refund(ctx, v); err != nil {
			if errors.Is(err, repository.ErrVoucherNotPending) {
				// claimed or swept by someone else in between
				continue
			}
			logger.Error("voucher refund failed",
				"voucher_id", v.ID,
				"token", v.Token,
				"error", err)
			continue
		}
		refunded++
	}
	return refunded, nil
}

func (s *VoucherService) refund(ctx context.Context, v *model.Voucher) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		client, err := s.clients.GetForUpdate(ctx, v.MerchantID, v.MerchantClientID)
		if err != nil {
			return mapClientErr(err)
		}

		if err := s.vouchers.MarkExpired(ctx, v.ID); err != nil {
			return err
		}

		if _, err := s.ledger.Create(ctx, &model.LedgerEntry{
			MerchantID:       v.MerchantID,
			MerchantClientID: client.ID,
			PointsDelta:      v.Points,
			Type:             model.EntryGiftRefund,
			Notes:            "voucher " + v.Token,
		}); err != nil {
			return err
		}

		client.PointsBalance += v.Points
		_, err = s.clients.Update(ctx, client)
		return mapClientErr(err)
	})
	if err != nil {
		return err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventVoucherRefunded,
		MerchantID:       v.MerchantID,
		MerchantClientID: v.MerchantClientID,
		PointsDelta:      v.Points,
		Detail:           v.Token,
	})
	return nil
}
