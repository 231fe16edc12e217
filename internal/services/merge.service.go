package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/logger"
)

type LedgerReassigner interface {
	LedgerRepository
	ReassignClient(ctx context.Context, fromClientID, toClientID int64) (int64, error)
}

type MergeRepository interface {
	Create(ctx context.Context, m *model.MergeRecord) (*model.MergeRecord, error)
}

// VoucherReassigner moves pending vouchers onto the surviving client so their
// eventual refund has somewhere to land.
type VoucherReassigner interface {
	ReassignClient(ctx context.Context, fromClientID, toClientID int64) (int64, error)
}

// MergeService consolidates two merchant clients (and transitively their end
// users) into one. Points are conserved, the ledger is reassigned rather
// than rewritten, and aliases keep the absorbed identifiers resolving.
type MergeService struct {
	clients  MerchantClientRepository
	ledger   LedgerReassigner
	vouchers VoucherReassigner
	users    EndUserRepository
	aliases  AliasRepository
	merges   MergeRepository
	tx       TxRunner
	notify   Dispatcher
}

func NewMergeService(clients MerchantClientRepository, ledger LedgerReassigner, vouchers VoucherReassigner, users EndUserRepository, aliases AliasRepository, merges MergeRepository, tx TxRunner, notify Dispatcher) *MergeService {
	return &MergeService{
		clients:  clients,
		ledger:   ledger,
		vouchers: vouchers,
		users:    users,
		aliases:  aliases,
		merges:   merges,
		tx:       tx,
		notify:   notify,
	}
}

// Merge absorbs source into target under one merchant. After it returns, the
// target carries both balances and the whole ledger history, the source
// client row is gone, and the source end user's identifiers live on as
// aliases of the target end user.
func (s *MergeService) Merge(ctx context.Context, merchantID, targetClientID, sourceClientID int64, actor, reason string) (*model.MerchantClient, error) {
	if targetClientID == sourceClientID {
		return nil, ErrSelfMerge
	}

	var merged *model.MerchantClient
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		target, err := s.clients.GetForUpdate(ctx, merchantID, targetClientID)
		if err != nil {
			return mapClientErr(err)
		}
		source, err := s.clients.GetForUpdate(ctx, merchantID, sourceClientID)
		if err != nil {
			return mapClientErr(err)
		}

		target.PointsBalance += source.PointsBalance
		target.TotalSpent = target.TotalSpent.Add(source.TotalSpent)
		target.VisitCount += source.VisitCount
		if source.FirstVisit != nil && (target.FirstVisit == nil || source.FirstVisit.Before(*target.FirstVisit)) {
			target.FirstVisit = source.FirstVisit
		}
		if source.LastVisit != nil && (target.LastVisit == nil || source.LastVisit.After(*target.LastVisit)) {
			target.LastVisit = source.LastVisit
		}

		moved, err := s.ledger.ReassignClient(ctx, source.ID, target.ID)
		if err != nil {
			return err
		}

		// pending vouchers must outlive their sender's row, or the expiry
		// sweep has no account to refund to
		if _, err := s.vouchers.ReassignClient(ctx, source.ID, target.ID); err != nil {
			return err
		}

		// zero-delta audit trace on the surviving roll-up
		if _, err := s.ledger.Create(ctx, &model.LedgerEntry{
			MerchantID:       merchantID,
			MerchantClientID: target.ID,
			PointsDelta:      0,
			Type:             model.EntryMerge,
			Notes:            fmt.Sprintf("absorbed client %d: %s", source.ID, reason),
		}); err != nil {
			return err
		}

		if source.EndUserID != target.EndUserID {
			if err := s.retireEndUser(ctx, source.EndUserID, target.EndUserID); err != nil {
				return err
			}
			if _, err := s.merges.Create(ctx, &model.MergeRecord{
				SourceEndUserID: source.EndUserID,
				TargetEndUserID: target.EndUserID,
				Actor:           actor,
				Reason:          reason,
			}); err != nil {
				return err
			}
		}

		merged, err = s.clients.Update(ctx, target)
		if err != nil {
			return mapClientErr(err)
		}

		if err := s.clients.Delete(ctx, source.ID); err != nil {
			return mapClientErr(err)
		}

		logger.Info("merchant clients merged",
			"merchant_id", merchantID,
			"target_client_id", target.ID,
			"source_client_id", source.ID,
			"ledger_entries_moved", moved)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.Dispatch(ctx, Event{
		Kind:             EventClientsMerged,
		MerchantID:       merchantID,
		MerchantClientID: merged.ID,
		EndUserID:        merged.EndUserID,
		Balance:          merged.PointsBalance,
	})
	return merged, nil
}

// retireEndUser records each of the absorbed user's identifiers as an alias
// of the survivor, then soft-deletes the absorbed account. A customer who
// registered with one of those identifiers keeps resolving correctly on
// their next visit, through the alias.
func (s *MergeService) retireEndUser(ctx context.Context, sourceUserID, targetUserID int64) error {
	source, err := s.users.Get(ctx, sourceUserID)
	if err != nil {
		return mapEndUserErr(err)
	}
	if source.Deleted() {
		return nil
	}

	if source.EmailLower != nil {
		if err := s.createAlias(ctx, model.AliasEmail, *source.EmailLower, targetUserID); err != nil {
			return err
		}
	}
	if source.PhoneE164 != nil {
		if err := s.createAlias(ctx, model.AliasPhone, *source.PhoneE164, targetUserID); err != nil {
			return err
		}
	}

	return mapEndUserErr(s.users.SoftDelete(ctx, sourceUserID))
}

func (s *MergeService) createAlias(ctx context.Context, typ model.AliasType, value string, ownerID int64) error {
	_, err := s.aliases.Create(ctx, &model.Alias{
		Type:      typ,
		Value:     value,
		EndUserID: ownerID,
	})
	// an identifier already aliased stays with its existing owner; never
	// overwritten
	if errors.Is(err, repository.ErrAliasExists) {
		logger.Warn("alias already exists, keeping existing redirect",
			"type", typ,
			"value", value)
		return nil
	}
	return err
}
