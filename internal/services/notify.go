package services

import (
	"context"

	"github.com/pointgrid/loyalty-core/internal/queue"
	"github.com/pointgrid/loyalty-core/pkg/logger"
)

const (
	EventCreditApplied   = "credit_applied"
	EventRewardRedeemed  = "reward_redeemed"
	EventVoucherCreated  = "voucher_created"
	EventVoucherClaimed  = "voucher_claimed"
	EventVoucherRefunded = "voucher_refunded"
	EventClientsMerged   = "clients_merged"
)

// Event is a notification published after a successful, non-replayed
// mutation. Delivery (email, push) happens out of process.
type Event struct {
	Kind             string `json:"kind"`
	MerchantID       int64  `json:"merchant_id"`
	MerchantClientID int64  `json:"merchant_client_id,omitempty"`
	EndUserID        int64  `json:"end_user_id,omitempty"`
	PointsDelta      int64  `json:"points_delta,omitempty"`
	Balance          int64  `json:"balance,omitempty"`
	Detail           string `json:"detail,omitempty"`
}

// Dispatcher publishes events fire-and-forget: a dispatch failure is logged
// and swallowed, never surfaced to the ledger operation that triggered it.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event)
}

type queueDispatcher struct {
	q *queue.Queue
}

// NewQueueDispatcher dispatches onto the notification stream consumed by the
// notifier daemon.
func NewQueueDispatcher(q *queue.Queue) Dispatcher {
	return &queueDispatcher{q: q}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, e Event) {
	_, err := d.q.PublishJSON(ctx, e, map[string]string{"kind": e.Kind})
	if err != nil {
		logger.Warn("notification dispatch failed",
			"kind", e.Kind,
			"merchant_id", e.MerchantID,
			"error", err)
	}
}

// NopDispatcher drops every event. Used in tests and in tools that must not
// notify.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event) {}
