package services

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/queue"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDispatcher) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]string, len(d.events))
	for i, e := range d.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestDispatcher_EventsEmittedAfterCommit(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	rec := &recordingDispatcher{}
	merchants := repository.NewMerchantRepository(env.db)
	ledger := NewLedgerService(merchants, env.clients, env.ledgerR, env.vouchers, env.identity, env.db, rec)

	credited, err := ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "events@example.com",
		Amount:     decimal.NewFromInt(60),
	})
	require.NoError(t, err)

	_, err = ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: credited.Client.ID,
		VerifiedPresence: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{EventCreditApplied, EventRewardRedeemed}, rec.kinds())
	assert.Equal(t, int64(120), rec.events[0].PointsDelta)
	assert.Equal(t, int64(-100), rec.events[1].PointsDelta)

	// a failed operation emits nothing
	_, err = ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: credited.Client.ID,
		VerifiedPresence: true,
	})
	require.Error(t, err)
	assert.Len(t, rec.kinds(), 2)
}

func TestDispatcher_ReplayEmitsNothing(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	rec := &recordingDispatcher{}
	merchants := repository.NewMerchantRepository(env.db)
	ledger := NewLedgerService(merchants, env.clients, env.ledgerR, env.vouchers, env.identity, env.db, rec)

	req := model.CreditRequest{
		MerchantID:     merchant.ID,
		Email:          "replay@example.com",
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "once",
	}
	_, err := ledger.Credit(ctx, req)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, req)
	require.NoError(t, err)

	assert.Len(t, rec.kinds(), 1)
}

func TestQueueDispatcher_FailureNeverSurfaces(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	q, err := queue.NewQueue(adapter, queue.QueueConfig{Name: "test:notify"})
	require.NoError(t, err)

	dispatcher := NewQueueDispatcher(q)
	dispatcher.Dispatch(context.Background(), Event{Kind: EventCreditApplied, MerchantID: 1})

	// the stream is down, the caller must not notice
	mr.Close()
	dispatcher.Dispatch(context.Background(), Event{Kind: EventRewardRedeemed, MerchantID: 1})
}
