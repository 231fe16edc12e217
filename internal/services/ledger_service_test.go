package services

import (
	"context"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLedgerService_CreditRedeemLifecycle(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	// first visit: 30 spent at 2 points per unit
	first, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "jane@example.com",
		Amount:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	assert.True(t, first.NewEndUser)
	assert.True(t, first.NewClient)
	assert.Equal(t, int64(60), first.Entry.PointsDelta)
	assert.Equal(t, int64(60), first.Client.PointsBalance)
	assert.Equal(t, int64(1), first.Client.VisitCount)
	require.NotNil(t, first.Client.FirstVisit)

	// second visit lands on the same account
	second, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "jane@example.com",
		Amount:     decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.False(t, second.NewEndUser)
	assert.False(t, second.NewClient)
	assert.Equal(t, first.EndUser.ID, second.EndUser.ID)
	assert.Equal(t, int64(110), second.Client.PointsBalance)
	assert.True(t, second.Client.TotalSpent.Equal(decimal.NewFromInt(55)))

	// 100 points buy the reward, 10 remain
	redeemed, err := env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: second.Client.ID,
		VerifiedPresence: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), redeemed.Client.PointsBalance)
	assert.Equal(t, int64(-100), redeemed.Entry.PointsDelta)
	assert.Equal(t, model.EntryReward, redeemed.Entry.Type)
	assert.Equal(t, "free coffee", redeemed.RewardLabel)

	// the materialized balance matches the ledger sum
	sum, err := env.ledgerR.SumPointsByClient(ctx, second.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum)
}

func TestLedgerService_CreditFloorsFractionalPoints(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)

	result, err := env.ledger.Credit(context.Background(), model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "floor@example.com",
		Amount:     decimal.RequireFromString("10.99"),
	})
	require.NoError(t, err)
	// 10.99 * 2 = 21.98, fractional points are never granted
	assert.Equal(t, int64(21), result.Entry.PointsDelta)
}

func TestLedgerService_CreditValidation(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	_, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Amount:     decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "x@example.com",
		Amount:     decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: 9999,
		Email:      "x@example.com",
		Amount:     decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ErrMerchantNotFound)
}

func TestLedgerService_CreditIdempotentReplay(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	req := model.CreditRequest{
		MerchantID:     merchant.ID,
		Email:          "retry@example.com",
		Amount:         decimal.NewFromInt(30),
		IdempotencyKey: "visit-1",
	}

	first, err := env.ledger.Credit(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	replay, err := env.ledger.Credit(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, first.Entry.ID, replay.Entry.ID)
	// the balance moved exactly once
	assert.Equal(t, int64(60), replay.Client.PointsBalance)
	assert.Equal(t, int64(1), replay.Client.VisitCount)
}

func TestLedgerService_RedeemVerification(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, err)

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "pin@example.com",
		PinHash:    string(hash),
		Amount:     decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	clientID := credited.Client.ID

	_, err = env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
	})
	assert.ErrorIs(t, err, ErrPinRequired)

	_, err = env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		Pin:              "9999",
	})
	assert.ErrorIs(t, err, ErrPinIncorrect)

	result, err := env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		Pin:              "4321",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), result.Client.PointsBalance)
}

func TestLedgerService_RedeemAtExactThreshold(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	// 50 spent at 2 points per unit lands exactly on the reward threshold
	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "edge@example.com",
		Amount:     decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), credited.Client.PointsBalance)

	result, err := env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: credited.Client.ID,
		VerifiedPresence: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Client.PointsBalance)
	assert.Equal(t, int64(-100), result.Entry.PointsDelta)
}

func TestLedgerService_RedeemIdempotentReplay(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "retry-redeem@example.com",
		Amount:     decimal.NewFromInt(60),
	})
	require.NoError(t, err)

	req := model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: credited.Client.ID,
		VerifiedPresence: true,
		IdempotencyKey:   "reward-1",
	}
	first, err := env.ledger.Redeem(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Idempotent)
	assert.Equal(t, int64(20), first.Client.PointsBalance)

	replay, err := env.ledger.Redeem(ctx, req)
	require.NoError(t, err)
	assert.True(t, replay.Idempotent)
	assert.Equal(t, first.Entry.ID, replay.Entry.ID)
	// the points left exactly once
	assert.Equal(t, int64(20), replay.Client.PointsBalance)

	_, total, err := env.ledger.History(ctx, merchant.ID, credited.Client.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestLedgerService_RedeemInsufficientBalance(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "small@example.com",
		Amount:     decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	_, err = env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: credited.Client.ID,
		VerifiedPresence: true,
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// the failed attempt left no trace in the ledger
	_, total, err := env.ledger.History(ctx, merchant.ID, credited.Client.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestLedgerService_BlockedClientRejected(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "blocked@example.com",
		Amount:     decimal.NewFromInt(60),
	})
	require.NoError(t, err)

	client := credited.Client
	client.Blocked = true
	_, err = env.clients.Update(ctx, client)
	require.NoError(t, err)

	_, err = env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "blocked@example.com",
		Amount:     decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrClientBlocked)

	_, err = env.ledger.Redeem(ctx, model.RedeemRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: client.ID,
		VerifiedPresence: true,
	})
	assert.ErrorIs(t, err, ErrClientBlocked)
}

func TestLedgerService_Adjust(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "adjust@example.com",
		Amount:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	clientID := credited.Client.ID

	_, err = env.ledger.Adjust(ctx, model.AdjustRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		PointsDelta:      0,
		StaffID:          7,
		Reason:           "noop",
	})
	assert.ErrorIs(t, err, ErrZeroAdjustment)

	_, err = env.ledger.Adjust(ctx, model.AdjustRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		PointsDelta:      -10,
		StaffID:          7,
	})
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = env.ledger.Adjust(ctx, model.AdjustRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		PointsDelta:      -100,
		StaffID:          7,
		Reason:           "too deep",
	})
	assert.ErrorIs(t, err, ErrNegativeBalance)

	result, err := env.ledger.Adjust(ctx, model.AdjustRequest{
		MerchantID:       merchant.ID,
		MerchantClientID: clientID,
		PointsDelta:      -20,
		StaffID:          7,
		Reason:           "mistyped amount",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.Client.PointsBalance)
	assert.Equal(t, model.EntryAdjustment, result.Entry.Type)
	assert.Equal(t, "mistyped amount", result.Entry.Notes)
}

func TestLedgerService_DeleteClient(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "delete-me@example.com",
		Amount:     decimal.NewFromInt(30),
	})
	require.NoError(t, err)
	clientID := credited.Client.ID

	require.NoError(t, env.ledger.DeleteClient(ctx, merchant.ID, clientID))

	_, err = env.ledger.GetClient(ctx, merchant.ID, clientID)
	assert.ErrorIs(t, err, ErrClientNotFound)

	sum, err := env.ledgerR.SumPointsByClient(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}
