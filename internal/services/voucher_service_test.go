package services

import (
	"context"
	"testing"
	"time"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherService_CreateEmptiesBalance(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "giver@example.com",
		Amount:     decimal.NewFromInt(35),
	})
	require.NoError(t, err)
	require.Equal(t, int64(70), credited.Client.PointsBalance)

	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, voucher.Token)
	assert.Equal(t, int64(70), voucher.Points)
	assert.Equal(t, model.VoucherPending, voucher.Status)
	assert.True(t, voucher.ExpiresAt.After(time.Now()))

	// the whole balance moved into the voucher
	sender, err := env.ledger.GetClient(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sender.PointsBalance)

	entries, _, err := env.ledger.History(ctx, merchant.ID, sender.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, model.EntryGiftOut, entries[0].Type)
	assert.Equal(t, int64(-70), entries[0].PointsDelta)

	// nothing left to gift a second time
	_, err = env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	assert.ErrorIs(t, err, ErrNothingToGift)
}

func TestVoucherService_ClaimCreditsRecipient(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "giver@example.com",
		Amount:     decimal.NewFromInt(35),
	})
	require.NoError(t, err)
	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)

	// the recipient has never visited this merchant
	recipient, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "friend@example.com",
	})
	require.NoError(t, err)

	result, err := env.voucher.Claim(ctx, voucher.Token, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherClaimed, result.Voucher.Status)
	assert.Equal(t, int64(70), result.Client.PointsBalance)
	assert.Equal(t, recipient.ID, result.Client.EndUserID)
	assert.Equal(t, model.EntryGiftIn, result.Entry.Type)
	assert.Equal(t, int64(70), result.Entry.PointsDelta)

	// a voucher is single use
	_, err = env.voucher.Claim(ctx, voucher.Token, recipient.ID)
	assert.ErrorIs(t, err, ErrVoucherAlreadyClaimed)
}

func TestVoucherService_ClaimValidation(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	recipient, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "friend@example.com",
	})
	require.NoError(t, err)

	_, err = env.voucher.Claim(ctx, "no-such-token", recipient.ID)
	assert.ErrorIs(t, err, ErrVoucherNotFound)

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "giver@example.com",
		Amount:     decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)

	_, err = env.voucher.Claim(ctx, voucher.Token, 9999)
	assert.ErrorIs(t, err, ErrEndUserNotFound)
}

func TestVoucherService_ClaimPastExpiryStillWorks(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "giver@example.com",
		Amount:     decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)

	recipient, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "late@example.com",
	})
	require.NoError(t, err)

	// expiry is enforced by the sweep, not by the clock at claim time
	result, err := env.voucher.Claim(ctx, voucher.Token, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherClaimed, result.Voucher.Status)
}

func TestVoucherService_ClientDeletionCancelsPendingVoucher(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "leaver@example.com",
		Amount:     decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)

	require.NoError(t, env.ledger.DeleteClient(ctx, merchant.ID, credited.Client.ID))

	// no refund target remains, so the voucher is dead rather than stuck
	got, err := env.voucher.Get(ctx, voucher.Token)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherExpired, got.Status)

	refunded, err := env.voucher.SweepExpired(ctx, voucher.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, refunded)
}

func TestVoucherService_SweepRefundsSender(t *testing.T) {
	env := setupEnv(t)
	merchant := env.seedMerchant(t)
	ctx := context.Background()

	credited, err := env.ledger.Credit(ctx, model.CreditRequest{
		MerchantID: merchant.ID,
		Email:      "giver@example.com",
		Amount:     decimal.NewFromInt(35),
	})
	require.NoError(t, err)
	voucher, err := env.voucher.Create(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)

	// nothing to do while the voucher is still live
	refunded, err := env.voucher.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, refunded)

	afterExpiry := voucher.ExpiresAt.Add(time.Minute)
	refunded, err = env.voucher.SweepExpired(ctx, afterExpiry)
	require.NoError(t, err)
	assert.Equal(t, 1, refunded)

	// the points are back on the sender's account
	sender, err := env.ledger.GetClient(ctx, merchant.ID, credited.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), sender.PointsBalance)

	got, err := env.voucher.Get(ctx, voucher.Token)
	require.NoError(t, err)
	assert.Equal(t, model.VoucherExpired, got.Status)

	entries, _, err := env.ledger.History(ctx, merchant.ID, sender.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, model.EntryGiftRefund, entries[0].Type)
	assert.Equal(t, int64(70), entries[0].PointsDelta)

	// the sweep is idempotent
	refunded, err = env.voucher.SweepExpired(ctx, afterExpiry)
	require.NoError(t, err)
	assert.Equal(t, 0, refunded)

	// an expired voucher can no longer be claimed
	_, err = env.voucher.Claim(ctx, voucher.Token, credited.EndUser.ID)
	assert.ErrorIs(t, err, ErrVoucherExpired)
}
