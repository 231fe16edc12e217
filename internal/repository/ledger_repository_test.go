package repository

import (
	"context"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedClient(t *testing.T, db *testDB) *model.MerchantClient {
	t.Helper()
	merchant := seedMerchant(t, db)
	user := seedEndUser(t, db)
	client, err := NewMerchantClientRepository(db.DB).Create(context.Background(), &model.MerchantClient{
		MerchantID: merchant.ID,
		EndUserID:  user.ID,
	})
	require.NoError(t, err)
	return client
}

func TestLedgerRepository_IdempotencyKeyUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db.DB)
	ctx := context.Background()

	client := seedClient(t, db)
	key := "req-abc"

	first, err := repo.Create(ctx, &model.LedgerEntry{
		MerchantID:       client.MerchantID,
		MerchantClientID: client.ID,
		PointsDelta:      60,
		Type:             model.EntryCredit,
		IdempotencyKey:   &key,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.LedgerEntry{
		MerchantID:       client.MerchantID,
		MerchantClientID: client.ID,
		PointsDelta:      60,
		Type:             model.EntryCredit,
		IdempotencyKey:   &key,
	})
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)

	found, err := repo.FindByIdempotencyKey(ctx, client.MerchantID, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	none, err := repo.FindByIdempotencyKey(ctx, client.MerchantID, "unseen")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLedgerRepository_NilKeysDoNotCollide(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db.DB)
	ctx := context.Background()

	client := seedClient(t, db)

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &model.LedgerEntry{
			MerchantID:       client.MerchantID,
			MerchantClientID: client.ID,
			PointsDelta:      10,
			Type:             model.EntryCredit,
		})
		require.NoError(t, err)
	}
}

func TestLedgerRepository_SumPointsByClient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db.DB)
	ctx := context.Background()

	client := seedClient(t, db)

	sum, err := repo.SumPointsByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	deltas := []int64{60, 110, -100}
	for _, d := range deltas {
		_, err := repo.Create(ctx, &model.LedgerEntry{
			MerchantID:       client.MerchantID,
			MerchantClientID: client.ID,
			PointsDelta:      d,
			Type:             model.EntryCredit,
		})
		require.NoError(t, err)
	}

	sum, err = repo.SumPointsByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), sum)
}

func TestLedgerRepository_ReassignClient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db.DB)
	ctx := context.Background()

	source := seedClient(t, db)
	target := seedClient(t, db)

	for i := 0; i < 2; i++ {
		_, err := repo.Create(ctx, &model.LedgerEntry{
			MerchantID:       source.MerchantID,
			MerchantClientID: source.ID,
			PointsDelta:      25,
			Type:             model.EntryCredit,
		})
		require.NoError(t, err)
	}

	moved, err := repo.ReassignClient(ctx, source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	sourceSum, err := repo.SumPointsByClient(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sourceSum)

	targetSum, err := repo.SumPointsByClient(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), targetSum)
}

func TestLedgerRepository_DeleteByClient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db.DB)
	ctx := context.Background()

	client := seedClient(t, db)
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &model.LedgerEntry{
			MerchantID:       client.MerchantID,
			MerchantClientID: client.ID,
			PointsDelta:      10,
			Type:             model.EntryCredit,
		})
		require.NoError(t, err)
	}

	removed, err := repo.DeleteByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	items, total, err := repo.ListByClient(ctx, client.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, items)
}
