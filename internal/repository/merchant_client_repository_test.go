package repository

import (
	"context"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMerchant(t *testing.T, db *testDB) *model.Merchant {
	t.Helper()
	merchants := NewMerchantRepository(db.DB)
	m, err := merchants.Create(context.Background(), &model.Merchant{
		Name:              "Cafe Eleven",
		Status:            model.MerchantStatusActive,
		PointsPerUnit:     decimal.NewFromInt(2),
		PointsForReward:   100,
		RewardDescription: "free coffee",
	})
	require.NoError(t, err)
	return m
}

func seedEndUser(t *testing.T, db *testDB) *model.EndUser {
	t.Helper()
	users := NewEndUserRepository(db.DB)
	u, err := users.Create(context.Background(), &model.EndUser{
		ValidationToken: "vt",
		QRToken:         "qr",
	})
	require.NoError(t, err)
	return u
}

func TestMerchantClientRepository_UniqueLink(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMerchantClientRepository(db.DB)
	ctx := context.Background()

	merchant := seedMerchant(t, db)
	user := seedEndUser(t, db)

	created, err := repo.Create(ctx, &model.MerchantClient{
		MerchantID: merchant.ID,
		EndUserID:  user.ID,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.MerchantClient{
		MerchantID: merchant.ID,
		EndUserID:  user.ID,
	})
	assert.ErrorIs(t, err, ErrLinkExists)

	found, err := repo.FindByMerchantAndUser(ctx, merchant.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	none, err := repo.FindByMerchantAndUser(ctx, merchant.ID+1, user.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMerchantClientRepository_GetForUpdateScopedToMerchant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMerchantClientRepository(db.DB)
	ctx := context.Background()

	merchant := seedMerchant(t, db)
	user := seedEndUser(t, db)

	client, err := repo.Create(ctx, &model.MerchantClient{
		MerchantID: merchant.ID,
		EndUserID:  user.ID,
	})
	require.NoError(t, err)

	got, err := repo.GetForUpdate(ctx, merchant.ID, client.ID)
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)

	// a client id of another tenant must read as missing
	_, err = repo.GetForUpdate(ctx, merchant.ID+1, client.ID)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestMerchantClientRepository_UpdateCounters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMerchantClientRepository(db.DB)
	ctx := context.Background()

	merchant := seedMerchant(t, db)
	user := seedEndUser(t, db)

	client, err := repo.Create(ctx, &model.MerchantClient{
		MerchantID: merchant.ID,
		EndUserID:  user.ID,
	})
	require.NoError(t, err)

	client.PointsBalance = 60
	client.TotalSpent = decimal.NewFromInt(30)
	client.VisitCount = 1
	updated, err := repo.Update(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, int64(60), updated.PointsBalance)

	reread, err := repo.Get(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), reread.PointsBalance)
	assert.True(t, reread.TotalSpent.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(1), reread.VisitCount)
}

func TestMerchantClientRepository_ListByMerchant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMerchantClientRepository(db.DB)
	ctx := context.Background()

	merchant := seedMerchant(t, db)
	for i := 0; i < 3; i++ {
		user := seedEndUser(t, db)
		_, err := repo.Create(ctx, &model.MerchantClient{
			MerchantID: merchant.ID,
			EndUserID:  user.ID,
		})
		require.NoError(t, err)
	}

	items, total, err := repo.ListByMerchant(ctx, merchant.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	all, err := repo.ListAll(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
