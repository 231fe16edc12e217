package repository

import (
	"context"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestEndUserRepository_FindByIdentifiers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEndUserRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.EndUser{
		Email:           strPtr("Jane.Doe+promo@example.com"),
		EmailLower:      strPtr("jane.doe+promo@example.com"),
		EmailCanonical:  strPtr("jane.doe@example.com"),
		Phone:           strPtr("0171 5551234"),
		PhoneE164:       strPtr("+491715551234"),
		ValidationToken: "vt",
		QRToken:         "qr",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byEmail, err := repo.FindByEmailLower(ctx, "jane.doe+promo@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)

	byCanonical, err := repo.FindByCanonicalEmail(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	require.NotNil(t, byCanonical)
	assert.Equal(t, created.ID, byCanonical.ID)

	byPhone, err := repo.FindByPhone(ctx, "+491715551234")
	require.NoError(t, err)
	require.NotNil(t, byPhone)
	assert.Equal(t, created.ID, byPhone.ID)

	missing, err := repo.FindByEmailLower(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEndUserRepository_SoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEndUserRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.EndUser{
		Email:           strPtr("gone@example.com"),
		EmailLower:      strPtr("gone@example.com"),
		EmailCanonical:  strPtr("gone@example.com"),
		ValidationToken: "vt",
		QRToken:         "qr",
	})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, created.ID))

	// lookups no longer see the account
	found, err := repo.FindByEmailLower(ctx, "gone@example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	// the row survives for ledger rendering, stripped of PII
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Nil(t, got.Email)
	assert.Nil(t, got.PhoneE164)
	assert.Nil(t, got.PinHash)

	// a second delete has nothing left to do
	assert.ErrorIs(t, repo.SoftDelete(ctx, created.ID), ErrEndUserNotFound)
}

func TestEndUserRepository_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEndUserRepository(db.DB)

	_, err := repo.Get(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrEndUserNotFound)
}

func TestAliasRepository_UniquePerIdentifier(t *testing.T) {
	db := setupTestDB(t)
	users := NewEndUserRepository(db.DB)
	aliases := NewAliasRepository(db.DB)
	ctx := context.Background()

	owner, err := users.Create(ctx, &model.EndUser{ValidationToken: "vt", QRToken: "qr"})
	require.NoError(t, err)

	_, err = aliases.Create(ctx, &model.Alias{
		Type:      model.AliasEmail,
		Value:     "old@example.com",
		EndUserID: owner.ID,
	})
	require.NoError(t, err)

	_, err = aliases.Create(ctx, &model.Alias{
		Type:      model.AliasEmail,
		Value:     "old@example.com",
		EndUserID: owner.ID + 1,
	})
	assert.ErrorIs(t, err, ErrAliasExists)

	// the same value under another type is a different identifier
	_, err = aliases.Create(ctx, &model.Alias{
		Type:      model.AliasPhone,
		Value:     "old@example.com",
		EndUserID: owner.ID,
	})
	require.NoError(t, err)

	found, err := aliases.FindOwner(ctx, model.AliasEmail, "old@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, owner.ID, found.EndUserID)

	none, err := aliases.FindOwner(ctx, model.AliasEmail, "never@example.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}
