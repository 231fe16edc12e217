package services

import (
	"context"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_ResolveCreatesOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, isNew, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "Jane.Doe@Example.COM",
		Name:  "Jane",
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	require.NotNil(t, created.EmailLower)
	assert.Equal(t, "jane.doe@example.com", *created.EmailLower)
	assert.NotEmpty(t, created.ValidationToken)
	assert.NotEmpty(t, created.QRToken)

	// same identifier in any casing resolves, never duplicates
	again, isNew, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "jane.doe@example.com",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)
}

func TestIdentityService_ResolvePlusTagVariant(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "jane@example.com",
	})
	require.NoError(t, err)

	// jane+newsletter@ is the same mailbox as jane@
	tagged, isNew, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "jane+newsletter@example.com",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, tagged.ID)
}

func TestIdentityService_ResolvePhoneVariants(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Phone: "0171 555 1234",
	})
	require.NoError(t, err)
	require.NotNil(t, created.PhoneE164)
	assert.Equal(t, "+491715551234", *created.PhoneE164)

	// international spelling of the same number
	intl, isNew, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Phone: "+49 171 5551234",
	})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, intl.ID)
}

func TestIdentityService_ResolveRequiresIdentifier(t *testing.T) {
	env := setupEnv(t)

	_, _, err := env.identity.Resolve(context.Background(), model.ResolveRequest{Name: "Nobody"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestIdentityService_ConsentOnMerchantCredit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	counter, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email:                 "counter@example.com",
		ConsentMerchantCredit: true,
	})
	require.NoError(t, err)
	assert.True(t, counter.EmailValidated)
	require.NotNil(t, counter.ConsentMethod)

	selfService, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "self@example.com",
	})
	require.NoError(t, err)
	assert.False(t, selfService.EmailValidated)
	assert.Nil(t, selfService.ConsentMethod)
}

func TestIdentityService_DeleteHidesAccount(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	created, _, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "bye@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, env.identity.Delete(ctx, created.ID))

	// the identifier is free again; resolving creates a fresh account
	fresh, isNew, err := env.identity.Resolve(ctx, model.ResolveRequest{
		Email: "bye@example.com",
	})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, created.ID, fresh.ID)
}
