package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pointgrid/loyalty-core/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func TestStore_IssueAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	store := NewStore(adapter, Config{TTL: time.Minute})
	ctx := context.Background()

	token, err := store.Issue(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, ok, err := store.Consume(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestStore_ConsumeIsOneShot(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	store := NewStore(adapter, DefaultConfig())
	ctx := context.Background()

	token, err := store.Issue(ctx, 7)
	require.NoError(t, err)

	_, ok, err := store.Consume(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Consume(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UnknownToken(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	store := NewStore(adapter, DefaultConfig())

	_, ok, err := store.Consume(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Expiry(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	store := NewStore(adapter, Config{TTL: time.Second})
	ctx := context.Background()

	token, err := store.Issue(ctx, 9)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, ok, err := store.Consume(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}
