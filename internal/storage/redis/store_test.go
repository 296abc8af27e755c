package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cart-keeper/internal/domain/cart"
)

func getStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	s, err := Dial(context.Background(), addr)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSet(t *testing.T) {
	s := getStore(t)
	ctx := context.Background()
	key := "cart-keeper-test:" + uuid.NewString()
	t.Cleanup(func() { s.client.Del(context.Background(), key) })

	_, err := s.Get(ctx, key)
	require.ErrorIs(t, err, cart.ErrNoValue)

	require.NoError(t, s.Set(ctx, key, []byte(`[{"id":1,"amount":1}]`)))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"amount":1}]`, string(got))

	ttl, err := s.client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Negative(t, ttl, "value must not expire")

	require.NoError(t, s.Set(ctx, key, []byte(`[]`)))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}

func TestStore_Ping(t *testing.T) {
	s := getStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
