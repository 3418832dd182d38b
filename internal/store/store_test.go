package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, prefix string) *Redis {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := NewRedis(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t, "")

	_, err := s.Get(ctx, SessionTokenKey)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, SessionTokenKey, "tok-123"))
	require.NoError(t, s.Set(ctx, SessionUserKey, `{"id":"u1"}`))

	token, err := s.Get(ctx, SessionTokenKey)
	require.NoError(t, err)
	if diff := cmp.Diff("tok-123", token); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}

	user, err := s.Get(ctx, SessionUserKey)
	require.NoError(t, err)
	if diff := cmp.Diff(`{"id":"u1"}`, user); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.Delete(ctx, SessionTokenKey))
	_, err = s.Get(ctx, SessionTokenKey)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is fine
	require.NoError(t, s.Delete(ctx, SessionTokenKey))
}

func TestRedisKeyPrefix(t *testing.T) {
	ctx := context.Background()
	s := newRedisStore(t, "agent1")

	require.NoError(t, s.Set(ctx, ReturnToKey, "/campaigns"))

	value, err := s.Client().Get(ctx, "agent1:"+ReturnToKey).Result()
	require.NoError(t, err)
	require.Equal(t, "/campaigns", value)
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v"))
	value, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", value)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}
