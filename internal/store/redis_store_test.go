package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), m
}

func TestStore_SetOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.SAdd(ctx, "set", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.SAdd(ctx, "set", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	_, err = s.SAdd(ctx, "set", "b")
	require.NoError(t, err)

	members, err := s.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	n, err = s.SRem(ctx, "set", "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	members, err = s.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestStore_MissingValuesAreNotErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	v, ok, err := s.HGet(ctx, "nohash", "f")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	v, ok, err = s.Get(ctx, "nokey")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	_, ok, err = s.TTL(ctx, "nokey")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_HashAndExpiry(t *testing.T) {
	s, m := newTestStore(t)
	ctx := context.Background()

	_, err := s.HSet(ctx, "h", "f", "v")
	require.NoError(t, err)
	v, ok, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, s.SetEx(ctx, "k", time.Minute, "held"))
	v, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "held", v)

	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, ttl)

	m.FastForward(61 * time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_WatchCommits(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Watch(ctx, "h", func(tx *Tx) error {
		_, ok, err := tx.HGet(ctx, "h", "f")
		require.NoError(t, err)
		assert.False(t, ok)
		return tx.Exec(ctx, func(p *Pipe) error {
			p.HSet(ctx, "h", "f", "v")
			p.SAdd(ctx, "set", "x")
			p.SetEx(ctx, "marker", time.Minute, "held")
			return nil
		})
	})
	require.NoError(t, err)

	v, ok, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	members, err := s.SMembers(ctx, "set")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, members)
}

func TestStore_WatchAbortsOnConcurrentWrite(t *testing.T) {
	s, m := newTestStore(t)
	ctx := context.Background()
	other := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = other.Close() })

	err := s.Watch(ctx, "h", func(tx *Tx) error {
		require.NoError(t, other.HSet(ctx, "h", "f", "theirs").Err())
		return tx.Exec(ctx, func(p *Pipe) error {
			p.HSet(ctx, "h", "f", "mine")
			return nil
		})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTxAborted))

	v, _, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.Equal(t, "theirs", v)
}

func TestStore_UnwatchReleasesLock(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("rejected")
	err := s.Watch(ctx, "h", func(tx *Tx) error {
		require.NoError(t, tx.Unwatch(ctx))
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
