// Package store adapts the Redis primitives used by the seat inventory into
// plain context-aware calls.  Every method returns a settled result; missing
// values are reported through an ok flag rather than redis.Nil, and every
// other Redis error is returned unchanged.  Nothing here retries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTxAborted is returned by Tx.Exec when a watched key changed between
// WATCH and EXEC and Redis discarded the transaction.
var ErrTxAborted = redis.TxFailedErr

// Store wraps a go-redis client.  The client is owned by the caller; Close
// is provided so the composition root can release it through the store.
type Store struct {
	rdb *redis.Client
}

// New returns a Store backed by rdb.
func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Client exposes the underlying client for components that need Redis
// features outside the seat primitives (rate limiting, health checks).
func (s *Store) Client() *redis.Client { return s.rdb }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

// SAdd adds member to the set at key and reports how many members were new.
func (s *Store) SAdd(ctx context.Context, key, member string) (int64, error) {
	return s.rdb.SAdd(ctx, key, member).Result()
}

// SRem removes member from the set at key and reports how many were removed.
func (s *Store) SRem(ctx context.Context, key, member string) (int64, error) {
	return s.rdb.SRem(ctx, key, member).Result()
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

// SetEx writes value at key with the given time to live.
func (s *Store) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	return s.rdb.SetEx(ctx, key, value, ttl).Err()
}

// SetNX writes value at key with the given time to live unless key already
// exists, and reports whether it was written.
func (s *Store) SetNX(ctx context.Context, key string, ttl time.Duration, value string) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *Store) HSet(ctx context.Context, key, field, value string) (int64, error) {
	return s.rdb.HSet(ctx, key, field, value).Result()
}

// HGet reads a hash field.  ok is false when the key or field is missing.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return settle(s.rdb.HGet(ctx, key, field).Result())
}

// Get reads a string key.  ok is false when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return settle(s.rdb.Get(ctx, key).Result())
}

// TTL returns the remaining time to live of key.  ok is false when the key
// does not exist or carries no expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

// Watch begins an optimistic lock on key and runs fn on a dedicated
// connection.  The watch is released when fn returns, whether or not a
// transaction was executed.
func (s *Store) Watch(ctx context.Context, key string, fn func(tx *Tx) error) error {
	return s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
		return fn(&Tx{tx: rtx})
	}, key)
}

// PSubscribe opens a pattern subscription.  The caller owns the returned
// PubSub and must close it.
func (s *Store) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	return s.rdb.PSubscribe(ctx, patterns...)
}

// EnableExpiryNotifications turns on keyevent notifications for expired
// keys.  Managed Redis offerings often reject CONFIG; callers should treat
// a failure as a warning and rely on server-side configuration.
func (s *Store) EnableExpiryNotifications(ctx context.Context) error {
	return s.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// Tx is the connection-bound view handed to Watch callbacks.
type Tx struct {
	tx *redis.Tx
}

func (t *Tx) HGet(ctx context.Context, key, field string) (string, bool, error) {
	return settle(t.tx.HGet(ctx, key, field).Result())
}

// Unwatch cancels the optimistic lock without executing a transaction.
func (t *Tx) Unwatch(ctx context.Context) error {
	return t.tx.Unwatch(ctx).Err()
}

// Exec queues the commands issued by fn inside MULTI/EXEC.  It returns
// ErrTxAborted when a watched key was modified since Watch began.
func (t *Tx) Exec(ctx context.Context, fn func(p *Pipe) error) error {
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(&Pipe{pipe: pipe})
	})
	return err
}

// Pipe queues commands for a transaction.  Queued commands report their
// results only through the error returned by Tx.Exec.
type Pipe struct {
	pipe redis.Pipeliner
}

func (p *Pipe) HSet(ctx context.Context, key, field, value string) {
	p.pipe.HSet(ctx, key, field, value)
}

func (p *Pipe) SAdd(ctx context.Context, key, member string) { p.pipe.SAdd(ctx, key, member) }

func (p *Pipe) SRem(ctx context.Context, key, member string) { p.pipe.SRem(ctx, key, member) }

func (p *Pipe) SetEx(ctx context.Context, key string, ttl time.Duration, value string) {
	p.pipe.SetEx(ctx, key, value, ttl)
}

func settle(v string, err error) (string, bool, error) {
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
