package redisstore

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	keyTurns  = "tourchat:usage:turns"
	keyTokens = "tourchat:usage:tokens"
	keyErrors = "tourchat:usage:errors"
)

// Store keeps process-wide usage counters in Redis so they survive restarts
// and aggregate across replicas. A nil *Store is valid and does nothing, so
// callers never have to branch on whether Redis is configured.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	if addr == "" {
		return nil
	}
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) IncrTurns(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rdb.Incr(ctx, keyTurns).Err()
}

func (s *Store) AddTokens(ctx context.Context, n int64) error {
	if s == nil || n == 0 {
		return nil
	}
	return s.rdb.IncrBy(ctx, keyTokens, n).Err()
}

func (s *Store) IncrErrors(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.rdb.Incr(ctx, keyErrors).Err()
}

// Usage is a snapshot of the counters for the status endpoint.
type Usage struct {
	Turns  int64 `json:"turns"`
	Tokens int64 `json:"tokens"`
	Errors int64 `json:"errors"`
}

func (s *Store) Snapshot(ctx context.Context) (Usage, error) {
	var u Usage
	if s == nil {
		return u, nil
	}
	vals, err := s.rdb.MGet(ctx, keyTurns, keyTokens, keyErrors).Result()
	if err != nil {
		return u, err
	}
	dst := []*int64{&u.Turns, &u.Tokens, &u.Errors}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			if n, err := strconv.ParseInt(str, 10, 64); err == nil {
				*dst[i] = n
			}
		}
	}
	return u, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.rdb.Close()
}
