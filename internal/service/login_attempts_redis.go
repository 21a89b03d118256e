package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLoginAttemptStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLoginAttemptStore(client redis.UniversalClient, prefix string) *RedisLoginAttemptStore {
	if prefix == "" {
		prefix = "login_attempts"
	}
	return &RedisLoginAttemptStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisLoginAttemptStore) Failures(ctx context.Context, key string) (int, error) {
	if s.client == nil {
		return 0, nil
	}
	n, err := s.client.Get(ctx, s.counterKey(key)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RecordAttempt increments the counter and, on the first attempt of a
// window, starts its expiry. Both commands run in one MULTI so a counter is
// never left without a TTL, and INCR hands every concurrent caller a
// distinct count.
func (s *RedisLoginAttemptStore) RecordAttempt(ctx context.Context, key string, window time.Duration) (int, error) {
	if s.client == nil || window <= 0 {
		return 0, nil
	}
	counterKey := s.counterKey(key)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.ExpireNX(ctx, counterKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (s *RedisLoginAttemptStore) Reset(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.counterKey(key)).Err()
}

// Emails are hashed so the keyspace does not expose who is being targeted.
func (s *RedisLoginAttemptStore) counterKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:failures:%s", s.prefix, hex.EncodeToString(sum[:]))
}
