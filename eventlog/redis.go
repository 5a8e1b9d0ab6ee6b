package eventlog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the event log in a single Redis key. The version token is
// the SHA-1 of the content; writes run under WATCH so a concurrent writer
// aborts the transaction, which maps to ErrConflict.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore returns a store over the given key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func contentVersion(content string) string {
	if content == "" {
		return ""
	}
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Read fetches the current log content. A missing key reads as empty.
func (s *RedisStore) Read(ctx context.Context) (string, string, error) {
	content, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return content, contentVersion(content), nil
}

// Write replaces the log content if the key still hashes to version.
func (s *RedisStore) Write(ctx context.Context, content, version string) error {
	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, s.key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if contentVersion(current) != version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, content, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, s.key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}
