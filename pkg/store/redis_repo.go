package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores values as plain Redis strings under prefix+key. An OOM reply from a
// server running with maxmemory is reported as ErrQuotaExceeded.
type RedisRepository struct {
	client   redis.UniversalClient
	prefix   string
	maxBytes int64
}

func NewRedisRepository(client redis.UniversalClient, prefix string, maxBytes int64) *RedisRepository {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisRepository{client: client, prefix: prefix, maxBytes: maxBytes}
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *RedisRepository) Put(ctx context.Context, key string, value []byte) error {
	if err := checkQuota(r.maxBytes, len(value)); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}
