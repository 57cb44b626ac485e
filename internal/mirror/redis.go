package mirror

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores mirror keys in Redis under a per-device namespace, so
// several companion processes can share one Redis without clobbering each
// other. A zero TTL keeps values until they are removed.
type RedisBackend struct {
	client    *redis.Client
	namespace string
	baseTTL   time.Duration
}

func NewRedisBackend(client *redis.Client, namespace string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client:    client,
		namespace: namespace,
		baseTTL:   ttl,
	}
}

func (r *RedisBackend) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisBackend) Save(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// ttl spreads expirations so a fleet of devices does not expire together.
func (r *RedisBackend) ttl() time.Duration {
	if r.baseTTL <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	return r.baseTTL + jitter
}

func (r *RedisBackend) key(key string) string {
	if r.namespace == "" {
		return fmt.Sprintf("storefront:%s", key)
	}
	return fmt.Sprintf("storefront:%s:%s", r.namespace, key)
}
