package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"catalog-sync-worker/domain"
)

// DefaultSeenTTL bounds how long a run's seen set stays in redis.
const DefaultSeenTTL = 24 * time.Hour

func NewRedisClient(host, port string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port),
	})
}

// RedisSeenMirror copies every admitted identifier into a per-run redis set.
type RedisSeenMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSeenMirror(client *redis.Client, ttl time.Duration) *RedisSeenMirror {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &RedisSeenMirror{client: client, ttl: ttl}
}

func (r *RedisSeenMirror) AddSeen(ctx context.Context, catalog, runID, id string) error {
	key := fmt.Sprintf(domain.RedisKeySeen, catalog, runID)
	added, err := r.client.SAdd(ctx, key, id).Result()
	if err != nil {
		return fmt.Errorf("redis sadd failure for %s: %w", key, err)
	}
	// First member creates the set
	if added == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire failure for %s: %w", key, err)
		}
	}
	return nil
}
