package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/pranaysuyash/caption-art-sub009/internal/metrics"
)

const (
	archiveKeyPrefix = "telemetry:overflow:"
	archiveTTL       = 24 * time.Hour
)

// RedisArchive stores envelopes that fall off the bounded retry window, so a
// backfill job can recover them later. Construction degrades to a disabled
// archive when Redis is unreachable.
type RedisArchive struct {
	client  *redis.Client
	enabled bool
}

// NewRedisArchive connects to Redis and verifies the connection.
func NewRedisArchive(addr string) *RedisArchive {
	if addr == "" {
		return &RedisArchive{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: 3,
		PoolSize:   4,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorf("overflow archive disabled, redis unreachable at %s: %v", addr, err)
		return &RedisArchive{}
	}
	log.Infof("overflow archive connected to redis at %s", addr)
	return &RedisArchive{client: client, enabled: true}
}

// Enabled reports whether the archive accepts envelopes.
func (a *RedisArchive) Enabled() bool {
	return a != nil && a.enabled
}

// Store appends the envelopes under a per-batch key with a TTL.
func (a *RedisArchive) Store(ctx context.Context, batchID string, envelopes []metrics.Envelope) error {
	if !a.Enabled() {
		return fmt.Errorf("archive disabled")
	}
	values := make([]interface{}, 0, len(envelopes))
	for _, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		values = append(values, data)
	}
	key := archiveKeyPrefix + batchID
	if err := a.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	if err := a.client.Expire(ctx, key, archiveTTL).Err(); err != nil {
		log.Warnf("failed to set TTL on %s: %v", key, err)
	}
	return nil
}

// Close releases the Redis connection.
func (a *RedisArchive) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}
