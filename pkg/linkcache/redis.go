package linkcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key. Default: "pfw:"
	Prefix string
}

// RedisBackend implements Backend on Redis. Rows carry a Redis TTL equal
// to their remaining lifetime, so Redis drops them without a sweep.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

type redisRecord struct {
	Source    SourceSystem `json:"source"`
	RefDigest string       `json:"ref_digest"`
	Payload   []byte       `json:"payload"`
	CreatedAt int64        `json:"created_at"`
	ExpiresAt int64        `json:"expires_at"`
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisBackendFromClient(client, cfg.Prefix), nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "pfw:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) linkKey(digest string) string {
	return r.prefix + "link:" + digest
}

func (r *RedisBackend) refKey(source SourceSystem, refDigest string) string {
	return r.prefix + "ref:" + string(source) + ":" + refDigest
}

// Insert implements Backend.
func (r *RedisBackend) Insert(ctx context.Context, rec *Record, now time.Time) error {
	ttl := rec.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("record already expired")
	}

	data, err := json.Marshal(redisRecord{
		Source:    rec.Source,
		RefDigest: rec.RefDigest,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt.UnixNano(),
		ExpiresAt: rec.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	key := r.linkKey(rec.Digest)
	ok, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	if !ok {
		// Redis drops expired keys itself, so any existing key is live.
		return ErrCollision
	}

	if rec.RefDigest != "" {
		if err := r.client.Set(ctx, r.refKey(rec.Source, rec.RefDigest), rec.Digest, ttl).Err(); err != nil {
			return fmt.Errorf("failed to index link: %w", err)
		}
	}
	return nil
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, digest string) (*Record, error) {
	data, err := r.client.Get(ctx, r.linkKey(digest)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}
	return decodeRedisRecord(digest, data)
}

func decodeRedisRecord(digest string, data []byte) (*Record, error) {
	var rr redisRecord
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}
	return &Record{
		Digest:    digest,
		Source:    rr.Source,
		RefDigest: rr.RefDigest,
		Payload:   rr.Payload,
		CreatedAt: time.Unix(0, rr.CreatedAt),
		ExpiresAt: time.Unix(0, rr.ExpiresAt),
	}, nil
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, digest string) error {
	if err := r.client.Del(ctx, r.linkKey(digest)).Err(); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}

// FindLive implements Backend.
func (r *RedisBackend) FindLive(ctx context.Context, source SourceSystem, refDigest string, now time.Time) (*Record, error) {
	digest, err := r.client.Get(ctx, r.refKey(source, refDigest)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}

	rec, err := r.Get(ctx, digest)
	if err != nil {
		return nil, err
	}
	if rec.Source != source || !rec.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return rec, nil
}

// DeleteExpired implements Backend. Redis expires keys itself; this only
// removes rows whose recorded expiry passed before their Redis TTL did.
func (r *RedisBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	err := r.scanRecords(ctx, func(key string, rec *Record) error {
		if rec.ExpiresAt.After(now) {
			return nil
		}
		n, err := r.client.Del(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}
		removed += int(n)
		return nil
	})
	return removed, err
}

// Stats implements Backend.
func (r *RedisBackend) Stats(ctx context.Context, now time.Time) (Stats, error) {
	stats := Stats{BySource: make(map[SourceSystem]int)}
	err := r.scanRecords(ctx, func(_ string, rec *Record) error {
		stats.Total++
		if rec.ExpiresAt.After(now) {
			stats.Active++
			stats.BySource[rec.Source]++
		} else {
			stats.Expired++
		}
		return nil
	})
	return stats, err
}

func (r *RedisBackend) scanRecords(ctx context.Context, fn func(key string, rec *Record) error) error {
	pattern := r.prefix + "link:*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan links: %w", err)
		}

		if len(keys) > 0 {
			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to load links: %w", err)
			}
			for i, v := range values {
				s, ok := v.(string)
				if !ok {
					continue // expired between SCAN and MGET
				}
				digest := keys[i][len(r.prefix+"link:"):]
				rec, err := decodeRedisRecord(digest, []byte(s))
				if err != nil {
					return err
				}
				if err := fn(keys[i], rec); err != nil {
					return err
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping implements Backend.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
