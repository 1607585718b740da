package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the requested key was not present in the namespace.
var ErrMiss = errors.New("cache miss")

// Store is the two-namespace rate cache backed by Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a rate cache store over the given Redis client.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{redis: redisClient}
}

func namespaceKey(ns Namespace, key RateKey) string {
	return fmt.Sprintf("%s:%s", ns, key)
}

// Get retrieves the value stored for key in namespace ns. It returns
// ErrMiss if the key is absent or expired.
func (s *Store) Get(ctx context.Context, ns Namespace, key RateKey) (string, time.Time, error) {
	data, err := s.redis.Get(ctx, namespaceKey(ns, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.WithLabelValues(string(ns)).Inc()
			return "", time.Time{}, ErrMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return "", time.Time{}, fmt.Errorf("redis get %s: %w", ns, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return "", time.Time{}, fmt.Errorf("unmarshal cache entry: %w", err)
	}

	cacheHits.WithLabelValues(string(ns)).Inc()
	return e.Value, e.Expires, nil
}

// Put stores value under key in namespace ns with the given TTL. A
// non-positive ttl is a no-op: the value would already be expired.
func (s *Store) Put(ctx context.Context, ns Namespace, key RateKey, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := time.Now()
	e := entry{
		Value:    value,
		CachedAt: now,
		Expires:  now.Add(ttl),
	}

	data, err := json.Marshal(e)
	if err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, namespaceKey(ns, key), data, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set %s: %w", ns, err)
	}

	return nil
}
