// Package kv provides a uniform key-value store interface over Redis,
// plus an in-memory implementation used in tests and single-process setups.
package kv

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the key-value surface shared by the session store and the rate
// limiter. All operations are context-bound; callers decide whether a store
// failure is fatal (session validation) or tolerable (rate limiting).
type Store interface {
	// Get retrieves a string value. Returns ("", nil) if the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// Set stores a value with optional TTL (0 = no expiry).
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Expire resets the TTL of a key. Returns false if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns the remaining lifetime of a key, 0 when the key is missing
	// or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Incr atomically increments an integer key, creating it at 1.
	Incr(ctx context.Context, key string) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// DeletePattern removes all keys matching a glob pattern and returns the
	// number deleted.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

// SetJSON serializes a value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// GetJSON fetches and parses a JSON value into dest. A missing key or a value
// that fails to parse is reported as a cache miss (false, nil), never an error.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, nil
	}
	return true, nil
}
