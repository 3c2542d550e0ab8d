// Package cache holds short-lived upstream lookups (price averages, market
// categories, whale profiles) in Redis or in process memory.
package cache

import (
	"context"
	"time"
)

// Backend is a byte-oriented TTL store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
