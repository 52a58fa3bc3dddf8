package model

import (
	"context"
	"time"
)

// Cache stores derived read views. Get returns ErrCacheMiss for absent keys; a zero ttl
// stores without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, prefix string) error
}
