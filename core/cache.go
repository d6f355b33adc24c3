package core

import "context"

// Cache is a cache-aside store for computed values (JSON encoded).
type Cache interface {
	// Get decodes the cached value of key into dest. Reports false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	// DeletePrefix evicts every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
