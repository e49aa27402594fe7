package db

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend   string
	Path      string
	RedisAddr string
	RedisDB   int
	Key       string
}

// Open builds the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(opts.Path, opts.Key)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisDB, opts.Key)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
