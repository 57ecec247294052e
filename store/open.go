package store

import (
	"context"
	"fmt"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Options struct {
	Driver      string
	Dir         string
	PostgresDSN string
	RedisURL    string
}

// Open returns the Store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileStore(opts.Dir)
	case DriverPostgres:
		return NewPostgresStore(ctx, opts.PostgresDSN)
	case DriverRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
