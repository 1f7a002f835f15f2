package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Backend       string
	Prefix        string        // redis key prefix
	MemoryEntries int           // memory backend bound
	SQLitePath    string        // sqlite backend file
	SweepInterval time.Duration // memory backend sweep, 0 = lazy only
}

// NewStore builds the configured backend. Callers own the result and should
// close it if it implements io.Closer.
func NewStore(cfg Config, redisClient *redis.Client, opts ...Option) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, errors.New("cache: redis backend needs a client")
		}
		return NewRedisStore(redisClient, RedisConfig{Prefix: cfg.Prefix}), nil
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("cache: sqlite backend needs a path")
		}
		return OpenSQLiteStore(cfg.SQLitePath, opts...)
	case BackendMemory, "":
		opts = append([]Option{WithSweepInterval(cfg.SweepInterval)}, opts...)
		return NewMemoryStore(cfg.MemoryEntries, opts...)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
