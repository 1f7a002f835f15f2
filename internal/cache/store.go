package cache

import (
	"context"
	"errors"
	"time"
)

// Store is a key/value store with per-entry expiry.
//
// Get reports (nil, false, nil) for missing keys and for entries whose expiry
// is at or before now; a miss is not an error. Put is an unconditional
// upsert, last writer wins. Backend failures are returned as errors and it is
// up to ResponseCache to degrade them to misses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, kind Kind, value []byte, ttl time.Duration) error
}

// Purger is implemented by stores that keep expired rows around until swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

var ErrPurgeUnsupported = errors.New("cache: store expires entries natively")

// Option configures the memory and SQLite stores.
type Option func(*storeOptions)

type storeOptions struct {
	now           func() time.Time
	sweepInterval time.Duration
}

func defaultOptions() storeOptions {
	return storeOptions{now: time.Now}
}

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSweepInterval enables a background sweep of expired entries on the
// memory store. Zero disables it; expiry is still enforced lazily on reads.
func WithSweepInterval(d time.Duration) Option {
	return func(o *storeOptions) {
		o.sweepInterval = d
	}
}

// expired is the single definition of freshness used by every backend:
// an entry whose expiry is at or before now is gone.
func expired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}
