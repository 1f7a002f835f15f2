package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/pkg/logging/logging"
)

// TTL is the freshness window for every cached response. Callers cannot
// override it.
const TTL = 24 * time.Hour

// ResponseCache is the typed facade the orchestrators use. It normalizes
// keys, applies the fixed TTL and never fails: an unavailable store reads as
// a miss and drops writes.
type ResponseCache struct {
	store  Store
	logger *zap.Logger
}

// NewResponseCache wraps store. A nil store disables caching.
func NewResponseCache(store Store, logger *zap.Logger) *ResponseCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{store: store, logger: logger.Named("response_cache")}
}

// Check returns the cached payload for raw under kind.
func (c *ResponseCache) Check(ctx context.Context, raw string, kind Kind) ([]byte, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}

	key := Key(kind, raw)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logging.Or(ctx, c.logger).Warn("cache_unavailable",
			zap.String("op", "get"),
			zap.String("kind", string(kind)),
			zap.String("key_hash", KeyHash(key)),
			zap.Error(err),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return data, true
}

// Save upserts payload for raw under kind with the fixed TTL.
func (c *ResponseCache) Save(ctx context.Context, raw string, kind Kind, payload []byte) {
	if c == nil || c.store == nil {
		return
	}

	key := Key(kind, raw)
	if err := c.store.Put(ctx, key, kind, payload, TTL); err != nil {
		logging.Or(ctx, c.logger).Warn("cache_unavailable",
			zap.String("op", "put"),
			zap.String("kind", string(kind)),
			zap.String("key_hash", KeyHash(key)),
			zap.Error(err),
		)
	}
}

// CheckJSON decodes a cached payload into v. A payload that no longer decodes
// is reported as a miss so the caller refetches and overwrites it.
func (c *ResponseCache) CheckJSON(ctx context.Context, raw string, kind Kind, v any) bool {
	data, ok := c.Check(ctx, raw, kind)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logging.Or(ctx, c.logger).Warn("cache_payload_corrupt",
			zap.String("kind", string(kind)),
			zap.String("key_hash", KeyHash(Key(kind, raw))),
			zap.Error(err),
		)
		return false
	}
	return true
}

// SaveJSON encodes v and saves it.
func (c *ResponseCache) SaveJSON(ctx context.Context, raw string, kind Kind, v any) {
	if c == nil || c.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logging.Or(ctx, c.logger).Warn("cache_marshal_error",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}
	c.Save(ctx, raw, kind, data)
}
