package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/pkg/logging/logging"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner  Store
	logger *zap.Logger
}

// NewLoggingStore returns a store that logs and records metrics.
func NewLoggingStore(inner Store, logger *zap.Logger) *LoggingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingStore{inner: inner, logger: logger.Named("cache")}
}

func (s *LoggingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	kind := kindOf(key)
	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheRequestsTotal.WithLabelValues(kind, result).Inc()

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("key_hash", KeyHash(key)),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.Or(ctx, s.logger)
	if err != nil {
		logger.Error("cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_get", fields...)
	}

	return value, ok, err
}

func (s *LoggingStore) Put(ctx context.Context, key string, kind Kind, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, kind, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("key_hash", KeyHash(key)),
		zap.Int("bytes", len(value)),
		zap.Duration("ttl", ttl),
		zap.Float64("latency_ms", latencyMs),
	}

	logger := logging.Or(ctx, s.logger)
	if err != nil {
		metrics.CacheWriteFailuresTotal.WithLabelValues(string(kind)).Inc()
		logger.Error("cache_put", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_put", fields...)
	}

	return err
}

// PurgeExpired forwards to the wrapped store when it supports purging.
func (s *LoggingStore) PurgeExpired(ctx context.Context) (int, error) {
	p, ok := s.inner.(Purger)
	if !ok {
		return 0, ErrPurgeUnsupported
	}
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		logging.Or(ctx, s.logger).Error("cache_purge", zap.Error(err))
		return n, err
	}
	logging.Or(ctx, s.logger).Info("cache_purge", zap.Int("removed", n))
	return n, nil
}
