package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ayusman/lisa/internal/logging"
)

const keyPrefix = "lisa:frame:"

// Entry is a cached successful recognition.
type Entry struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image"`
}

// Results caches recognitions keyed by the digest of the submitted payload.
type Results struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewResults wraps c. A non-positive ttl defaults to five minutes.
func NewResults(c Cache, ttl time.Duration, logger *zap.Logger) *Results {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Results{cache: c, ttl: ttl, logger: logger.Named("cache")}
}

// Key derives the cache key for a payload.
func Key(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Lookup returns the cached entry for payload. Cache failures are logged and
// reported as a miss so recognition can proceed.
func (r *Results) Lookup(ctx context.Context, requestID, payload string) (Entry, bool) {
	value, err := r.cache.Get(ctx, Key(payload))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.WithOperation(r.logger, "cache.get", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		logging.WithOperation(r.logger, "cache.get", requestID).Warn("failed to decode cached result", zap.Error(err))
		return Entry{}, false
	}
	return entry, true
}

// Store saves entry for payload.
func (r *Results) Store(ctx context.Context, requestID, payload string, entry Entry) error {
	serialized, err := json.Marshal(entry)
	if err != nil {
		return logging.NewOperationError("cache.set", requestID, err)
	}
	return logging.NewOperationError("cache.set", requestID, r.cache.Set(ctx, Key(payload), string(serialized), r.ttl))
}
