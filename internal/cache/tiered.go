// Package cache implements the two-tier result cache. The fast tier lives in
// process; the durable tier is Redis or Postgres. Every value is wrapped in
// an Entry whose timestamp decides validity against the TTL of the key's
// class, independently of any expiry the backends apply themselves.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metrics"
)

const (
	tierFast    = "fast"
	tierDurable = "durable"
)

// Entry is the stored form of a cached value
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch millis
}

// DurableStore is the persistent tier. A missing key is reported as
// (nil, false, nil).
type DurableStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Config configures a Cache
type Config struct {
	TTLs            TTLs
	MemoryTTL       time.Duration
	CleanupInterval time.Duration
	Now             func() time.Time
	Logger          *logging.Logger
	Metrics         *metrics.Collector
}

// Cache is the two-tier cache
type Cache struct {
	fast    *Memory
	durable DurableStore
	ttls    TTLs
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates a cache over durable. A nil durable store leaves only the
// fast tier.
func New(durable DurableStore, cfg Config) *Cache {
	if cfg.TTLs == (TTLs{}) {
		cfg.TTLs = DefaultTTLs()
	}
	if cfg.MemoryTTL <= 0 {
		cfg.MemoryTTL = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	return &Cache{
		fast:    NewMemory(cfg.MemoryTTL, cfg.CleanupInterval),
		durable: durable,
		ttls:    cfg.TTLs,
		now:     cfg.Now,
		logger:  cfg.Logger.Component("cache"),
		metrics: cfg.Metrics,
	}
}

// Get looks key up in the fast tier, then the durable tier, and decodes the
// value into dest. Expired entries are removed and reported as a miss. A
// durable hit is copied into the fast tier with its original timestamp.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := c.lookup(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		return false, apperrors.NewCacheError("decode", fmt.Errorf("key %s: %w", key, err))
	}
	return true, nil
}

// Set wraps value in a fresh entry and writes it to both tiers. A durable
// write failure is logged and does not fail the call.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	return c.store(ctx, key, value, c.now().UnixMilli())
}

// Replace overwrites the value stored under key while keeping the entry's
// timestamp, so its remaining validity is unchanged. It reports false when
// no valid entry exists.
func (c *Cache) Replace(ctx context.Context, key string, value interface{}) (bool, error) {
	entry, ok := c.lookup(ctx, key)
	if !ok {
		return false, nil
	}
	return true, c.store(ctx, key, value, entry.Timestamp)
}

// Remove deletes key from both tiers
func (c *Cache) Remove(ctx context.Context, key string) error {
	c.fast.Delete(key)
	if c.durable == nil {
		return nil
	}
	if err := c.durable.Delete(ctx, key); err != nil {
		return apperrors.NewCacheError("remove", err)
	}
	return nil
}

// InvalidateAddress removes every discovery result cached for address and
// returns how many durable keys were deleted.
func (c *Cache) InvalidateAddress(ctx context.Context, address string) (int, error) {
	prefix := AddressPrefix(address)
	n := c.fast.DeletePrefix(prefix)
	if c.durable == nil {
		return n, nil
	}
	deleted, err := c.durable.DeletePrefix(ctx, prefix)
	if err != nil {
		return deleted, apperrors.NewCacheError("invalidate", err)
	}
	return deleted, nil
}

// ClearMemory drops the whole fast tier
func (c *Cache) ClearMemory() {
	c.fast.Flush()
}

// TTLFor returns the validity period of key
func (c *Cache) TTLFor(key string) time.Duration {
	return c.ttls.For(key)
}

func (c *Cache) store(ctx context.Context, key string, value interface{}, timestamp int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.NewCacheError("encode", fmt.Errorf("key %s: %w", key, err))
	}
	raw, err := json.Marshal(Entry{Data: data, Timestamp: timestamp})
	if err != nil {
		return apperrors.NewCacheError("encode", err)
	}

	c.fast.Set(key, raw)

	if c.durable == nil {
		return nil
	}
	ttl := c.ttls.For(key) - c.age(timestamp)
	if ttl <= 0 {
		return nil
	}
	if err := c.durable.Set(ctx, key, raw, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("durable cache write failed")
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context, key string) (Entry, bool) {
	if raw, ok := c.fast.Get(key); ok {
		entry, valid := c.decode(ctx, key, raw)
		c.metrics.CacheLookup(tierFast, valid)
		if valid {
			return entry, true
		}
		return Entry{}, false
	}
	c.metrics.CacheLookup(tierFast, false)

	if c.durable == nil {
		return Entry{}, false
	}
	raw, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("durable cache read failed")
		c.metrics.CacheLookup(tierDurable, false)
		return Entry{}, false
	}
	if !ok {
		c.metrics.CacheLookup(tierDurable, false)
		return Entry{}, false
	}

	entry, valid := c.decode(ctx, key, raw)
	c.metrics.CacheLookup(tierDurable, valid)
	if !valid {
		return Entry{}, false
	}
	c.fast.Set(key, raw)
	return entry, true
}

// decode parses raw and checks it against the class TTL. Corrupt or expired
// entries are removed from both tiers.
func (c *Cache) decode(ctx context.Context, key string, raw []byte) (Entry, bool) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("dropping corrupt cache entry")
		c.evict(ctx, key)
		return Entry{}, false
	}
	if c.age(entry.Timestamp) >= c.ttls.For(key) {
		c.evict(ctx, key)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) evict(ctx context.Context, key string) {
	if err := c.Remove(ctx, key); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("failed to remove cache entry")
	}
}

func (c *Cache) age(timestamp int64) time.Duration {
	return c.now().Sub(time.UnixMilli(timestamp))
}
