package statecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/infrastructure/config"
)

const (
	keyPrefix = "wink:device:status:"

	defaultTTL = 24 * time.Hour

	// writeTimeout bounds the pipeline issued from ObserveReplace, which runs
	// on the registry's write path.
	writeTimeout = 2 * time.Second

	scanCount = 100
)

// Logger is the logging surface used by the cache.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Cache writes device status documents to Redis.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger Logger
}

// Connect opens a client for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return New(rdb, cfg.TTL), nil
}

// New wraps an existing client. A non-positive ttl selects 24h.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: noopLogger{}}
}

// SetLogger sets the logger for write failures.
func (c *Cache) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Key returns the Redis key holding the status of device id.
func Key(id uint32) string {
	return keyPrefix + strconv.FormatUint(uint64(id), 10)
}

// parseKey is the inverse of Key.
func parseKey(key string) (uint32, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

func encodeStatus(d *device.Device) ([]byte, error) {
	return json.Marshal(d.StatusPayload())
}

// Put stores the status document of d.
func (c *Cache) Put(ctx context.Context, d *device.Device) error {
	b, err := encodeStatus(d)
	if err != nil {
		return fmt.Errorf("encoding status of device %d: %w", d.ID, err)
	}
	return c.rdb.Set(ctx, Key(d.ID), b, c.ttl).Err()
}

// Get returns the cached status document of device id.
func (c *Cache) Get(ctx context.Context, id uint32) ([]byte, error) {
	b, err := c.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

// Delete removes the cached status of device id.
func (c *Cache) Delete(ctx context.Context, id uint32) error {
	return c.rdb.Del(ctx, Key(id)).Err()
}

// Sync writes every device of snap and prunes keys of devices no longer in
// it. It returns the pruned ids.
func (c *Cache) Sync(ctx context.Context, snap *device.Snapshot) ([]uint32, error) {
	devs := snap.Devices()
	keep := make(map[uint32]struct{}, len(devs))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range devs {
			keep[devs[i].ID] = struct{}{}
			b, err := encodeStatus(&devs[i])
			if err != nil {
				return fmt.Errorf("encoding status of device %d: %w", devs[i].ID, err)
			}
			pipe.Set(ctx, Key(devs[i].ID), b, c.ttl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.prune(ctx, keep)
}

func (c *Cache) prune(ctx context.Context, keep map[uint32]struct{}) ([]uint32, error) {
	var removed []uint32
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		id, ok := parseKey(iter.Val())
		if !ok {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}
	return removed, iter.Err()
}

// ObserveReplace is a device.Listener writing the status of every new or
// changed device and deleting removed ones in a single pipeline.
func (c *Cache) ObserveReplace(diff device.DiffSet, snap *device.Snapshot) {
	updated := diff.Updated()
	removed := diff.Removed()
	if len(updated) == 0 && len(removed) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range updated {
			d, ok := snap.Device(id)
			if !ok {
				continue
			}
			b, err := encodeStatus(&d)
			if err != nil {
				c.logger.Warn("skipping status mirror", "device_id", id, "error", err)
				continue
			}
			pipe.Set(ctx, Key(id), b, c.ttl)
		}
		for _, id := range removed {
			pipe.Del(ctx, Key(id))
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("status mirror write failed",
			"updated", len(updated), "removed", len(removed), "error", err)
		return
	}
	c.logger.Debug("status mirror updated", "updated", len(updated), "removed", len(removed))
}

// HealthCheck pings the server.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
