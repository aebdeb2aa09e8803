// Package database provides the optional Redis-backed fan-out for JSON
// view updates: a pub/sub notification plus a short-lived read-through
// cache of the last-serialized blob. Both are advisory — the on-disk JSON
// file remains the sole source of truth (see internal/jsonview).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tss-groundstation/stationd/internal/config"
)

// cacheTTL bounds how long a cached view blob is trusted before a console
// must re-read the file.
const cacheTTL = 5 * time.Second

// ViewNotifier wraps a Redis client and implements jsonview.Notifier. A
// nil *ViewNotifier is valid and behaves as a no-op, so callers can
// construct one unconditionally and only skip it when Redis is
// unreachable.
type ViewNotifier struct {
	client *redis.Client
	ctx    context.Context
}

// NewViewNotifier dials Redis and verifies connectivity with a single
// Ping. Callers should treat a returned error as "Redis disabled, proceed
// without it" rather than a fatal startup condition — the view fan-out is
// never load-bearing.
func NewViewNotifier(cfg config.RedisConfig) (*ViewNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MaxRetries:   2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	return &ViewNotifier{client: rdb, ctx: ctx}, nil
}

// Close releases the underlying connection pool.
func (n *ViewNotifier) Close() error {
	if n == nil {
		return nil
	}
	return n.client.Close()
}

// NotifyUpdated publishes "view:updated:<file>" and caches the freshly
// written blob, per jsonview.Notifier. Errors are logged and swallowed —
// a down Redis must never block or fail a tick.
func (n *ViewNotifier) NotifyUpdated(file string, blob []byte) {
	if n == nil {
		return
	}
	channel := "view:updated:" + file
	if err := n.client.Publish(n.ctx, channel, string(blob)).Err(); err != nil {
		fmt.Printf("Warning: redis publish failed for %s: %v\n", file, err)
	}
	if err := n.client.Set(n.ctx, "view:cache:"+file, blob, cacheTTL).Err(); err != nil {
		fmt.Printf("Warning: redis cache write failed for %s: %v\n", file, err)
	}
}

// CachedView returns a previously cached blob for file, if one is still
// within its TTL. Consumers fall back to reading the file directly on a
// cache miss.
func (n *ViewNotifier) CachedView(file string) ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	val, err := n.client.Get(n.ctx, "view:cache:"+file).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Subscribe subscribes to a view-update channel for the given file, for
// consoles that want push updates instead of polling the JSON file.
func (n *ViewNotifier) Subscribe(file string) *redis.PubSub {
	if n == nil {
		return nil
	}
	return n.client.Subscribe(n.ctx, "view:updated:"+file)
}
