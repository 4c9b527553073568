package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const cacheKeyPrefix = "catalog:"

// ResponseCache stores raw catalog responses in badger with a TTL. It
// satisfies googlebooks.Cache. Failures are logged and reported as misses.
type ResponseCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOptions configures a ResponseCache.
type CacheOptions struct {
	Path     string
	TTL      time.Duration
	InMemory bool // ignore Path and keep everything in memory
	Logger   *slog.Logger
}

// OpenResponseCache opens (or creates) the cache database.
func OpenResponseCache(opts CacheOptions) (*ResponseCache, error) {
	if opts.TTL <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil            // Disable Badger's internal logging
	bopts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("response cache opened", "path", opts.Path, "ttl", opts.TTL, "in_memory", opts.InMemory)

	return &ResponseCache{db: db, ttl: opts.TTL, logger: logger}, nil
}

// Get returns a cached body.
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool) {
	var body []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("response cache read failed", "key", key, "error", err)
		return nil, false
	}
	return body, true
}

// Set stores body under key until the TTL elapses.
func (c *ResponseCache) Set(_ context.Context, key string, body []byte) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(cacheKeyPrefix+key), body).WithTTL(c.ttl))
	})
	if err != nil {
		c.logger.Warn("response cache write failed", "key", key, "error", err)
	}
}

// RunGC reclaims value log space until nothing is left to collect or ctx is done.
func (c *ResponseCache) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if err := c.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// Close flushes and closes the cache database.
func (c *ResponseCache) Close() error {
	c.logger.Info("closing response cache")
	return c.db.Close()
}
