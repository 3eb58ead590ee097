// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/minjae-lim/daily-quotes/internal/domain"
	"github.com/minjae-lim/daily-quotes/internal/ports"
)

const (
	// cacheKeyPrefix namespaces quote payload keys in the key/value store.
	cacheKeyPrefix = "quote_cache_"

	// cacheMetadataKey holds the cache metadata document.
	cacheMetadataKey = "quote_cache_metadata"
)

// cachedQuote is the persisted payload shape. The calendar date is attached
// by the resolver after lookup and is deliberately not part of the payload.
type cachedQuote struct {
	Message       string `json:"message"`
	Author        string `json:"author"`
	AuthorProfile string `json:"authorProfile"`
	Fallback      bool   `json:"fallback,omitempty"`
}

// QuoteCache stores quote payloads keyed by opaque quote ID on top of a
// best-effort key/value store, and tracks metadata (entry list, size, last
// cleared time) under a separate key.
//
// Every operation degrades silently: a failed read is a miss, a failed write
// leaves the cache unchanged. The cache must never block quote delivery.
type QuoteCache struct {
	store  ports.KeyValueStore
	logger *slog.Logger

	// mu guards the read-modify-write cycle on the metadata document, which
	// concurrent resolutions for different dates would otherwise race on.
	mu sync.Mutex
}

// NewQuoteCache creates a cache on top of the given store.
// Panics if store is nil. Defaults logger to slog.Default() if nil.
func NewQuoteCache(store ports.KeyValueStore, logger *slog.Logger) *QuoteCache {
	if store == nil {
		panic("QuoteCache: store is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteCache{
		store:  store,
		logger: logger.With(slog.String("component", "app.QuoteCache")),
	}
}

// Get returns the cached quote for the ID, or false when absent.
// Store failures and corrupt payloads are both treated as absent.
func (c *QuoteCache) Get(ctx context.Context, quoteID string) (domain.Quote, bool) {
	raw, err := c.store.Get(ctx, cacheKeyPrefix+quoteID)
	if err != nil {
		return domain.Quote{}, false
	}

	var payload cachedQuote
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Warn("discarding corrupt cache entry",
			slog.String("quote_id", quoteID),
			slog.Any("error", err),
		)

		return domain.Quote{}, false
	}

	return domain.Quote{
		Message:       payload.Message,
		Author:        payload.Author,
		AuthorProfile: payload.AuthorProfile,
		ID:            quoteID,
		Fallback:      payload.Fallback,
	}, true
}

// Set stores a quote under the given ID and records the ID in the metadata
// entry list if it is new. Write failures are swallowed.
func (c *QuoteCache) Set(ctx context.Context, quoteID string, quote domain.Quote) {
	payload, err := json.Marshal(cachedQuote{
		Message:       quote.Message,
		Author:        quote.Author,
		AuthorProfile: quote.AuthorProfile,
		Fallback:      quote.Fallback,
	})
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, cacheKeyPrefix+quoteID, string(payload)); err != nil {
		c.logger.Warn("cache write failed",
			slog.String("quote_id", quoteID),
			slog.Any("error", err),
		)

		return
	}

	meta := c.metadata(ctx)
	for _, id := range meta.Entries {
		if id == quoteID {
			return
		}
	}

	meta.Entries = append(meta.Entries, quoteID)
	meta.Size++
	c.setMetadata(ctx, meta)
}

// Clear removes every entry listed in the metadata, then resets the metadata
// with lastCleared set to now. Entries that fail to remove are skipped.
func (c *QuoteCache) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := c.metadata(ctx)
	for _, id := range meta.Entries {
		if err := c.store.Remove(ctx, cacheKeyPrefix+id); err != nil {
			c.logger.Warn("failed to remove cache entry",
				slog.String("quote_id", id),
				slog.Any("error", err),
			)
		}
	}

	c.setMetadata(ctx, domain.CacheInfo{
		Size:        0,
		LastCleared: time.Now().UnixMilli(),
		Entries:     []string{},
	})
}

// Info returns a snapshot of the cache metadata.
func (c *QuoteCache) Info(ctx context.Context) domain.CacheInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.metadata(ctx)
}

// metadata loads the metadata document, falling back to an empty document on
// any failure. Callers must hold mu.
func (c *QuoteCache) metadata(ctx context.Context) domain.CacheInfo {
	empty := domain.CacheInfo{
		Size:        0,
		LastCleared: time.Now().UnixMilli(),
		Entries:     []string{},
	}

	raw, err := c.store.Get(ctx, cacheMetadataKey)
	if err != nil {
		return empty
	}

	var meta domain.CacheInfo
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return empty
	}

	if meta.Entries == nil {
		meta.Entries = []string{}
	}

	return meta
}

// setMetadata persists the metadata document, best-effort.
// Callers must hold mu.
func (c *QuoteCache) setMetadata(ctx context.Context, meta domain.CacheInfo) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}

	if err := c.store.Set(ctx, cacheMetadataKey, string(raw)); err != nil {
		c.logger.Warn("cache metadata write failed", slog.Any("error", err))
	}
}
