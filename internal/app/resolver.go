package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/minjae-lim/daily-quotes/internal/domain"
	"github.com/minjae-lim/daily-quotes/internal/ports"
)

const (
	// DefaultFetchTimeout bounds a single remote quote fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultPrefetchLimit bounds concurrent resolutions during prefetch.
	DefaultPrefetchLimit = 4

	// fallbackIDPrefix marks quote IDs minted for deterministic fallbacks.
	fallbackIDPrefix = "fallback-"

	// historyAPISource is recorded on history rows produced by remote fetches.
	historyAPISource = "korean-advice-open-api"
)

// IsFallbackID reports whether a quote ID was minted for a deterministic
// fallback rather than a remote fetch.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, fallbackIDPrefix)
}

// Resolver answers "which quote belongs to this date" with a guarantee of
// historical consistency: a date resolves to the same quote on every call,
// across sessions, cache evictions and concurrent requests.
//
// Resolution tiers, short-circuiting on first success:
//  1. durable history store (when configured) - already authoritative
//  2. local date mapping + quote cache
//  3. remote fetch, persisted for future consistency
//  4. deterministic fallback from the fixed catalog - cannot fail
type Resolver struct {
	fetcher ports.QuoteFetcher
	cache   *QuoteCache
	mapping *DateMapping
	history ports.HistoryStore // nil when unconfigured
	catalog domain.FallbackCatalog
	logger  *slog.Logger

	fetchTimeout  time.Duration
	prefetchLimit int

	// group de-duplicates concurrent resolutions per date: waiters attach to
	// the in-flight call and the entry is dropped once it settles.
	group singleflight.Group

	now func() time.Time
}

// ResolverConfig contains the resolver's collaborators, constructed once at
// startup and passed explicitly.
type ResolverConfig struct {
	// Fetcher retrieves quotes from the upstream provider. Required.
	Fetcher ports.QuoteFetcher

	// Cache stores quote payloads by ID. Required.
	Cache *QuoteCache

	// Mapping stores the write-once date→quote-id bindings. Required.
	Mapping *DateMapping

	// History is the optional durable history store. May be nil.
	History ports.HistoryStore

	// Catalog is the fallback catalog. Defaults to the built-in one.
	Catalog domain.FallbackCatalog

	// FetchTimeout bounds a single remote fetch. Defaults to 10s.
	FetchTimeout time.Duration

	// PrefetchLimit bounds concurrent prefetch resolutions. Defaults to 4.
	PrefetchLimit int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// NewResolver creates a resolver with the provided dependencies.
// Panics if Fetcher, Cache or Mapping is nil.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Fetcher == nil {
		panic("Resolver: Fetcher is required")
	}

	if cfg.Cache == nil {
		panic("Resolver: Cache is required")
	}

	if cfg.Mapping == nil {
		panic("Resolver: Mapping is required")
	}

	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = domain.DefaultFallbackCatalog()
	}

	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	prefetchLimit := cfg.PrefetchLimit
	if prefetchLimit <= 0 {
		prefetchLimit = DefaultPrefetchLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		fetcher:       cfg.Fetcher,
		cache:         cfg.Cache,
		mapping:       cfg.Mapping,
		history:       cfg.History,
		catalog:       catalog,
		logger:        logger.With(slog.String("component", "app.Resolver")),
		fetchTimeout:  fetchTimeout,
		prefetchLimit: prefetchLimit,
		now:           time.Now,
	}
}

// GetQuoteForDate resolves the quote for a calendar date.
//
// Concurrent calls for the same date share a single resolution; each caller
// receives the same quote. The method always returns a quote: remote failures
// degrade to the deterministic fallback and are never surfaced here.
func (r *Resolver) GetQuoteForDate(ctx context.Context, date string) (*domain.Quote, error) {
	// The shared resolution must not die with whichever waiter happened to
	// arrive first, so it runs detached from the caller's cancellation.
	// Context values (request id, logger) still flow through.
	resolveCtx := context.WithoutCancel(ctx)

	v, err, shared := r.group.Do(date, func() (any, error) {
		return r.resolve(resolveCtx, date)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		r.logger.DebugContext(ctx, "joined in-flight resolution", slog.String("date", date))
	}

	quote, ok := v.(*domain.Quote)
	if !ok {
		return nil, fmt.Errorf("unexpected resolution result type %T", v)
	}

	return quote, nil
}

// resolve walks the tiers for one date. Runs at most once per date at a time.
func (r *Resolver) resolve(ctx context.Context, date string) (*domain.Quote, error) {
	logger := r.logger.With(slog.String("date", date))

	// Tier 1: durable history is authoritative; nothing to write back.
	if r.history != nil {
		rec, err := r.history.GetByDate(ctx, date)
		switch {
		case err == nil:
			logger.DebugContext(ctx, "resolved from history store")
			quote := rec.Quote()

			return &quote, nil
		case !domain.IsNotFound(err):
			logger.WarnContext(ctx, "history lookup failed", slog.Any("error", err))
		}
	}

	// Tier 2: local consistency check.
	boundID, bound := r.mapping.QuoteID(ctx, date)
	if bound {
		if cached, ok := r.cache.Get(ctx, boundID); ok {
			logger.DebugContext(ctx, "resolved from cache", slog.String("quote_id", boundID))
			quote := cached.WithDate(date)

			return &quote, nil
		}
	}

	// Tier 3: remote fetch.
	quote, err := r.fetchRemote(ctx, date)
	if err == nil {
		if bound {
			// The mapping survived but the cached payload was evicted.
			// Repopulate under the original ID so the binding stays intact.
			quote.ID = boundID
			r.cache.Set(ctx, boundID, quote)
		} else {
			r.cache.Set(ctx, quote.ID, quote)
			r.mapping.SetQuoteID(ctx, date, quote.ID)
			r.saveHistory(ctx, date, quote)
		}

		return &quote, nil
	}

	logger.WarnContext(ctx, "remote fetch failed, using fallback",
		slog.String("error_type", string(domain.ClassifyFetchError(err))),
		slog.Any("error", err),
	)

	// Tier 4: deterministic fallback. Never persisted to history: only a
	// remote success may become the permanent record for a date.
	fallback := r.catalog.Select(date)
	fallback.Fallback = true

	if bound {
		r.cache.Set(ctx, boundID, fallback)
		fallback.ID = boundID
	} else {
		fallback.ID = fallbackIDPrefix + date
		r.cache.Set(ctx, fallback.ID, fallback)
		r.mapping.SetQuoteID(ctx, date, fallback.ID)
	}

	return &fallback, nil
}

// FetchFresh forces a remote fetch for a date, bypassing the cached tiers.
//
// Unlike GetQuoteForDate it surfaces the classified fetch error instead of
// falling back, so callers can drive a retry policy and decide afterwards
// whether to accept the resolver's fallback.
//
// A date that already has an authoritative record is immutable: the fetch
// still happens so the caller gets a fresh quote to show, but nothing is
// persisted and the recorded quote keeps owning the date. Only a genuinely
// unresolved date is bound and recorded by a forced fetch.
func (r *Resolver) FetchFresh(ctx context.Context, date string) (*domain.Quote, error) {
	resolved := r.isResolved(ctx, date)

	quote, err := r.fetchRemote(ctx, date)
	if err != nil {
		return nil, err
	}

	if !resolved {
		r.cache.Set(ctx, quote.ID, quote)
		r.mapping.SetQuoteID(ctx, date, quote.ID)
		r.saveHistory(ctx, date, quote)
	}

	return &quote, nil
}

// isResolved reports whether a date already owns an authoritative quote,
// either as a durable history record or as a date binding.
func (r *Resolver) isResolved(ctx context.Context, date string) bool {
	if r.history != nil {
		if _, err := r.history.GetByDate(ctx, date); err == nil {
			return true
		}
	}

	_, bound := r.mapping.QuoteID(ctx, date)

	return bound
}

// fetchRemote fetches one quote under the fetch timeout and stamps it with
// the date and a freshly minted ID. It does not persist anything.
func (r *Resolver) fetchRemote(ctx context.Context, date string) (domain.Quote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	fetched, err := r.fetcher.FetchQuote(fetchCtx)
	if err != nil {
		return domain.Quote{}, err
	}

	quote := fetched.WithDate(date)
	quote.ID = fmt.Sprintf("%s-%d", date, r.now().UnixMilli())

	return quote, nil
}

// saveHistory upserts the resolved quote into the history store, best-effort.
func (r *Resolver) saveHistory(ctx context.Context, date string, quote domain.Quote) {
	if r.history == nil {
		return
	}

	err := r.history.Save(ctx, &domain.HistoryRecord{
		Date:          date,
		QuoteID:       quote.ID,
		Message:       quote.Message,
		Author:        quote.Author,
		AuthorProfile: quote.AuthorProfile,
		APISource:     historyAPISource,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "history save failed",
			slog.String("date", date),
			slog.Any("error", err),
		)
	}
}

// Prefetch resolves a set of dates concurrently as a pure optimization.
// It waits until every resolution has settled and discards all errors.
func (r *Resolver) Prefetch(ctx context.Context, dates []string) {
	if len(dates) == 0 {
		return
	}

	fns := make([]func(context.Context) (*domain.Quote, error), len(dates))
	for i, date := range dates {
		fns[i] = func(ctx context.Context) (*domain.Quote, error) {
			return r.GetQuoteForDate(ctx, date)
		}
	}

	results := ParallelPartialLimit(ctx, r.prefetchLimit, fns...)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	r.logger.DebugContext(ctx, "prefetch settled",
		slog.Int("requested", len(dates)),
		slog.Int("failed", failed),
	)
}

// ClearCache drops every cached quote payload and resets the cache metadata.
// Date bindings are untouched; evicted entries are repopulated
// deterministically on the next resolution if the remote fetch fails.
func (r *Resolver) ClearCache(ctx context.Context) {
	r.cache.Clear(ctx)
}

// CacheInfo returns a snapshot of the cache metadata.
func (r *Resolver) CacheInfo(ctx context.Context) domain.CacheInfo {
	return r.cache.Info(ctx)
}
