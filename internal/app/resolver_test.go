package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

func TestNewResolver_PanicsWithoutDependencies(t *testing.T) {
	store := newMemStore()
	cache := NewQuoteCache(store, discardLogger())
	mapping := NewDateMapping(store, discardLogger())

	assert.Panics(t, func() {
		NewResolver(ResolverConfig{Cache: cache, Mapping: mapping})
	})
	assert.Panics(t, func() {
		NewResolver(ResolverConfig{Fetcher: &fakeFetcher{}, Mapping: mapping})
	})
	assert.Panics(t, func() {
		NewResolver(ResolverConfig{Fetcher: &fakeFetcher{}, Cache: cache})
	})
}

func TestResolver_FirstResolution(t *testing.T) {
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "A", Author: "B"}}
	resolver, _ := newTestResolver(t, fetcher, nil)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, "A", quote.Message)
	assert.Equal(t, "B", quote.Author)
	assert.Empty(t, quote.AuthorProfile)
	assert.Equal(t, "2024-01-01", quote.Date)
	assert.True(t, strings.HasPrefix(quote.ID, "2024-01-01-"))

	// One cache entry, one date binding.
	info := resolver.CacheInfo(context.Background())
	assert.Equal(t, 1, info.Size)
	require.Len(t, info.Entries, 1)
	assert.Equal(t, quote.ID, info.Entries[0])
}

func TestResolver_RepeatResolutionHitsCache(t *testing.T) {
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "A", Author: "B"}}
	resolver, _ := newTestResolver(t, fetcher, nil)

	first, err := resolver.GetQuoteForDate(context.Background(), "2024-01-01")
	require.NoError(t, err)

	second, err := resolver.GetQuoteForDate(context.Background(), "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, first.Author, second.Author)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, fetcher.callCount(), "repeat resolution must not refetch")
}

func TestResolver_ConcurrentCallsDeduplicated(t *testing.T) {
	fetcher := &fakeFetcher{
		quote:   &domain.Quote{Message: "A", Author: "B"},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	resolver, _ := newTestResolver(t, fetcher, nil)

	results := make([]*domain.Quote, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Go(func() {
			q, err := resolver.GetQuoteForDate(context.Background(), "2024-03-03")
			assert.NoError(t, err)
			results[i] = q
		})
	}

	// Wait for the single fetch to start, give the second caller a moment to
	// attach to the in-flight resolution, then let the fetch finish.
	<-fetcher.entered
	time.Sleep(20 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, 1, fetcher.callCount(), "concurrent callers must share one fetch")
	assert.Equal(t, results[0].ID, results[1].ID)
	assert.Equal(t, results[0].Message, results[1].Message)
}

func TestResolver_RemoteDownNoMapping_FallsBack(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.NewFetchStatusError(domain.FetchErrAPIUnavailable, 503)}
	resolver, store := newTestResolver(t, fetcher, nil)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2030-06-15")
	require.NoError(t, err)

	want := domain.DefaultFallbackCatalog().Select("2030-06-15")
	assert.Equal(t, want.Message, quote.Message)
	assert.Equal(t, want.Author, quote.Author)
	assert.Equal(t, "2030-06-15", quote.Date)
	assert.Equal(t, "fallback-2030-06-15", quote.ID)

	// The fallback binding persists: resolving again yields the same quote
	// without touching the remote source again.
	again, err := resolver.GetQuoteForDate(context.Background(), "2030-06-15")
	require.NoError(t, err)
	assert.Equal(t, quote.Message, again.Message)
	assert.Equal(t, 1, fetcher.callCount())

	mapping := NewDateMapping(store, discardLogger())
	id, ok := mapping.QuoteID(context.Background(), "2030-06-15")
	assert.True(t, ok)
	assert.Equal(t, "fallback-2030-06-15", id)
}

func TestResolver_EvictedCacheKeepsOriginalBinding(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.NewFetchError(domain.FetchErrNetwork, context.DeadlineExceeded)}
	resolver, store := newTestResolver(t, fetcher, nil)

	// Simulate a surviving mapping whose cached payload was evicted.
	mapping := NewDateMapping(store, discardLogger())
	mapping.SetQuoteID(context.Background(), "2024-05-05", "2024-05-05-1714000000000")
	require.Equal(t, 1, mapping.Len(context.Background()))

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-05-05")
	require.NoError(t, err)

	// The fallback is stored under the original ID; no new binding appears.
	assert.Equal(t, "2024-05-05-1714000000000", quote.ID)
	assert.Equal(t, "2024-05-05", quote.Date)
	assert.Equal(t, 1, mapping.Len(context.Background()))

	cache := NewQuoteCache(store, discardLogger())
	cached, ok := cache.Get(context.Background(), "2024-05-05-1714000000000")
	require.True(t, ok)
	assert.Equal(t, quote.Message, cached.Message)
}

func TestResolver_HistoryTierIsAuthoritative(t *testing.T) {
	history := newFakeHistory()
	history.records["2024-02-02"] = domain.HistoryRecord{
		Date:    "2024-02-02",
		QuoteID: "2024-02-02-123",
		Message: "recorded",
		Author:  "historian",
	}

	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "fresh", Author: "api"}}
	resolver, _ := newTestResolver(t, fetcher, history)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-02-02")
	require.NoError(t, err)

	assert.Equal(t, "recorded", quote.Message)
	assert.Equal(t, "2024-02-02", quote.Date)
	assert.Equal(t, 0, fetcher.callCount(), "history hit must not reach the remote source")

	// Authoritative hit: nothing written back.
	assert.Equal(t, 0, resolver.CacheInfo(context.Background()).Size)
}

func TestResolver_HistoryErrorFallsThrough(t *testing.T) {
	history := newFakeHistory()
	history.getErr = domain.NewUnavailableError("history-store", "connection refused")

	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "fresh", Author: "api"}}
	resolver, _ := newTestResolver(t, fetcher, history)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-02-03")
	require.NoError(t, err)
	assert.Equal(t, "fresh", quote.Message)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestResolver_SuccessfulFetchRecordsHistory(t *testing.T) {
	history := newFakeHistory()
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "A", Author: "B", AuthorProfile: "C"}}
	resolver, _ := newTestResolver(t, fetcher, history)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-04-04")
	require.NoError(t, err)

	rec, err := history.GetByDate(context.Background(), "2024-04-04")
	require.NoError(t, err)
	assert.Equal(t, quote.ID, rec.QuoteID)
	assert.Equal(t, "A", rec.Message)
	assert.Equal(t, "korean-advice-open-api", rec.APISource)
}

func TestResolver_FetchFreshSurfacesClassifiedError(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.NewFetchStatusError(domain.FetchErrRateLimit, 429)}
	resolver, _ := newTestResolver(t, fetcher, nil)

	quote, err := resolver.FetchFresh(context.Background(), "2024-07-07")
	require.Error(t, err)
	assert.Nil(t, quote)
	assert.Equal(t, domain.FetchErrRateLimit, domain.ClassifyFetchError(err))
}

func TestResolver_FetchFreshHonorsWriteOnceBinding(t *testing.T) {
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "first", Author: "a"}}
	resolver, store := newTestResolver(t, fetcher, nil)

	first, err := resolver.GetQuoteForDate(context.Background(), "2024-08-08")
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.quote = &domain.Quote{Message: "second", Author: "b"}
	fetcher.mu.Unlock()

	_, err = resolver.FetchFresh(context.Background(), "2024-08-08")
	require.NoError(t, err)

	// The original binding survives the fresh fetch.
	mapping := NewDateMapping(store, discardLogger())
	id, ok := mapping.QuoteID(context.Background(), "2024-08-08")
	require.True(t, ok)
	assert.Equal(t, first.ID, id)

	again, err := resolver.GetQuoteForDate(context.Background(), "2024-08-08")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Message)
}

func TestResolver_FetchFreshLeavesRecordedDateIntact(t *testing.T) {
	history := newFakeHistory()
	history.records["2024-01-01"] = domain.HistoryRecord{
		Date:    "2024-01-01",
		QuoteID: "2024-01-01-123",
		Message: "recorded",
		Author:  "historian",
	}

	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "fresh", Author: "api"}}
	resolver, _ := newTestResolver(t, fetcher, history)

	// The forced fetch happens and its result is returned to the caller.
	quote, err := resolver.FetchFresh(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "fresh", quote.Message)
	assert.Equal(t, 1, fetcher.callCount())

	// But nothing was persisted: the recorded quote still owns the date.
	assert.Equal(t, 0, history.saveCount())
	rec, err := history.GetByDate(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "recorded", rec.Message)

	assert.Equal(t, 0, resolver.CacheInfo(context.Background()).Size)

	resolved, err := resolver.GetQuoteForDate(context.Background(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "recorded", resolved.Message)
}

func TestResolver_FetchFreshRecordsUnresolvedDate(t *testing.T) {
	history := newFakeHistory()
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "fresh", Author: "api"}}
	resolver, store := newTestResolver(t, fetcher, history)

	quote, err := resolver.FetchFresh(context.Background(), "2024-01-02")
	require.NoError(t, err)

	// A genuinely unresolved date is bound and recorded by the forced fetch.
	rec, err := history.GetByDate(context.Background(), "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, quote.ID, rec.QuoteID)
	assert.Equal(t, "fresh", rec.Message)

	mapping := NewDateMapping(store, discardLogger())
	id, ok := mapping.QuoteID(context.Background(), "2024-01-02")
	require.True(t, ok)
	assert.Equal(t, quote.ID, id)
}

func TestResolver_FallbackNeverRecordedInHistory(t *testing.T) {
	history := newFakeHistory()
	fetcher := &fakeFetcher{err: domain.NewFetchStatusError(domain.FetchErrAPIUnavailable, 503)}
	resolver, _ := newTestResolver(t, fetcher, history)

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-06-06")
	require.NoError(t, err)
	assert.True(t, quote.Fallback)

	// Only a remote success may become the permanent record for a date.
	assert.Equal(t, 0, history.saveCount())
	_, err = history.GetByDate(context.Background(), "2024-06-06")
	assert.True(t, domain.IsNotFound(err))
}

func TestResolver_RepopulatedFallbackStaysMarked(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.NewFetchError(domain.FetchErrNetwork, context.DeadlineExceeded)}
	resolver, store := newTestResolver(t, fetcher, nil)

	// Surviving binding, evicted payload, remote down: the fallback fills the
	// gap under the original non-fallback ID.
	mapping := NewDateMapping(store, discardLogger())
	mapping.SetQuoteID(context.Background(), "2024-05-06", "2024-05-06-1714100000000")

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-05-06")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-06-1714100000000", quote.ID)
	assert.True(t, quote.Fallback, "the marker must not depend on the ID shape")

	// The marker survives the round trip through the cache payload.
	cache := NewQuoteCache(store, discardLogger())
	cached, ok := cache.Get(context.Background(), "2024-05-06-1714100000000")
	require.True(t, ok)
	assert.True(t, cached.Fallback)
}

func TestResolver_RemoteRepopulationKeepsBoundID(t *testing.T) {
	history := newFakeHistory()
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "refetched", Author: "api"}}
	resolver, store := newTestResolver(t, fetcher, history)

	mapping := NewDateMapping(store, discardLogger())
	mapping.SetQuoteID(context.Background(), "2024-05-07", "2024-05-07-1714200000000")

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-05-07")
	require.NoError(t, err)

	// The refetched payload is stored under the original ID and does not
	// become a history record: the date was already bound.
	assert.Equal(t, "2024-05-07-1714200000000", quote.ID)
	assert.False(t, quote.Fallback)
	assert.Equal(t, 0, history.saveCount())

	again, err := resolver.GetQuoteForDate(context.Background(), "2024-05-07")
	require.NoError(t, err)
	assert.Equal(t, "refetched", again.Message)
	assert.Equal(t, 1, fetcher.callCount(), "repopulated entry must serve from cache")
}

func TestResolver_Prefetch(t *testing.T) {
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "A", Author: "B"}}
	resolver, _ := newTestResolver(t, fetcher, nil)

	resolver.Prefetch(context.Background(), []string{"2024-01-01", "2024-01-02", "2024-01-03"})

	// All three dates resolved and cached.
	assert.Equal(t, 3, resolver.CacheInfo(context.Background()).Size)
	assert.Equal(t, 3, fetcher.callCount())

	// Prefetching again is a no-op against the cache tier.
	resolver.Prefetch(context.Background(), []string{"2024-01-01", "2024-01-02"})
	assert.Equal(t, 3, fetcher.callCount())
}

func TestResolver_PrefetchSwallowsFailures(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.NewFetchStatusError(domain.FetchErrAPIUnavailable, 502)}
	resolver, _ := newTestResolver(t, fetcher, nil)

	// Must not panic or surface errors; fallbacks get cached.
	resolver.Prefetch(context.Background(), []string{"2024-01-01", "2024-01-02"})
	assert.Equal(t, 2, resolver.CacheInfo(context.Background()).Size)
}

func TestResolver_ClearCacheThenResolveAgain(t *testing.T) {
	fetcher := &fakeFetcher{quote: &domain.Quote{Message: "A", Author: "B"}}
	resolver, _ := newTestResolver(t, fetcher, nil)

	_, err := resolver.GetQuoteForDate(context.Background(), "2024-09-09")
	require.NoError(t, err)
	require.Equal(t, 1, resolver.CacheInfo(context.Background()).Size)

	resolver.ClearCache(context.Background())

	info := resolver.CacheInfo(context.Background())
	assert.Equal(t, 0, info.Size)
	assert.Empty(t, info.Entries)

	// Mapping survived the clear; with the remote still up the quote is
	// refetched, with it down the deterministic fallback fills the gap under
	// the original ID. Either way the date keeps its binding.
	fetcher.mu.Lock()
	fetcher.err = domain.NewFetchStatusError(domain.FetchErrAPIUnavailable, 500)
	fetcher.mu.Unlock()

	quote, err := resolver.GetQuoteForDate(context.Background(), "2024-09-09")
	require.NoError(t, err)
	assert.Equal(t, "2024-09-09", quote.Date)
	assert.True(t, strings.HasPrefix(quote.ID, "2024-09-09-"))
}
