package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory KeyValueStore with switchable failure modes.
type memStore struct {
	mu         sync.Mutex
	data       map[string]string
	failGet    bool
	failSet    bool
	failRemove bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGet {
		return "", errors.New("store read failed")
	}

	v, ok := s.data[key]
	if !ok {
		return "", domain.NewNotFoundError("key", key)
	}

	return v, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSet {
		return errors.New("store write failed")
	}

	s.data[key] = value

	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRemove {
		return errors.New("store remove failed")
	}

	delete(s.data, key)

	return nil
}

// fakeFetcher scripts the upstream quote provider.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	quote *domain.Quote
	err   error

	// entered is closed-signaled once per call when non-nil, and release
	// blocks the fetch until it is signaled, for de-duplication tests.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchQuote(ctx context.Context) (*domain.Quote, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, domain.NewFetchError(domain.FetchErrNetwork, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	q := *f.quote

	return &q, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// fakeHistory is an in-memory HistoryStore.
type fakeHistory struct {
	mu      sync.Mutex
	records map[string]domain.HistoryRecord
	saves   int
	getErr  error
	saveErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[string]domain.HistoryRecord)}
}

func (h *fakeHistory) GetByDate(_ context.Context, date string) (*domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.getErr != nil {
		return nil, h.getErr
	}

	rec, ok := h.records[date]
	if !ok {
		return nil, domain.NewNotFoundError("history record", date)
	}

	return &rec, nil
}

func (h *fakeHistory) Save(_ context.Context, rec *domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.saves++
	if h.saveErr != nil {
		return h.saveErr
	}

	h.records[rec.Date] = *rec

	return nil
}

func (h *fakeHistory) saveCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.saves
}

func (h *fakeHistory) GetRange(_ context.Context, start, end string, limit int) ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []domain.HistoryRecord
	for date, rec := range h.records {
		if date >= start && date <= end {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (h *fakeHistory) GetRecent(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	return h.GetRange(context.Background(), "0000-00-00", "9999-99-99", limit)
}

// newTestResolver wires a resolver over fresh fakes.
func newTestResolver(t *testing.T, fetcher *fakeFetcher, history *fakeHistory) (*Resolver, *memStore) {
	t.Helper()

	store := newMemStore()
	cache := NewQuoteCache(store, discardLogger())
	mapping := NewDateMapping(store, discardLogger())

	cfg := ResolverConfig{
		Fetcher: fetcher,
		Cache:   cache,
		Mapping: mapping,
		Logger:  discardLogger(),
	}
	if history != nil {
		cfg.History = history
	}

	return NewResolver(cfg), store
}
