package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/minjae-lim/daily-quotes/internal/ports"
)

// dateMappingKey holds the date→quote-id mapping document.
const dateMappingKey = "quote_date_mapping"

// DateMapping stores calendar-date → quote-id bindings on top of a
// best-effort key/value store.
//
// Bindings are write-once: once a date has a quote ID, it is never
// overwritten. This is what makes a date show the same quote forever, even if
// a later fetch for that date would yield different content. Store failures
// degrade silently to "absent" or "no persisted effect".
type DateMapping struct {
	store  ports.KeyValueStore
	logger *slog.Logger

	// mu guards the read-modify-write cycle on the mapping document.
	mu sync.Mutex
}

// NewDateMapping creates a mapping on top of the given store.
// Panics if store is nil. Defaults logger to slog.Default() if nil.
func NewDateMapping(store ports.KeyValueStore, logger *slog.Logger) *DateMapping {
	if store == nil {
		panic("DateMapping: store is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DateMapping{
		store:  store,
		logger: logger.With(slog.String("component", "app.DateMapping")),
	}
}

// QuoteID returns the quote ID bound to the date, or false when unbound.
func (m *DateMapping) QuoteID(ctx context.Context, date string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.load(ctx)[date]

	return id, ok
}

// SetQuoteID binds a quote ID to a date. No-op if the date is already bound.
func (m *DateMapping) SetQuoteID(ctx context.Context, date, quoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mappings := m.load(ctx)
	if _, exists := mappings[date]; exists {
		return
	}

	mappings[date] = quoteID
	m.save(ctx, mappings)
}

// Len returns the number of bound dates.
func (m *DateMapping) Len(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.load(ctx))
}

// load reads the mapping document, returning an empty map on any failure.
// Callers must hold mu.
func (m *DateMapping) load(ctx context.Context) map[string]string {
	raw, err := m.store.Get(ctx, dateMappingKey)
	if err != nil {
		return map[string]string{}
	}

	var mappings map[string]string
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return map[string]string{}
	}

	return mappings
}

// save persists the mapping document, best-effort. Callers must hold mu.
func (m *DateMapping) save(ctx context.Context, mappings map[string]string) {
	raw, err := json.Marshal(mappings)
	if err != nil {
		return
	}

	if err := m.store.Set(ctx, dateMappingKey, string(raw)); err != nil {
		m.logger.Warn("date mapping write failed", slog.Any("error", err))
	}
}
