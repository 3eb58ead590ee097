// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable, etc.)
//   - Methods represent business operations, not CRUD operations
//   - Keep interfaces small and focused (Interface Segregation Principle)
package ports

import (
	"context"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

// KeyValueStore is durable string key/value storage backing the quote cache
// and the date mapping.
//
// The contract is explicitly best-effort: any operation may fail, and callers
// are required to degrade to "absent" (reads) or "no persisted effect"
// (writes) rather than propagate the error. Losing cache or mapping data must
// never block quote delivery.
type KeyValueStore interface {
	// Get retrieves the value for a key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value under a key, overwriting any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// QuoteFetcher retrieves one quote from the upstream provider.
// Adapters implement this against the remote quote API.
type QuoteFetcher interface {
	// FetchQuote fetches a single quote.
	// The implementation must respect context deadlines and cancellation, and
	// returns a *domain.FetchError carrying the failure classification
	// (network, api_unavailable, rate_limit, invalid_response).
	FetchQuote(ctx context.Context) (*domain.Quote, error)
}

// HistoryStore is the optional durable, authoritative record of which quote
// was shown on which date. Present only when configured; the resolver treats
// it as tier one when available.
type HistoryStore interface {
	// GetByDate returns the record for an exact date.
	// Returns domain.ErrNotFound if no quote has been recorded for the date.
	GetByDate(ctx context.Context, date string) (*domain.HistoryRecord, error)

	// Save upserts the record for a date. Conflict resolution is replace;
	// upserts are idempotent per date.
	Save(ctx context.Context, rec *domain.HistoryRecord) error

	// GetRange returns records with start <= date <= end, descending by date.
	// limit <= 0 means no limit.
	GetRange(ctx context.Context, start, end string, limit int) ([]domain.HistoryRecord, error)

	// GetRecent returns the most recently created records, newest first.
	GetRecent(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}
