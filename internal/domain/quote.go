// Package domain contains core business entities and rules.
package domain

import "time"

// Quote represents a single daily quote as shown to the user.
// This is a domain entity - it has no knowledge of external systems.
type Quote struct {
	// Message is the text of the quote.
	Message string

	// Author is who said or wrote the quote.
	Author string

	// AuthorProfile is a short description of the author (e.g. "전통 지혜").
	AuthorProfile string

	// ID is the stored-quote identifier. It is distinct from the calendar
	// date: the date→quote binding is indirect, through the date mapping.
	ID string

	// Date is the calendar date (YYYY-MM-DD) this quote is bound to.
	// Attached after resolution; not part of provider identity.
	Date string

	// Fallback marks a quote taken from the deterministic catalog rather
	// than a remote fetch. The marker travels with the payload: a fallback
	// that repopulated an evicted cache entry keeps a non-fallback ID, so
	// the ID shape alone cannot be trusted.
	Fallback bool
}

// WithDate returns a copy of the quote with the given date attached.
func (q Quote) WithDate(date string) Quote {
	q.Date = date
	return q
}

// HistoryRecord is one durable history entry, keyed uniquely by date.
type HistoryRecord struct {
	Date          string
	QuoteID       string
	Message       string
	Author        string
	AuthorProfile string
	APISource     string
	CreatedAt     time.Time
}

// Quote converts the history record back to the quote it stores.
func (r HistoryRecord) Quote() Quote {
	return Quote{
		Message:       r.Message,
		Author:        r.Author,
		AuthorProfile: r.AuthorProfile,
		ID:            r.QuoteID,
		Date:          r.Date,
	}
}

// CacheInfo describes the quote cache contents.
//
// Invariant: Entries is exactly the set of quote IDs present in the cache,
// in insertion order, and Size == len(Entries).
type CacheInfo struct {
	Size        int      `json:"size"`
	LastCleared int64    `json:"lastCleared"`
	Entries     []string `json:"entries"`
}
