// Package storage provides durable and in-memory implementations of the
// key/value and history ports.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

// migrations is the ordered schema history. Applied versions are tracked in
// the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS daily_quotes (
    date           TEXT PRIMARY KEY,
    quote_id       TEXT NOT NULL,
    message        TEXT NOT NULL,
    author         TEXT NOT NULL,
    author_profile TEXT NOT NULL DEFAULT '',
    api_source     TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_daily_quotes_created_at ON daily_quotes(created_at DESC);
`,
	},
}

// SQLiteStore is the SQLite-backed persistence layer. It implements both
// ports.KeyValueStore (kv table) and ports.HistoryStore (daily_quotes table),
// so a single database file can serve the cache, the date mapping, and the
// quote history.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory
// database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// WAL mode for better concurrency; a busy timeout so concurrent writers
	// queue instead of failing immediately.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store ready", slog.String("path", path))

	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}

		if count > 0 {
			continue
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Get retrieves the value for a key.
// Returns domain.ErrNotFound if the key does not exist.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NewNotFoundError("key", key)
	}

	if err != nil {
		return "", fmt.Errorf("get %q: %w", key, err)
	}

	return value, nil
}

// Set stores a value under a key, overwriting any existing value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv(key, value, updated_at)
        VALUES(?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            value      = excluded.value,
            updated_at = excluded.updated_at
    `, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	return nil
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}

	return nil
}

// GetByDate returns the history record for an exact date.
func (s *SQLiteStore) GetByDate(ctx context.Context, date string) (*domain.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT date, quote_id, message, author, author_profile, api_source, created_at
        FROM daily_quotes WHERE date = ?
    `, date)

	rec, err := scanHistoryRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("history record", date)
	}

	if err != nil {
		return nil, fmt.Errorf("get history %q: %w", date, err)
	}

	return rec, nil
}

// Save upserts the history record for a date. The replace semantics keep the
// operation idempotent per date.
func (s *SQLiteStore) Save(ctx context.Context, rec *domain.HistoryRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO daily_quotes(date, quote_id, message, author, author_profile, api_source, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(date) DO UPDATE SET
            quote_id       = excluded.quote_id,
            message        = excluded.message,
            author         = excluded.author,
            author_profile = excluded.author_profile,
            api_source     = excluded.api_source,
            created_at     = excluded.created_at
    `, rec.Date, rec.QuoteID, rec.Message, rec.Author, rec.AuthorProfile, rec.APISource, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("save history %q: %w", rec.Date, err)
	}

	return nil
}

// GetRange returns records with start <= date <= end, descending by date.
// limit <= 0 means no limit.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end string, limit int) ([]domain.HistoryRecord, error) {
	query := `
        SELECT date, quote_id, message, author, author_profile, api_source, created_at
        FROM daily_quotes
        WHERE date >= ? AND date <= ?
        ORDER BY date DESC
    `
	args := []any{start, end}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.queryHistory(ctx, query, args...)
}

// GetRecent returns the most recently created records, newest first.
func (s *SQLiteStore) GetRecent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 30
	}

	return s.queryHistory(ctx, `
        SELECT date, quote_id, message, author, author_profile, api_source, created_at
        FROM daily_quotes
        ORDER BY created_at DESC, date DESC
        LIMIT ?
    `, limit)
}

func (s *SQLiteStore) queryHistory(ctx context.Context, query string, args ...any) ([]domain.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []domain.HistoryRecord

	for rows.Next() {
		rec, err := scanHistoryRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		result = append(result, *rec)
	}

	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryRecord(row rowScanner) (*domain.HistoryRecord, error) {
	rec := &domain.HistoryRecord{}

	var createdAt string

	err := row.Scan(&rec.Date, &rec.QuoteID, &rec.Message, &rec.Author,
		&rec.AuthorProfile, &rec.APISource, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = parseTime(createdAt)

	return rec, nil
}

// parseTime handles the datetime formats SQLite may hand back.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
