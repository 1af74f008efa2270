package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Supported SQL dialects, named after their database/sql driver.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS rate_limit_windows (
	bucket       TEXT PRIMARY KEY,
	count        BIGINT NOT NULL,
	window_start BIGINT NOT NULL,
	reset_at     BIGINT NOT NULL
)`

// upsertSQL restarts an elapsed window or adds one to the live one in a single
// statement, so concurrent callers never race on read-then-write. Times are
// unix milliseconds. %[1]s, %[2]s and %[3]s are the dialect's placeholders for
// bucket, now and the new reset time.
const upsertSQL = `INSERT INTO rate_limit_windows (bucket, count, window_start, reset_at)
VALUES (%[1]s, 1, %[2]s, %[3]s)
ON CONFLICT (bucket) DO UPDATE SET
	count = CASE WHEN rate_limit_windows.reset_at <= %[2]s THEN 1 ELSE rate_limit_windows.count + 1 END,
	window_start = CASE WHEN rate_limit_windows.reset_at <= %[2]s THEN %[2]s ELSE rate_limit_windows.window_start END,
	reset_at = CASE WHEN rate_limit_windows.reset_at <= %[2]s THEN %[3]s ELSE rate_limit_windows.reset_at END
RETURNING count, window_start, reset_at`

// SQLStore is a [Store] backed by a relational database shared by every
// instance. It works with PostgreSQL (lib/pq) and SQLite (go-sqlite3).
type SQLStore struct {
	db      *sql.DB
	upsert  string
	timeout time.Duration
	nowFunc func() time.Time
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithQueryTimeout bounds each Increment, including the wait for a pooled
// connection. Zero means the caller's context alone applies. The default is
// 500ms.
func WithQueryTimeout(d time.Duration) SQLOption {
	return func(s *SQLStore) { s.timeout = d }
}

// NewSQLStore creates a SQLStore for the given dialect. Call
// [SQLStore.Migrate] once before use.
func NewSQLStore(db *sql.DB, dialect string, opts ...SQLOption) (*SQLStore, error) {
	var q string
	switch dialect {
	case DialectPostgres:
		q = fmt.Sprintf(upsertSQL, "$1", "$2", "$3")
	case DialectSQLite:
		q = fmt.Sprintf(upsertSQL, "?1", "?2", "?3")
	default:
		return nil, fmt.Errorf("%w: unsupported sql dialect %q", ErrInvalidConfig, dialect)
	}
	s := &SQLStore{db: db, upsert: q, timeout: 500 * time.Millisecond, nowFunc: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Migrate creates the counters table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("ratelimit: migrate: %w", err)
	}
	return nil
}

// Increment implements [Store].
func (s *SQLStore) Increment(ctx context.Context, key string, window time.Duration) (Record, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.nowFunc()
	var count, start, reset int64
	err := s.db.QueryRowContext(ctx, s.upsert, key, now.UnixMilli(), now.Add(window).UnixMilli()).
		Scan(&count, &start, &reset)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return Record{
		Count:       count,
		WindowStart: time.UnixMilli(start),
		ResetAt:     time.UnixMilli(reset),
	}, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
