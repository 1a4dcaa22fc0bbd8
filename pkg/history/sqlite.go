package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type migration struct {
	Version int
	UpSQL   string
}

var migrations = []migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS url_history (
	url TEXT PRIMARY KEY,
	count INTEGER NOT NULL CHECK(count >= 0),
	last_used INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS url_history_last_used ON url_history(last_used DESC);
`,
	},
}

// SQLiteStore persists entries in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("chmod history db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Read(ctx context.Context, url string) (Entry, error) {
	var (
		e        Entry
		lastUsed int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT url, count, last_used FROM url_history WHERE url = ?`, url,
	).Scan(&e.URL, &e.Count, &lastUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read history entry: %w", err)
	}
	e.LastUsed = time.Unix(0, lastUsed).UTC()
	return e, nil
}

func (s *SQLiteStore) Update(ctx context.Context, entry Entry) error {
	if entry.URL == "" {
		return errors.New("history entry url is required")
	}
	if entry.LastUsed.IsZero() {
		entry.LastUsed = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO url_history(url, count, last_used)
VALUES (?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	count=excluded.count,
	last_used=excluded.last_used
`, entry.URL, entry.Count, entry.LastUsed.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert history entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, prefix string, limit int) ([]string, error) {
	entries, err := s.List(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	return urls, nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT url, count, last_used FROM url_history
WHERE substr(url, 1, length(?1)) = ?1
ORDER BY last_used DESC, count DESC, url ASC
LIMIT ?2
`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			lastUsed int64
		)
		if err := rows.Scan(&e.URL, &e.Count, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.LastUsed = time.Unix(0, lastUsed).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
