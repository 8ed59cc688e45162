package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is the embedded durable backend, for single-host deployments that
// want the cache to survive restarts.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (or creates) the cache database at dsn and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteCacheMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(sqliteCacheMigration)
	return eris.Wrap(err, "cache: migrate sqlite")
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, s.now().UTC()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return payload, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, s.now().UTC().Add(ttl))
	return eris.Wrapf(err, "cache: set %s", key)
}

func (s *SQLite) Invalidate(ctx context.Context, substring string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE instr(key, ?) > 0`, substring)
	if err != nil {
		return 0, eris.Wrapf(err, "cache: invalidate %q", substring)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Purge drops expired rows. Expiry is already enforced on read; this only
// reclaims space and is safe to run on any schedule.
func (s *SQLite) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
