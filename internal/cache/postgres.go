package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the cache needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres is the shared durable backend, for deployments where several
// processes serve the same entities and should share one cache.
type Postgres struct {
	pool Pool
	now  func() time.Time
}

const postgresCacheMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

// NewPostgres connects a cache to an existing schema, creating the table if
// needed.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: connect postgres")
	}
	p := &Postgres{pool: pool, now: time.Now}
	if _, err := pool.Exec(ctx, postgresCacheMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: migrate postgres")
	}
	return p, nil
}

// NewPostgresWithPool wraps an already-constructed pool without migrating.
func NewPostgresWithPool(pool Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM cache_entries WHERE key = $1 AND expires_at > $2`,
		key, p.now().UTC()).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return payload, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, payload, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		key, payload, p.now().UTC().Add(ttl))
	return eris.Wrapf(err, "cache: set %s", key)
}

func (p *Postgres) Invalidate(ctx context.Context, substring string) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE key LIKE '%' || $1 || '%' ESCAPE '\'`,
		escapeLike(substring))
	if err != nil {
		return 0, eris.Wrapf(err, "cache: invalidate %q", substring)
	}
	return int(tag.RowsAffected()), nil
}

// escapeLike neutralizes LIKE wildcards so the substring matches literally,
// like the memory and sqlite backends.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
