package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis is the shared in-memory backend. Expiry is delegated to the server,
// which already treats expired keys as absent.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server at addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "cache: connect redis %s", addr)
	}
	return &Redis{client: client, prefix: "metrics:"}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	return payload, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return eris.Wrapf(r.client.Set(ctx, r.prefix+key, payload, ttl).Err(), "cache: set %s", key)
}

func (r *Redis) Invalidate(ctx context.Context, substring string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	pattern := r.prefix + "*" + escapeGlob(substring) + "*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, eris.Wrapf(err, "cache: invalidate %q", substring)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, eris.Wrapf(err, "cache: invalidate %q", substring)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// escapeGlob neutralizes SCAN glob specials so the substring matches
// literally, like the memory and sqlite backends.
func escapeGlob(s string) string {
	return strings.NewReplacer(
		`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`,
	).Replace(s)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
