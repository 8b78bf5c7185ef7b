package driver

import "context"

// FallbackCache is the local persistent key/value store used when the
// remote progress store is unreachable. Values are serialized progress
// maps keyed "progress_{user}".
type FallbackCache interface {
	GetValue(ctx context.Context, key string) (value string, found bool, err error)
	SetValue(ctx context.Context, key string, value string) error
	Ping() error
}

// SQLFallbackCache implements FallbackCache on top of ITransactionalDB,
// one row per key in the fallback_cache table.
type SQLFallbackCache struct {
	Conn ITransactionalDB
}

var _ FallbackCache = (*SQLFallbackCache)(nil)

// NewSQLFallbackCache create the cache and ensure its table exists
func NewSQLFallbackCache(ctx context.Context, conn ITransactionalDB) (*SQLFallbackCache, error) {
	_, err := conn.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS fallback_cache (
    cache_key VARCHAR(255) PRIMARY KEY,
    cache_value TEXT NOT NULL
)
	`)
	if err != nil {
		return nil, err
	}
	return &SQLFallbackCache{Conn: conn}, nil
}

func (c *SQLFallbackCache) GetValue(ctx context.Context, key string) (string, bool, error) {
	rows, err := c.Conn.QueryContext(ctx, `
SELECT
    cache_value
FROM
    fallback_cache
WHERE
    cache_key = $1
	`, key)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", false, nil
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *SQLFallbackCache) SetValue(ctx context.Context, key string, value string) error {
	res, err := c.Conn.ExecContext(ctx, `
UPDATE fallback_cache SET cache_value = $1 WHERE cache_key = $2
	`, value, key)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = c.Conn.ExecContext(ctx, `
INSERT INTO fallback_cache (cache_key, cache_value) VALUES ($1, $2)
	`, key, value)
	return err
}

func (c *SQLFallbackCache) Ping() error {
	return c.Conn.Ping()
}
