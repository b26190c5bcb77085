// Package postgres implements the aiodb driver contract for PostgreSQL on
// top of jackc/pgx and pgxpool. It ships two database flavors — single
// connection and pooled — that differ only in pool sizing, plus the
// Postgres dialect and the native-error mapping.
package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/aiodb/internal/database"
	"github.com/koustreak/aiodb/internal/errs"
)

// Pool implements database.DriverPool backed by pgxpool.
type Pool struct {
	cfg *database.Config

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewPool builds an unconnected Pool from cfg. Create must run before use.
func NewPool(cfg *database.Config) *Pool {
	return &Pool{cfg: cfg}
}

// Create parses the DSN, applies pool tuning, builds the pgx pool and
// validates it with a ping.
func (p *Pool) Create(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return errs.Wrap(errs.ErrKindPoolCreation, "invalid postgres DSN", err)
	}

	poolCfg.MaxConns = p.cfg.MaxConns
	poolCfg.MinConns = p.cfg.MinConns
	poolCfg.MaxConnLifetime = p.cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = p.cfg.MaxConnIdleTime
	poolCfg.ConnConfig.ConnectTimeout = p.cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return errs.Wrap(errs.ErrKindPoolCreation, "failed to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errs.Wrap(errs.ErrKindPoolCreation, "postgres is unreachable", err)
	}

	p.mu.Lock()
	p.pool = pool
	p.mu.Unlock()
	return nil
}

// Acquire hands out a pooled connection, blocking while the pool is fully
// busy at max size.
func (p *Pool) Acquire(ctx context.Context) (database.Conn, error) {
	p.mu.Lock()
	pool := p.pool
	p.mu.Unlock()
	if pool == nil {
		return nil, errs.New(errs.ErrKindNotConnected, "postgres pool was not created")
	}

	c, err := pool.Acquire(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &conn{c: c}, nil
}

// Release returns the connection to pgxpool.
func (p *Pool) Release(c database.Conn) {
	if pc, ok := c.(*conn); ok {
		pc.c.Release()
	}
}

// Terminate closes the pool, waiting until all connections are returned.
func (p *Pool) Terminate(context.Context) error {
	p.mu.Lock()
	pool := p.pool
	p.pool = nil
	p.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
	return nil
}

// conn wraps one pgxpool connection.
type conn struct {
	c *pgxpool.Conn
}

func (c *conn) Cursor(context.Context) (database.Cursor, error) {
	return &cursor{conn: c.c}, nil
}

// cursor is a per-statement handle over a pgx connection. pgx defers many
// statement errors to row iteration time, so FetchOne surfaces them after
// the stream ends.
type cursor struct {
	conn *pgxpool.Conn
	rows pgx.Rows
	cols []string
	tag  pgconn.CommandTag
}

func (c *cursor) Query(ctx context.Context, sql string, args []any) error {
	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return mapError(err, "query failed")
	}
	c.rows = rows

	descs := rows.FieldDescriptions()
	c.cols = make([]string, len(descs))
	for i, d := range descs {
		c.cols[i] = d.Name
	}
	return nil
}

func (c *cursor) Exec(ctx context.Context, sql string, args []any) error {
	tag, err := c.conn.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, "exec failed")
	}
	c.tag = tag
	return nil
}

func (c *cursor) Columns() []string { return c.cols }

func (c *cursor) FetchOne() ([]any, error) {
	if c.rows == nil {
		return nil, nil
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		c.tag = c.rows.CommandTag()
		c.rows = nil
		if err != nil {
			return nil, mapError(err, "row iteration failed")
		}
		return nil, nil
	}
	vals, err := c.rows.Values()
	if err != nil {
		return nil, mapError(err, "failed to read row values")
	}
	return vals, nil
}

func (c *cursor) RowCount() int64 { return c.tag.RowsAffected() }

// LastInsertID reports 0: the Postgres protocol does not carry generated
// ids, callers get them through a RETURNING clause instead.
func (c *cursor) LastInsertID() (int64, error) { return 0, nil }

func (c *cursor) Close(context.Context) error {
	if c.rows != nil {
		c.rows.Close()
		c.tag = c.rows.CommandTag()
		c.rows = nil
	}
	return nil
}
