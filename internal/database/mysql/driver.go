// Package mysql implements the aiodb driver contract for MySQL on top of
// database/sql and go-sql-driver/mysql. Like the postgres package it ships
// single-connection and pooled database flavors, the MySQL dialect, and
// native-error mapping.
package mysql

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver

	"github.com/koustreak/aiodb/internal/database"
	"github.com/koustreak/aiodb/internal/errs"
)

// Pool implements database.DriverPool backed by database/sql, whose *sql.DB
// is itself a connection pool; Acquire pins one of its connections.
type Pool struct {
	cfg *database.Config

	mu sync.Mutex
	db *sql.DB
}

// NewPool builds an unconnected Pool from cfg. Create must run before use.
func NewPool(cfg *database.Config) *Pool {
	return &Pool{cfg: cfg}
}

// Create opens the sql.DB pool, applies tuning, and validates it with a
// ping bounded by the connect timeout.
func (p *Pool) Create(ctx context.Context) error {
	db, err := sql.Open("mysql", p.cfg.DSN)
	if err != nil {
		return errs.Wrap(errs.ErrKindPoolCreation, "invalid mysql DSN", err)
	}

	db.SetMaxOpenConns(int(p.cfg.MaxConns))
	db.SetMaxIdleConns(int(p.cfg.MinConns))
	db.SetConnMaxLifetime(p.cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(p.cfg.MaxConnIdleTime)

	pingCtx := ctx
	if p.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return errs.Wrap(errs.ErrKindPoolCreation, "mysql is unreachable", err)
	}

	p.mu.Lock()
	p.db = db
	p.mu.Unlock()
	return nil
}

// Acquire pins a dedicated connection out of the sql.DB pool, blocking
// while all of them are busy at max size.
func (p *Pool) Acquire(ctx context.Context) (database.Conn, error) {
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return nil, errs.New(errs.ErrKindNotConnected, "mysql pool was not created")
	}

	c, err := db.Conn(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &conn{c: c}, nil
}

// Release returns the pinned connection to the sql.DB idle set.
func (p *Pool) Release(c database.Conn) {
	if mc, ok := c.(*conn); ok {
		_ = mc.c.Close()
	}
}

// Terminate closes the pool; database/sql waits for in-flight statements.
func (p *Pool) Terminate(context.Context) error {
	p.mu.Lock()
	db := p.db
	p.db = nil
	p.mu.Unlock()
	if db != nil {
		return mapError(db.Close())
	}
	return nil
}

// conn wraps one pinned *sql.Conn.
type conn struct {
	c *sql.Conn
}

func (c *conn) Cursor(context.Context) (database.Cursor, error) {
	return &cursor{conn: c.c}, nil
}

// cursor is a per-statement handle over a pinned connection.
type cursor struct {
	conn *sql.Conn
	rows *sql.Rows
	cols []string

	rowCount     int64
	lastInsertID int64
}

func (c *cursor) Query(ctx context.Context, sqlText string, args []any) error {
	rows, err := c.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return mapError(err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return mapError(err)
	}
	c.rows = rows
	c.cols = cols
	return nil
}

func (c *cursor) Exec(ctx context.Context, sqlText string, args []any) error {
	res, err := c.conn.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return mapError(err)
	}
	// Both are carried by the MySQL OK packet; errors here mean the
	// statement class has no such counter, which callers treat as zero.
	c.rowCount, _ = res.RowsAffected()
	c.lastInsertID, _ = res.LastInsertId()
	return nil
}

func (c *cursor) Columns() []string { return c.cols }

func (c *cursor) FetchOne() ([]any, error) {
	if c.rows == nil {
		return nil, nil
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		_ = c.rows.Close()
		c.rows = nil
		if err != nil {
			return nil, mapError(err)
		}
		return nil, nil
	}

	vals := make([]any, len(c.cols))
	ptrs := make([]any, len(c.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, mapError(err)
	}
	return vals, nil
}

func (c *cursor) RowCount() int64 { return c.rowCount }

func (c *cursor) LastInsertID() (int64, error) { return c.lastInsertID, nil }

func (c *cursor) Close(context.Context) error {
	if c.rows != nil {
		err := c.rows.Close()
		c.rows = nil
		return mapError(err)
	}
	return nil
}
