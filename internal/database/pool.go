package database

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koustreak/aiodb/internal/errs"
	"github.com/koustreak/aiodb/internal/logger"
)

// Pool owns the live connections to one database target. It delegates the
// actual pooling to the vendor DriverPool and adds the lifecycle state the
// engine cares about: created-at-most-once, terminated-exactly-once, and
// the dual-mode cursor release contract.
type Pool struct {
	driver DriverPool
	log    *logger.Logger

	mu         sync.Mutex
	created    bool
	terminated bool
}

func newPool(driver DriverPool, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{driver: driver, log: log}
}

// Create establishes the underlying pool. Called at most once per Pool.
func (p *Pool) Create(ctx context.Context) error {
	p.mu.Lock()
	if p.created {
		p.mu.Unlock()
		return errs.New(errs.ErrKindInvalidInput, "pool already created")
	}
	p.created = true
	p.mu.Unlock()

	if err := p.driver.Create(ctx); err != nil {
		return err
	}
	p.log.Debug("connection pool created")
	return nil
}

// Acquire returns an available connection, blocking until one frees up when
// the pool is at max size. Fails with ErrKindPoolTerminated after Terminate.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	terminated := p.terminated
	p.mu.Unlock()
	if terminated {
		return nil, errs.New(errs.ErrKindPoolTerminated, "acquire on terminated pool")
	}
	return p.driver.Acquire(ctx)
}

// Release returns conn to the idle set. A release racing Terminate is a
// silent no-op — the driver pool absorbs it during shutdown.
func (p *Pool) Release(conn Conn) {
	if conn == nil {
		return
	}
	p.driver.Release(conn)
}

// Terminate forcibly closes all connections and waits for full shutdown.
// Idempotent.
func (p *Pool) Terminate(ctx context.Context) error {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		return nil
	}
	p.terminated = true
	p.mu.Unlock()

	err := p.driver.Terminate(ctx)
	p.log.Debug("connection pool terminated")
	return err
}

// Cursor opens a per-statement cursor.
//
// With conn == nil a fresh connection is acquired and the cursor's Release
// returns it to the pool. With conn != nil (the in-transaction case) the
// cursor is scoped to that connection and Release leaves it with the
// caller — a transactional cursor must never return its connection to the
// pool mid-transaction.
func (p *Pool) Cursor(ctx context.Context, conn Conn) (*ManagedCursor, error) {
	inTx := conn != nil
	if conn == nil {
		var err error
		conn, err = p.Acquire(ctx)
		if err != nil {
			return nil, err
		}
	}

	cur, err := conn.Cursor(ctx)
	if err != nil {
		if !inTx {
			p.Release(conn)
		}
		return nil, err
	}

	return &ManagedCursor{Cursor: cur, pool: p, conn: conn, inTx: inTx}, nil
}

// ManagedCursor couples a driver cursor with its release path. Release is
// safe to call from any exit path, including cancellation, and runs its
// cleanup exactly once.
type ManagedCursor struct {
	Cursor

	pool     *Pool
	conn     Conn
	inTx     bool
	released atomic.Bool
}

// Conn exposes the connection the cursor is bound to.
func (c *ManagedCursor) Conn() Conn { return c.conn }

// Release closes the cursor and, unless the cursor was opened on a
// caller-owned in-transaction connection, returns the connection to the
// pool. Subsequent calls are no-ops.
func (c *ManagedCursor) Release(ctx context.Context) error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}
	err := c.Cursor.Close(ctx)
	if !c.inTx {
		c.pool.Release(c.conn)
	}
	return err
}
