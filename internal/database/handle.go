package database

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/aiodb/internal/errs"
	"github.com/koustreak/aiodb/internal/logger"
	"github.com/koustreak/aiodb/internal/taskctx"
)

// txState is the per-task transaction record: nesting depth plus the one
// connection reserved for the task while depth > 0. It lives in the
// handle's task store and is only ever touched by its own task.
type txState struct {
	depth int
	conn  Conn
}

// Handle wraps one logical database target. It owns the connection pool
// (created lazily on first Connect), the per-task transaction state, and
// the statement plumbing everything above it is built on.
//
// A Handle is safe for concurrent use by many tasks.
type Handle struct {
	driver  DriverPool
	dialect Dialect
	tasks   *taskctx.Store[txState]
	log     *logger.Logger

	connectTimeout time.Duration
	queryTimeout   time.Duration
	allowSync      bool // guarded by mu

	// mu guards the check-then-create in Connect and the teardown in
	// Close. It is held across pool creation on purpose: two tasks
	// connecting at once must not both build a pool.
	mu   sync.Mutex
	pool *Pool
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *logger.Logger) Option {
	return func(h *Handle) { h.log = log }
}

// WithConnectTimeout bounds pool creation.
func WithConnectTimeout(d time.Duration) Option {
	return func(h *Handle) { h.connectTimeout = d }
}

// WithQueryTimeout applies a default per-statement deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(h *Handle) { h.queryTimeout = d }
}

// NewHandle builds a Handle over the given vendor driver and dialect.
// Vendor packages call this from their constructors; application code uses
// postgres.NewPooledDatabase and friends instead.
func NewHandle(driver DriverPool, dialect Dialect, opts ...Option) *Handle {
	h := &Handle{
		driver:  driver,
		dialect: dialect,
		tasks:   taskctx.NewStore[txState](),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dialect returns the vendor dialect the handle was built with.
func (h *Handle) Dialect() Dialect { return h.dialect }

// IsConnected reports whether the pool exists.
func (h *Handle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pool != nil
}

// Connect lazily creates the connection pool. Idempotent: once connected it
// returns immediately. The internal lock makes concurrent first calls
// collapse into a single pool creation.
func (h *Handle) Connect(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pool != nil {
		return nil
	}

	if h.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.connectTimeout)
		defer cancel()
	}

	pool := newPool(h.driver, h.log)
	if err := pool.Create(ctx); err != nil {
		return err
	}
	h.pool = pool
	return nil
}

// Close terminates the pool. Idempotent and safe to call when never
// connected.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	pool := h.pool
	h.pool = nil
	h.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Terminate(ctx)
}

// activePool returns the pool or an ErrKindNotConnected error.
func (h *Handle) activePool() (*Pool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool == nil {
		return nil, errs.New(errs.ErrKindNotConnected, "database is not connected")
	}
	return h.pool, nil
}

// TransactionDepth returns the calling task's nesting depth, 0 when the
// task has no record (or no task is registered at all).
func (h *Handle) TransactionDepth(ctx context.Context) int {
	if rec, ok := h.tasks.Get(ctx); ok {
		return rec.depth
	}
	return 0
}

// transactionConn returns the calling task's reserved connection, nil when
// the task holds none.
func (h *Handle) transactionConn(ctx context.Context) Conn {
	if rec, ok := h.tasks.Get(ctx); ok && rec.depth > 0 {
		return rec.conn
	}
	return nil
}

// PushTransaction increments the calling task's depth. On the 0→1
// transition a connection is reserved from the pool and bound to the task;
// every statement the task issues until the matching pop runs on that one
// connection.
func (h *Handle) PushTransaction(ctx context.Context) error {
	if err := h.Connect(ctx); err != nil {
		return err
	}
	rec, err := h.tasks.Upsert(ctx)
	if err != nil {
		return err
	}
	if rec.depth == 0 {
		pool, err := h.activePool()
		if err != nil {
			return err
		}
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		rec.conn = conn
	}
	rec.depth++
	return nil
}

// PopTransaction decrements the calling task's depth. On the 1→0
// transition the reserved connection goes back to the pool. Decrementing
// below zero fails with ErrKindTxDepth.
func (h *Handle) PopTransaction(ctx context.Context) error {
	rec, ok := h.tasks.Get(ctx)
	if !ok || rec.depth == 0 {
		return errs.New(errs.ErrKindTxDepth, "transaction depth underflow")
	}
	rec.depth--
	if rec.depth == 0 {
		conn := rec.conn
		rec.conn = nil
		if pool, err := h.activePool(); err == nil {
			pool.Release(conn)
		}
	}
	return nil
}

// cursor connects if needed and opens a statement cursor. A task inside an
// open transaction gets a cursor scoped to its reserved connection; anyone
// else gets a fresh pooled connection wired to release with the cursor.
func (h *Handle) cursor(ctx context.Context) (*ManagedCursor, error) {
	if err := h.Connect(ctx); err != nil {
		return nil, err
	}
	pool, err := h.activePool()
	if err != nil {
		return nil, err
	}
	return pool.Cursor(ctx, h.transactionConn(ctx))
}

// statementCtx applies the handle's default statement deadline.
func (h *Handle) statementCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.queryTimeout > 0 {
		return context.WithTimeout(ctx, h.queryTimeout)
	}
	return ctx, func() {}
}

// ExecuteStatement issues a rows-returning statement and hands the open
// cursor to the caller, who must consume it and call Release. On execution
// error the cursor is released here before the error propagates.
func (h *Handle) ExecuteStatement(ctx context.Context, sql string, args []any) (*ManagedCursor, error) {
	cur, err := h.cursor(ctx)
	if err != nil {
		return nil, err
	}
	h.log.DebugStatement(sql, args)

	sctx, cancel := h.statementCtx(ctx)
	defer cancel()
	if err := cur.Query(sctx, sql, args); err != nil {
		_ = cur.Release(ctx)
		return nil, err
	}
	return cur, nil
}

// ExecStatement issues a statement for which only the affected-row count
// and generated id matter. Same release contract as ExecuteStatement.
func (h *Handle) ExecStatement(ctx context.Context, sql string, args []any) (*ManagedCursor, error) {
	cur, err := h.cursor(ctx)
	if err != nil {
		return nil, err
	}
	h.log.DebugStatement(sql, args)

	sctx, cancel := h.statementCtx(ctx)
	defer cancel()
	if err := cur.Exec(sctx, sql, args); err != nil {
		_ = cur.Release(ctx)
		return nil, err
	}
	return cur, nil
}

// runNoResult executes a statement and discards its result, releasing the
// cursor on every path. Transaction control (BEGIN, COMMIT, SAVEPOINT …)
// goes through here.
func (h *Handle) runNoResult(ctx context.Context, sql string) error {
	cur, err := h.ExecStatement(ctx, sql, nil)
	if err != nil {
		return err
	}
	return cur.Release(ctx)
}

// SetAllowSync toggles the escape hatch for direct statements. See
// ExecDirect.
func (h *Handle) SetAllowSync(v bool) {
	h.mu.Lock()
	h.allowSync = v
	h.mu.Unlock()
}

// AllowSync runs fn with direct statements temporarily allowed, restoring
// the previous setting afterwards.
func (h *Handle) AllowSync(ctx context.Context, fn func(ctx context.Context) error) error {
	h.mu.Lock()
	prev := h.allowSync
	h.allowSync = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.allowSync = prev
		h.mu.Unlock()
	}()
	return fn(ctx)
}

// ExecDirect issues a statement outside the task and transaction machinery,
// for bootstrap work such as creating tables. It is refused unless allowed
// via SetAllowSync or an enclosing AllowSync — accidental direct writes
// bypassing an open transaction are almost always a bug.
func (h *Handle) ExecDirect(ctx context.Context, sql string, args ...any) (int64, error) {
	h.mu.Lock()
	allowed := h.allowSync
	h.mu.Unlock()
	if !allowed {
		return 0, errs.New(errs.ErrKindInvalidInput,
			"direct statement is not allowed, use SetAllowSync or AllowSync")
	}

	if err := h.Connect(ctx); err != nil {
		return 0, err
	}
	pool, err := h.activePool()
	if err != nil {
		return 0, err
	}
	cur, err := pool.Cursor(ctx, nil)
	if err != nil {
		return 0, err
	}
	h.log.DebugStatement(sql, args)
	if err := cur.Exec(ctx, sql, args); err != nil {
		_ = cur.Release(ctx)
		return 0, err
	}
	n := cur.RowCount()
	return n, cur.Release(ctx)
}
