package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koustreak/aiodb/internal/errs"
)

// fakeDriver is a scripted DriverPool used across the package tests. It
// enforces a real bounded-capacity acquire (blocking on a channel), logs
// every executed statement with the id of the connection that ran it, and
// counts cursor opens/closes so release-on-all-paths can be asserted.
type fakeDriver struct {
	capacity int
	idle     chan *fakeConn

	mu         sync.Mutex
	created    bool
	terminated bool
	createErr  error

	acquired int
	released int

	cursorsOpened int
	cursorsClosed int
	execAttempts  int

	log []fakeStatement

	results map[string]fakeResult
	// onExec, when set, may veto a statement. It runs before the result
	// lookup, so tests can fail the Nth insert, COMMIT, etc.
	onExec func(sql string, args []any) error
}

type fakeStatement struct {
	connID int
	sql    string
	args   []any
}

type fakeResult struct {
	cols     []string
	rows     [][]any
	rowCount int64
	lastID   int64
}

func newFakeDriver(capacity int) *fakeDriver {
	d := &fakeDriver{
		capacity: capacity,
		idle:     make(chan *fakeConn, capacity),
		results:  make(map[string]fakeResult),
	}
	for i := 0; i < capacity; i++ {
		d.idle <- &fakeConn{id: i + 1, driver: d}
	}
	return d
}

func (d *fakeDriver) Create(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return d.createErr
	}
	d.created = true
	return nil
}

func (d *fakeDriver) Acquire(ctx context.Context) (Conn, error) {
	select {
	case c := <-d.idle:
		d.mu.Lock()
		d.acquired++
		d.mu.Unlock()
		return c, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.ErrKindTimeout, "acquire cancelled", ctx.Err())
	}
}

func (d *fakeDriver) Release(c Conn) {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		return
	}
	d.released++
	d.mu.Unlock()
	d.idle <- c.(*fakeConn)
}

func (d *fakeDriver) Terminate(context.Context) error {
	d.mu.Lock()
	d.terminated = true
	d.mu.Unlock()
	return nil
}

// script registers the result for an exact SQL text.
func (d *fakeDriver) script(sql string, res fakeResult) {
	d.mu.Lock()
	d.results[sql] = res
	d.mu.Unlock()
}

// statements returns the SQL texts executed so far, in order.
func (d *fakeDriver) statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.log))
	for i, s := range d.log {
		out[i] = s.sql
	}
	return out
}

// connIDs returns the connection id that ran each logged statement.
func (d *fakeDriver) connIDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.log))
	for i, s := range d.log {
		out[i] = s.connID
	}
	return out
}

func (d *fakeDriver) execute(connID int, sql string, args []any) (fakeResult, error) {
	d.mu.Lock()
	d.execAttempts++
	hook := d.onExec
	d.mu.Unlock()

	if hook != nil {
		if err := hook(sql, args); err != nil {
			return fakeResult{}, err
		}
	}

	d.mu.Lock()
	d.log = append(d.log, fakeStatement{connID: connID, sql: sql, args: args})
	res, ok := d.results[sql]
	d.mu.Unlock()
	if !ok {
		// Unscripted statements (BEGIN, COMMIT, …) succeed with nothing.
		return fakeResult{}, nil
	}
	return res, nil
}

type fakeConn struct {
	id     int
	driver *fakeDriver
}

func (c *fakeConn) Cursor(context.Context) (Cursor, error) {
	c.driver.mu.Lock()
	c.driver.cursorsOpened++
	c.driver.mu.Unlock()
	return &fakeCursor{conn: c}, nil
}

type fakeCursor struct {
	conn *fakeConn
	res  fakeResult
	next int
	done bool
}

func (c *fakeCursor) Query(_ context.Context, sql string, args []any) error {
	res, err := c.conn.driver.execute(c.conn.id, sql, args)
	if err != nil {
		return err
	}
	c.res = res
	return nil
}

func (c *fakeCursor) Exec(ctx context.Context, sql string, args []any) error {
	return c.Query(ctx, sql, args)
}

func (c *fakeCursor) Columns() []string { return c.res.cols }

func (c *fakeCursor) FetchOne() ([]any, error) {
	if c.next >= len(c.res.rows) {
		return nil, nil
	}
	row := c.res.rows[c.next]
	c.next++
	return row, nil
}

func (c *fakeCursor) RowCount() int64 { return c.res.rowCount }

func (c *fakeCursor) LastInsertID() (int64, error) { return c.res.lastID, nil }

func (c *fakeCursor) Close(context.Context) error {
	if !c.done {
		c.done = true
		c.conn.driver.mu.Lock()
		c.conn.driver.cursorsClosed++
		c.conn.driver.mu.Unlock()
	}
	return nil
}

// fakeDialect quotes like Postgres; tests that care about quoting pin the
// exact statement text against it.
type fakeDialect struct{}

func (fakeDialect) Name() string { return "fake" }

func (fakeDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (fakeDialect) Placeholder(idx int) string { return fmt.Sprintf("$%d", idx) }

func (fakeDialect) ListTablesSQL() string { return "LIST TABLES" }

func (fakeDialect) TableExistsSQL() string { return "TABLE EXISTS" }

// newFakeHandle wires a handle over a fresh fake driver.
func newFakeHandle(capacity int, opts ...Option) (*Handle, *fakeDriver) {
	d := newFakeDriver(capacity)
	return NewHandle(d, fakeDialect{}, opts...), d
}

// fakeQuery is a minimal hand-compiled Query for tests; setting the
// optional fields turns on the Countable / RowWrapper capabilities.
type fakeQuery struct {
	kind      Kind
	text      string
	args      []any
	db        *Handle
	returning []string

	wrapRow func(cols []string, vals []any) any

	needsWrapping bool
	withoutLimits string // SQL of the limit-free clone
	countForm     string // SQL of the COUNT(*) rewrite
}

func (q *fakeQuery) Kind() Kind           { return q.kind }
func (q *fakeQuery) SQL() (string, []any) { return q.text, q.args }
func (q *fakeQuery) Database() *Handle    { return q.db }
func (q *fakeQuery) Returning() []string  { return q.returning }

func (q *fakeQuery) WithDatabase(db *Handle) Query {
	clone := *q
	clone.db = db
	return &clone
}

func (q *fakeQuery) WrapRow(cols []string, vals []any) any {
	if q.wrapRow == nil {
		return vals
	}
	return q.wrapRow(cols, vals)
}

// countableQuery layers the Countable capability over fakeQuery.
type countableQuery struct {
	fakeQuery
}

func (q *countableQuery) NeedsWrapping() bool { return q.needsWrapping }

func (q *countableQuery) WithoutLimits() Query {
	clone := q.fakeQuery
	clone.text = q.withoutLimits
	return &clone
}

func (q *countableQuery) CountForm() Query {
	clone := q.fakeQuery
	clone.text = q.countForm
	return &clone
}
