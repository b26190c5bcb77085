package database

import (
	"context"
	"fmt"

	"github.com/koustreak/aiodb/internal/errs"
	"github.com/koustreak/aiodb/internal/logger"
)

// Manager is the convenience facade over one Handle: lookup and mutation
// helpers with the documented recovery flows, plus passthroughs for
// connection and transaction control. It holds no state of its own beyond
// the handle and a logger.
type Manager struct {
	db  *Handle
	log *logger.Logger
}

// NewManager builds a Manager over db.
func NewManager(db *Handle, opts ...ManagerOption) *Manager {
	m := &Manager{db: db, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(log *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// Database returns the underlying handle.
func (m *Manager) Database() *Handle { return m.db }

// IsConnected reports whether the handle's pool exists.
func (m *Manager) IsConnected() bool { return m.db.IsConnected() }

// Connect opens the handle's pool if not already open.
func (m *Manager) Connect(ctx context.Context) error { return m.db.Connect(ctx) }

// Close terminates the handle's pool.
func (m *Manager) Close(ctx context.Context) error { return m.db.Close(ctx) }

// Execute dispatches q through the executor, rebinding it to the manager's
// database first when necessary.
func (m *Manager) Execute(ctx context.Context, q Query) (any, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, q)
}

// Get executes a select-like query and returns its first row, failing with
// ErrKindNotFound when the query matches nothing.
func (m *Manager) Get(ctx context.Context, q Query) (any, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	rows, err := Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows.Len() == 0 {
		return nil, errs.New(errs.ErrKindNotFound, "record not found")
	}
	return rows.At(0), nil
}

// GetOrNone is Get with the not-found case recovered into a nil result.
func (m *Manager) GetOrNone(ctx context.Context, q Query) (any, error) {
	obj, err := m.Get(ctx, q)
	if errs.IsNotFound(err) {
		return nil, nil
	}
	return obj, err
}

// Create executes an INSERT and returns the insert result: the generated
// id, the single returned value, or the drained RETURNING rows.
func (m *Manager) Create(ctx context.Context, q Query) (any, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	return Insert(ctx, q)
}

// Update executes an UPDATE and returns the affected-row count.
func (m *Manager) Update(ctx context.Context, q Query) (int64, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return 0, err
	}
	res, err := Update(ctx, q)
	if err != nil {
		return 0, err
	}
	return resultCount(res)
}

// Delete executes a DELETE and returns the affected-row count.
func (m *Manager) Delete(ctx context.Context, q Query) (int64, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return 0, err
	}
	res, err := Delete(ctx, q)
	if err != nil {
		return 0, err
	}
	return resultCount(res)
}

// GetOrCreate looks up with the lookup query and, when nothing matches,
// runs the insert query and looks up again. The boolean reports whether
// the row was created by this call.
func (m *Manager) GetOrCreate(ctx context.Context, lookup, insert Query) (any, bool, error) {
	obj, err := m.Get(ctx, lookup)
	if err == nil {
		return obj, false, nil
	}
	if !errs.IsNotFound(err) {
		return nil, false, err
	}
	if _, err := m.Create(ctx, insert); err != nil {
		return nil, false, err
	}
	obj, err = m.Get(ctx, lookup)
	return obj, true, err
}

// CreateOrGet runs the insert query and, when it hits an integrity
// violation (something else created the row first), falls back to the
// lookup query exactly once. The boolean reports whether this call created
// the row; on the fallback path the returned value is the existing row.
func (m *Manager) CreateOrGet(ctx context.Context, insert, lookup Query) (any, bool, error) {
	res, err := m.Create(ctx, insert)
	if err == nil {
		return res, true, nil
	}
	if !errs.IsConflict(err) {
		return nil, false, err
	}
	obj, getErr := m.Get(ctx, lookup)
	if getErr != nil {
		// The fallback itself failed; surface that, not the conflict.
		return nil, false, getErr
	}
	return obj, false, nil
}

// Count performs a COUNT aggregation over q. See Count in this package.
func (m *Manager) Count(ctx context.Context, q Query, clearLimit bool) (int64, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return 0, err
	}
	return Count(ctx, q, clearLimit)
}

// Scalar returns the first column of q's first row, nil on zero rows.
func (m *Manager) Scalar(ctx context.Context, q Query) (any, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	return Scalar(ctx, q)
}

// ScalarRow returns q's first row whole, nil on zero rows.
func (m *Manager) ScalarRow(ctx context.Context, q Query) ([]any, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	return ScalarRow(ctx, q)
}

// Prefetch executes q plus its relations. See Prefetch in this package.
func (m *Manager) Prefetch(ctx context.Context, q Query, rels ...Relation) (*Rows, error) {
	q, err := m.swapDatabase(q)
	if err != nil {
		return nil, err
	}
	for i := range rels {
		rels[i].Query, err = m.swapDatabase(rels[i].Query)
		if err != nil {
			return nil, err
		}
	}
	return Prefetch(ctx, q, rels...)
}

// Atomic runs fn in a transaction or savepoint scope depending on the
// calling task's depth.
func (m *Manager) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.Atomic(ctx, fn)
}

// Transaction runs fn in an explicit transaction scope.
func (m *Manager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.RunTransaction(ctx, fn)
}

// Savepoint runs fn in a savepoint scope.
func (m *Manager) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.RunSavepoint(ctx, fn)
}

// AllowSync runs fn with the handle's direct-statement escape hatch open.
func (m *Manager) AllowSync(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.AllowSync(ctx, fn)
}

// swapDatabase rebinds a query to the manager's database. A query bound to
// nothing is simply bound; a query bound to a different handle is rebound
// only when both sides speak the same dialect — swapping a Postgres query
// onto a MySQL manager is an error, not a silent retarget.
func (m *Manager) swapDatabase(q Query) (Query, error) {
	db := q.Database()
	if db == m.db {
		return q, nil
	}
	if db == nil || db.Dialect().Name() == m.db.Dialect().Name() {
		return q.WithDatabase(m.db), nil
	}
	return nil, errs.New(errs.ErrKindInvalidInput,
		fmt.Sprintf("query database %q does not match manager database %q",
			db.Dialect().Name(), m.db.Dialect().Name()))
}

func resultCount(res any) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case *Rows:
		return int64(v.Len()), nil
	default:
		return toInt64(v), nil
	}
}
