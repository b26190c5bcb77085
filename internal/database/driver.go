package database

import "context"

// DriverPool is the contract a vendor package implements on top of its
// native driver (pgxpool for Postgres, database/sql for MySQL). The engine
// owns the lifecycle: Create is called at most once per instance, Terminate
// at most once after that. All errors crossing this boundary are already
// mapped into *errs.Error by the vendor package.
type DriverPool interface {
	// Create establishes the underlying pool. Network or auth failures
	// surface as ErrKindPoolCreation.
	Create(ctx context.Context) error

	// Acquire returns a live connection, blocking until one is available
	// when the pool is at max size and fully busy. A caller that fails
	// after Acquire must Release in its own error path — the pool does
	// not auto-detect abandonment.
	Acquire(ctx context.Context) (Conn, error)

	// Release returns conn to the idle set. Releasing into a terminated
	// pool is a silent no-op.
	Release(conn Conn)

	// Terminate closes all connections and waits for full shutdown.
	Terminate(ctx context.Context) error
}

// Conn is one live session with the database. At most one statement is in
// flight per Conn at a time; the engine enforces this by binding an open
// transaction's Conn to a single task.
type Conn interface {
	// Cursor opens a per-statement handle bound to this connection.
	Cursor(ctx context.Context) (Cursor, error)
}

// Cursor is a per-statement handle bound to exactly one Conn. It must be
// closed exactly once, on every path including errors; the engine wires
// that through ManagedCursor.Release.
//
// Query and Exec mirror the two halves of the wire protocol: Query for
// statements whose result is a row stream, Exec for statements where only
// the affected-row count and generated id are wanted. Exactly one of them
// is called per cursor.
type Cursor interface {
	Query(ctx context.Context, sql string, args []any) error
	Exec(ctx context.Context, sql string, args []any) error

	// Columns returns the result column names after a successful Query.
	Columns() []string

	// FetchOne returns the next row, or nil once the stream is exhausted.
	// Statement errors the driver defers until read time surface here.
	FetchOne() ([]any, error)

	// RowCount reports rows affected by an Exec'd statement.
	RowCount() int64

	// LastInsertID reports the generated id of an Exec'd INSERT, when the
	// vendor protocol carries one (MySQL). Postgres reports ids through
	// RETURNING instead and yields 0 here.
	LastInsertID() (int64, error)

	// Close releases the statement resources. Idempotent.
	Close(ctx context.Context) error
}
