package database

import "fmt"

// Kind tags a compiled query with its statement class. The executor
// dispatches on it exhaustively; an unknown tag is a caller bug, not a
// silent fallthrough.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Query is the boundary with the query-construction collaborator: an
// immutable description of one already-compiled operation. The engine never
// mutates a query — WithDatabase returns a rebound clone.
type Query interface {
	// Kind tags the statement class.
	Kind() Kind

	// SQL returns the compiled SQL text and its parameter sequence.
	SQL() (string, []any)

	// Database is the handle the query is bound to.
	Database() *Handle

	// Returning lists the columns a RETURNING clause declares, nil when
	// the statement has none.
	Returning() []string

	// WithDatabase returns a clone of the query bound to db.
	WithDatabase(db *Handle) Query
}

// RowWrapper is an optional Query capability: select-like queries that know
// how to turn a raw result row into a higher-level record implement it.
// Without it, results are exposed as plain []any rows.
type RowWrapper interface {
	WrapRow(cols []string, vals []any) any
}

// Countable is an optional Query capability used by Count. A query builder
// that can re-render itself provides the two alternate forms; queries
// without it are always counted through the subquery wrap.
type Countable interface {
	Query

	// NeedsWrapping reports whether the query carries DISTINCT, GROUP BY,
	// LIMIT or OFFSET — clauses that make a projection rewrite change the
	// result, forcing the subquery wrap.
	NeedsWrapping() bool

	// WithoutLimits returns a clone with LIMIT and OFFSET cleared.
	WithoutLimits() Query

	// CountForm returns a clone whose projection is COUNT(*) and whose
	// ordering is dropped.
	CountForm() Query
}

// RawQuery is the one concrete Query the engine itself owns: verbatim SQL
// with positional parameters. Count uses it for the wrapped form; callers
// use it for anything the builder layer cannot express.
type RawQuery struct {
	db   *Handle
	text string
	args []any
}

// Raw builds a RawQuery bound to db.
func Raw(db *Handle, text string, args ...any) *RawQuery {
	return &RawQuery{db: db, text: text, args: args}
}

func (q *RawQuery) Kind() Kind          { return KindRaw }
func (q *RawQuery) SQL() (string, []any) { return q.text, q.args }
func (q *RawQuery) Database() *Handle   { return q.db }
func (q *RawQuery) Returning() []string { return nil }

func (q *RawQuery) WithDatabase(db *Handle) Query {
	return &RawQuery{db: db, text: q.text, args: q.args}
}
