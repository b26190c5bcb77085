package database

// Dialect captures the vendor-specific SQL surface the engine needs:
// identifier quoting (savepoint names), parameter placeholder style, and
// the catalog queries behind ListTables / TableExists. One implementation
// lives in each vendor package; the engine never branches on vendor name
// outside of query swapping.
type Dialect interface {
	// Name identifies the vendor ("postgres", "mysql"). Two handles may
	// exchange queries only when their dialect names match.
	Name() string

	// QuoteIdent wraps a SQL identifier so reserved words and mixed-case
	// names are safe. The input is never user-controlled SQL — it is only
	// used for engine-generated identifiers such as savepoint names.
	QuoteIdent(name string) string

	// Placeholder returns the parameter placeholder for the 1-based
	// argument position ($1, $2, … for Postgres; ? for MySQL).
	Placeholder(idx int) string

	// ListTablesSQL is a no-argument catalog query returning one text
	// column with all user-defined table names.
	ListTablesSQL() string

	// TableExistsSQL is a one-argument catalog query (table name) that
	// yields a row exactly when the table exists.
	TableExistsSQL() string
}
