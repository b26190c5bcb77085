package postgres

import (
	"fmt"
	"strings"
)

// dialect implements database.Dialect for PostgreSQL.
type dialect struct{}

// Dialect is the PostgreSQL dialect singleton.
var Dialect dialect

func (dialect) Name() string { return "postgres" }

// QuoteIdent wraps an identifier in double quotes (ANSI standard),
// doubling any embedded quote.
func (dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Placeholder returns $1, $2, … for the 1-based argument position.
func (dialect) Placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

func (dialect) ListTablesSQL() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`
}

func (dialect) TableExistsSQL() string {
	return `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = $1`
}
