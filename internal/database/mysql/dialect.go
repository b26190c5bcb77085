package mysql

import "strings"

// dialect implements database.Dialect for MySQL.
type dialect struct{}

// Dialect is the MySQL dialect singleton.
var Dialect dialect

func (dialect) Name() string { return "mysql" }

// QuoteIdent wraps an identifier in backticks, doubling any embedded one.
func (dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Placeholder is always ? — MySQL placeholders are positional, not indexed.
func (dialect) Placeholder(int) string { return "?" }

func (dialect) ListTablesSQL() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`
}

func (dialect) TableExistsSQL() string {
	return `
		SELECT 1
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type   = 'BASE TABLE'
		  AND table_name   = ?`
}
