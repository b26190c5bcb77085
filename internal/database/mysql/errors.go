package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/aiodb/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
	errBadFieldError   = 1054
	errAccessDenied    = 1045
	errConnRefused     = 2003
	errUnknownDatabase = 1049
)

// mapError converts a MySQL driver error into an *errs.Error.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, "statement timed out", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, "record not found", err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errDuplicateEntry:
			return errs.Wrap(errs.ErrKindConflict,
				fmt.Sprintf("duplicate entry: %s", mysqlErr.Message), err)
		case errNoReferencedRow, errRowIsReferenced:
			return errs.Wrap(errs.ErrKindConflict,
				fmt.Sprintf("foreign key violation: %s", mysqlErr.Message), err)
		case errAccessDenied, errConnRefused, errUnknownDatabase:
			return errs.Wrap(errs.ErrKindConnectionFailed,
				fmt.Sprintf("connection error: %s", mysqlErr.Message), err)
		case errBadFieldError:
			return errs.Wrap(errs.ErrKindQueryFailed,
				fmt.Sprintf("invalid query: %s", mysqlErr.Message), err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, mysqlErr.Message, err)
	}

	return errs.Wrap(errs.ErrKindUnknown, err.Error(), err)
}
