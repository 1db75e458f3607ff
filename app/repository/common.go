package repository

import (
	"context"
	"database/sql"
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

const mysqlErrNoSuchTable = 1146

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func isMissingTableError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoSuchTable
}
