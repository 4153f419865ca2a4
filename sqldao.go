package sqldao

import (
	"context"
	"database/sql"
)

// Querier is implemented by *sql.DB, *sql.Tx, *sql.Conn, and any wrapper
// that can execute a query returning rows.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer is implemented by *sql.DB, *sql.Tx, *sql.Conn, and any wrapper
// that can execute a statement that does not return rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB combines Querier and Execer; a DAO issues both reads and writes
// through it. *sql.DB, *sql.Tx, and *sql.Conn all satisfy DB. The handle
// is owned by the caller: sqldao never opens, pools, or closes it, and
// inherits whatever concurrency and timeout guarantees it provides.
type DB interface {
	Querier
	Execer
}
