package sqldao

import (
	"context"
	"database/sql"
)

// Exec executes a statement that does not return rows (INSERT, UPDATE, DELETE, DDL).
//
// The statement's :name markers are resolved against p and ? placeholders
// are rewritten per ph before execution (see Rebind), then the statement is
// forwarded to the underlying [Execer]. On success it returns the driver's
// [sql.Result], which may support LastInsertId and RowsAffected depending
// on the database/driver.
//
// Example:
//
//	// Given a *sql.DB (or *sql.Tx, *sql.Conn) in variable `db`:
//	ctx := context.Background()
//	res, err := sqldao.Exec(ctx, db, sqldao.PlaceholderQuestion,
//	    `INSERT INTO users (email) VALUES (:email)`,
//	    sqldao.Named(map[string]any{"email": "a@example.com"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, _ := res.RowsAffected()
//	fmt.Println("rows:", n)
//
// Notes:
//   - Run related statements on a *sql.Tx when you need atomicity; sqldao
//     issues single statements and never manages transactions itself.
//   - Not all drivers support LastInsertId; prefer RETURNING with Query/Get where available.
func Exec(ctx context.Context, e Execer, ph Placeholder, query string, p Params) (sql.Result, error) {
	bound, args, err := Rebind(query, ph, p)
	if err != nil {
		return nil, err
	}
	return e.ExecContext(ctx, bound, args...)
}
