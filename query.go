package sqldao

import (
	"context"
)

// Query executes the SQL query and scans all result rows into a slice of T.
//
// The statement's :name markers are resolved against p and ? placeholders
// are rewritten per ph before execution (see Rebind). T may be a struct
// (supports `db` tags and ,inline), a primitive, a string-keyed map (see
// Row), or any type implementing [sql.Scanner]. Column mapping prefers
// `db:"name"` tags; otherwise it matches case-insensitive field names.
//
// Extra columns are ignored and missing columns set zero values. A query
// that yields no rows returns an empty slice and a nil error. Safe for
// concurrent use; Query internally uses a lazily-initialized,
// concurrency-safe plan cache based on [sync.Map], which avoids global
// locks for most read operations.
//
// Example:
//
//	// Given a *sql.DB (or *sql.Tx, *sql.Conn) in variable `db`:
//	type User struct {
//	    ID    int64  `db:"id"`
//	    Email string `db:"email"`
//	}
//
//	ctx := context.Background()
//	users, err := sqldao.Query[User](ctx, db, sqldao.PlaceholderDollar,
//	    `SELECT id, email FROM users WHERE status = :status ORDER BY id`,
//	    sqldao.Named(map[string]any{"status": "active"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, u := range users {
//	    fmt.Println(u.ID, u.Email)
//	}
func Query[T any](ctx context.Context, q Querier, ph Placeholder, query string, p Params) (out []T, err error) {
	bound, args, err := Rebind(query, ph, p)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, err
	}
	// Propagate rows.Close() error if nothing else failed.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	m := getMapper() // lazy, thread-safe
	for rows.Next() {
		v, scanErr := scanWithMapper[T](m, rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, v)
	}
	if ne := rows.Err(); ne != nil {
		return nil, ne
	}
	return out, nil
}
