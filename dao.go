package sqldao

import (
	"context"
	"errors"
)

// ErrNilDB is returned by every DAO operation when the DB field is nil.
var ErrNilDB = errors.New("sqldao: nil database handle")

// DAO runs a fixed family of SQL statements against one database handle
// and maps result rows to T. Construct one with New and populate
// Statements up front:
//
//	type User struct {
//	    ID    int64  `db:"id"`
//	    Email string `db:"email"`
//	}
//
//	users := sqldao.New[User](db, sqldao.Statements{
//	    "select":   `SELECT id, email FROM users WHERE status = :status`,
//	    "insert":   `INSERT INTO users (id, email) VALUES (:id, :email)`,
//	    "delete":   `DELETE FROM users WHERE id = :id`,
//	    "byDomain": `SELECT id, email FROM users WHERE email LIKE :pattern`,
//	})
//
//	active, err := users.Select(ctx, sqldao.Named(map[string]any{"status": "active"}))
//	n, err := users.Insert(ctx, User{ID: 7, Email: "a@example.com"})
//	rows, err := users.SelectByStatement(ctx, "byDomain",
//	    sqldao.Named(map[string]any{"pattern": "%@example.com"}))
//
// The keyless verbs (Select, Get, Insert, Update, Delete) resolve the
// Stmt* default keys; the ByStatement variants take any key from the map.
// A key that resolves to no SQL reports ErrNoStatement before anything
// touches the database.
//
// Use DAO[Row] when no struct exists for the result shape; every row then
// comes back as a column-keyed map.
//
// The three fields may be set directly instead of through New. They must
// not change once the DAO is serving calls; with that settled, a DAO is
// safe for concurrent use exactly as its DB handle is.
type DAO[T any] struct {
	// DB executes every statement. Usually a *sql.DB; a *sql.Tx or
	// *sql.Conn scopes the DAO to that transaction or session.
	DB DB

	// Statements holds the SQL this DAO may run, keyed by statement name.
	Statements Statements

	// Placeholder is the positional marker style of the target database.
	// The zero value keeps ? markers untouched (MySQL, SQLite, DuckDB).
	Placeholder Placeholder
}

// New returns a DAO over db and statements. Set Placeholder afterwards
// when the target database does not use ? markers.
func New[T any](db DB, statements Statements) *DAO[T] {
	return &DAO[T]{DB: db, Statements: statements}
}

// resolve checks the handle and looks up the statement for key.
func (d *DAO[T]) resolve(key string) (string, error) {
	if d.DB == nil {
		return "", ErrNilDB
	}
	return d.Statements.SQL(key)
}

// Select runs the StmtSelect statement. See SelectByStatement.
func (d *DAO[T]) Select(ctx context.Context, p Params) ([]T, error) {
	return d.SelectByStatement(ctx, StmtSelect, p)
}

// SelectByStatement resolves key and scans every result row into a T.
// No matching rows is not an error: the result is simply empty.
func (d *DAO[T]) SelectByStatement(ctx context.Context, key string, p Params) ([]T, error) {
	query, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	return Query[T](ctx, d.DB, d.Placeholder, query, p)
}

// Get runs the StmtSelect statement and keeps the first row. See
// GetByStatement.
func (d *DAO[T]) Get(ctx context.Context, p Params) (T, error) {
	return d.GetByStatement(ctx, StmtSelect, p)
}

// GetByStatement resolves key and scans the first result row into a T,
// ignoring any further rows. It returns [sql.ErrNoRows] when the query
// yields none.
func (d *DAO[T]) GetByStatement(ctx context.Context, key string, p Params) (T, error) {
	query, err := d.resolve(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return Get[T](ctx, d.DB, d.Placeholder, query, p)
}

// Query runs an ad-hoc statement on the DAO's handle, bypassing the
// statement map. Binding, placeholder rewriting, and row mapping behave
// exactly as in SelectByStatement.
func (d *DAO[T]) Query(ctx context.Context, query string, p Params) ([]T, error) {
	if d.DB == nil {
		return nil, ErrNilDB
	}
	return Query[T](ctx, d.DB, d.Placeholder, query, p)
}

// QueryRow runs an ad-hoc statement and keeps the first row, like
// GetByStatement for SQL outside the statement map.
func (d *DAO[T]) QueryRow(ctx context.Context, query string, p Params) (T, error) {
	if d.DB == nil {
		var zero T
		return zero, ErrNilDB
	}
	return Get[T](ctx, d.DB, d.Placeholder, query, p)
}

// Exec runs an ad-hoc write statement and reports the affected row count.
func (d *DAO[T]) Exec(ctx context.Context, query string, p Params) (int64, error) {
	if d.DB == nil {
		return 0, ErrNilDB
	}
	res, err := Exec(ctx, d.DB, d.Placeholder, query, p)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DAO[T]) execByStatement(ctx context.Context, key string, p Params) (int64, error) {
	query, err := d.resolve(key)
	if err != nil {
		return 0, err
	}
	return d.Exec(ctx, query, p)
}

// execDTO resolves key, then classifies dto into a Params shape. Key
// resolution comes first so a misconfigured statement map surfaces even
// when the DTO would not bind.
func (d *DAO[T]) execDTO(ctx context.Context, key string, dto T) (int64, error) {
	query, err := d.resolve(key)
	if err != nil {
		return 0, err
	}
	p, err := Bind(dto)
	if err != nil {
		return 0, err
	}
	return d.Exec(ctx, query, p)
}

// Insert stores dto via the StmtInsert statement, binding its fields (or
// map entries, for DAO[Row]) to the statement's :name markers. It reports
// the number of rows affected.
func (d *DAO[T]) Insert(ctx context.Context, dto T) (int64, error) {
	return d.execDTO(ctx, StmtInsert, dto)
}

// InsertByStatement resolves key and runs it as a write with p bound.
func (d *DAO[T]) InsertByStatement(ctx context.Context, key string, p Params) (int64, error) {
	return d.execByStatement(ctx, key, p)
}

// Update stores dto via the StmtUpdate statement, binding it like Insert.
// It reports the number of rows affected.
func (d *DAO[T]) Update(ctx context.Context, dto T) (int64, error) {
	return d.execDTO(ctx, StmtUpdate, dto)
}

// UpdateByStatement resolves key and runs it as a write with p bound.
// NoParams runs the statement as-is, which also covers parameterless DDL
// kept in the statement map.
func (d *DAO[T]) UpdateByStatement(ctx context.Context, key string, p Params) (int64, error) {
	return d.execByStatement(ctx, key, p)
}

// Delete removes dto via the StmtDelete statement, binding it like Insert.
// It reports the number of rows affected.
func (d *DAO[T]) Delete(ctx context.Context, dto T) (int64, error) {
	return d.execDTO(ctx, StmtDelete, dto)
}

// DeleteByStatement resolves key and runs it as a write with p bound.
func (d *DAO[T]) DeleteByStatement(ctx context.Context, key string, p Params) (int64, error) {
	return d.execByStatement(ctx, key, p)
}
