package sqldao

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
)

// In-memory driver harness shared by the package tests. A connector may
// carry a query handler, an exec handler, or both; DAO tests usually need
// both on one *sql.DB.

type queryHandler func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

type execHandler func(query string, args []driver.NamedValue) (driver.Result, error)

type testConnector struct {
	q queryHandler
	e execHandler
}

func (c *testConnector) Connect(context.Context) (driver.Conn, error) {
	return &testConn{q: c.q, e: c.e}, nil
}
func (c *testConnector) Driver() driver.Driver { return testDriver{} }

type testDriver struct{}

func (testDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("testDriver.Open should not be called; use sql.OpenDB with connector")
}

type testConn struct {
	q queryHandler
	e execHandler
}

func (c *testConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *testConn) Close() error                        { return nil }
func (c *testConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

func (c *testConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.q == nil {
		return nil, errors.New("no query handler installed")
	}
	cols, data, err := c.q(query, args)
	if err != nil {
		return nil, err
	}
	return &testRows{cols: cols, data: data}, nil
}

func (c *testConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.e == nil {
		return nil, errors.New("no exec handler installed")
	}
	return c.e(query, args)
}

type testRows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *testRows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *testRows) Close() error      { return nil }
func (r *testRows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

// Result implementation for tests.
type testResult struct {
	lastID int64
	rows   int64
	liErr  error
	raErr  error
}

func (r testResult) LastInsertId() (int64, error) { return r.lastID, r.liErr }
func (r testResult) RowsAffected() (int64, error) { return r.rows, r.raErr }

// newQueryDB creates a *sql.DB whose reads are served by h.
func newQueryDB(t *testing.T, h queryHandler) *sql.DB {
	t.Helper()
	return sql.OpenDB(&testConnector{q: h})
}

// newExecDB creates a *sql.DB whose writes are served by h.
func newExecDB(t *testing.T, h execHandler) *sql.DB {
	t.Helper()
	return sql.OpenDB(&testConnector{e: h})
}

// newDB creates a *sql.DB serving both reads and writes.
func newDB(t *testing.T, q queryHandler, e execHandler) *sql.DB {
	t.Helper()
	return sql.OpenDB(&testConnector{q: q, e: e})
}
