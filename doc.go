/*
Package sqldao is a minimal, stdlib-style statement-keyed data access layer
over database/sql. A DAO[T] owns a map of named SQL statements and one
database handle; you address statements by key, hand over parameters in one
of three shapes, and get typed values back.

# Overview

sqldao preserves database/sql semantics while removing repetitive
statement-lookup, parameter-binding, and row-mapping code. It works with
*sql.DB, *sql.Tx, and *sql.Conn. Keeping SQL in a named map (typically a
YAML file, see LoadStatements) separates query text from call sites without
hiding it behind a query builder.

# Statements

Every keyed operation resolves its SQL through the DAO's Statements map
first. The keyless verbs Select, Get, Insert, Update, and Delete use the
conventional keys "select", "insert", "update", and "delete"; the
ByStatement variants address any key. A key with no usable SQL (absent or
empty) reports ErrNoStatement naming the key, before anything touches the
database. Query, QueryRow, and Exec run ad-hoc SQL on the same handle when
a statement has no place in the map.

# Parameters

Params carries bound values in exactly one of three shapes:

  - Fields(dto): exported struct fields bind :name markers, matched
    case-insensitively, `db` tags first. A DTO that implements Fielder
    supplies its values directly and skips reflection entirely.
  - Named(map): map entries bind :name markers by key.
  - Positional(args...): values feed ? markers in order.

NoParams (the zero value) binds nothing. Callers that only learn the shape
at run time classify a value with Bind, which reports ErrUnsupportedParams
for anything that fits none of the shapes.

Slice and array values expand into comma-separated placeholders for IN
lists; []byte and driver.Valuer values stay scalar; an empty slice becomes
NULL. A nil value binds as SQL NULL, and a NULL column scans into a zero
value (or nil map entry). There is no sentinel value for NULL anywhere.

# Placeholders

Statements are written with :name and ? markers regardless of the target
database. Before execution the DAO rewrites markers to the style its
Placeholder field selects: $n for PostgreSQL, @pn for SQL Server, :n for
Oracle, or ? untouched for MySQL-family engines. Quoted strings, comments,
PostgreSQL $tag$…$tag$ bodies, and :: casts are never touched.

# Mapping rules

  - Fields bind by `db:"name"` first; otherwise case-insensitive field ←→ column name.
  - Nested structs can be flattened with `db:",inline"`.
  - If a destination type (or field) implements sql.Scanner, its Scan method receives the driver value.
  - Primitives (bool, numbers, string, []byte, time.Time, sql.RawBytes) are supported directly.
  - Row (map[string]any) destinations take every column verbatim, keyed as the driver reports them.
  - Extra columns are ignored; missing columns yield zero values (favors robustness).

# Performance

On first use of a (Type, ColumnSet) pair, sqldao builds a scan plan (column
→ field index path and destination strategy). Plans and per-type indexes
are cached in a lazily-initialized, concurrency-safe map (sync.Map).
Subsequent scans reuse the plan and avoid reflection on the hot path.
Common safe conversions (e.g., []byte→string, numeric widenings) are
handled inline.

# Error handling

  - ErrNilDB: a DAO operation ran with no database handle.
  - ErrNoStatement: a statement key resolved to no SQL; the error names the key.
  - ErrUnsupportedParams: Bind saw a value fitting none of the three shapes; the error names the type.
  - Get and QueryRow return sql.ErrNoRows when no row matches; an empty Select is not an error.
  - Everything else propagates from the driver unchanged.

All sentinels wrap cleanly, so errors.Is works across the package boundary.

# Compatibility

sqldao works with any database/sql driver (PostgreSQL, MySQL, SQLite, SQL
Server, Oracle). It binds parameters and rewrites placeholders but never
parses, builds, or optimizes your SQL, and it never manages connections or
transactions; hand it a *sql.Tx when a group of statements must commit
together.

# Usage notes

Prefer explicit column lists over SELECT * to keep mapping stable. Add
LIMIT 1 (or the equivalent) when you expect a single row. Use contexts to
bound query timeouts. Keep Go types close to database types to minimize
surprises. Reach for DAO[Row] only at true ad-hoc boundaries (exports,
debugging consoles); typed DAOs catch drift between SQL and Go at the
first scan.

sqldao is intended for production systems that value clarity and
performance over abstraction. It keeps the API small and predictable while
giving you full control over your SQL.
*/
package sqldao
