// named.go
package sqldao

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder selects the positional parameter style for a target database.
//
// Common choices:
//   - PlaceholderQuestion   → "?"           (MySQL, SQLite, DuckDB, ClickHouse)
//   - PlaceholderDollar     → "$1, $2, …"  (PostgreSQL)
//   - PlaceholderAtP        → "@p1, @p2…"  (SQL Server)
//   - PlaceholderColonNum   → ":1, :2, …"  (Oracle)
type Placeholder int

const (
	PlaceholderQuestion Placeholder = iota
	PlaceholderDollar
	PlaceholderAtP
	PlaceholderColonNum
)

// Rebind resolves :named markers against p and rewrites placeholders for
// the target database.
//
// Usage:
//
//   - Fields / Named shapes resolve :name markers:
//     sql, args, err := sqldao.Rebind(
//     `SELECT * FROM users WHERE status=:status AND id IN (:ids)`,
//     sqldao.PlaceholderDollar,
//     sqldao.Named(map[string]any{"status": "active", "ids": []int{1, 2, 3}}),
//     )
//     // sql  => SELECT * FROM users WHERE status=$1 AND id IN ($2,$3,$4)
//     // args => ["active", 1, 2, 3]
//
//     Notes: slices/arrays expand; []byte and driver.Valuer values stay
//     scalar; an empty slice/array becomes NULL (so `IN (NULL)` matches no
//     rows on most engines).
//
//   - Positional passes args through; only placeholder rewriting is applied:
//     sql, args, _ := sqldao.Rebind(`a=? AND b=?`, sqldao.PlaceholderColonNum,
//     sqldao.Positional("A", 10))
//
//   - NoParams rewrites placeholders and binds nothing.
//
// SQL scanning safely skips quoted strings, comments, PostgreSQL
// $tag$…$tag$ blocks, and :: casts.
func Rebind(query string, ph Placeholder, p Params) (string, []any, error) {
	if p.isNamed() {
		lut, err := p.lookup()
		if err != nil {
			return "", nil, err
		}
		qPos, args, err := bindNamed(query, lut)
		if err != nil {
			return "", nil, err
		}
		return rewritePlaceholders(qPos, ph), args, nil
	}
	return rewritePlaceholders(query, ph), p.pos, nil
}

// PlaceholderFor picks a Placeholder based on a driver name string.
// This is a convenience for one-off calls; you can also choose the enum directly.
//
// Examples:
//
//	ph := sqldao.PlaceholderFor("pgx")       // => PlaceholderDollar
//	ph := sqldao.PlaceholderFor("sqlserver") // => PlaceholderAtP
//	ph := sqldao.PlaceholderFor("mysql")     // => PlaceholderQuestion
func PlaceholderFor(driverName string) Placeholder {
	switch strings.ToLower(driverName) {
	case "pgx", "postgres", "postgresql", "lib/pq", "pg":
		return PlaceholderDollar
	case "sqlserver", "mssql":
		return PlaceholderAtP
	case "godror", "oracle", "goracle":
		return PlaceholderColonNum
	default:
		return PlaceholderQuestion
	}
}

type nameToken struct {
	name  string
	start int
	end   int
}

// bindNamed replaces each :name token with ? (expanding slices) and
// collects the bound values in marker order.
func bindNamed(query string, lut *paramLookup) (string, []any, error) {
	toks, err := findNamedParams(query)
	if err != nil {
		return "", nil, err
	}
	if len(toks) == 0 {
		return query, nil, nil
	}

	var b strings.Builder
	b.Grow(len(query))
	args := make([]any, 0, len(toks))
	last := 0

	for _, t := range toks {
		b.WriteString(query[last:t.start])

		val, ok := lut.lookup(t.name)
		if !ok {
			return "", nil, fmt.Errorf("sqldao: named bind: missing value for :%s", t.name)
		}

		rv := reflect.ValueOf(val)
		if isSliceOrArray(rv) {
			n := rv.Len()
			if n == 0 {
				b.WriteString("NULL")
			} else {
				for i := 0; i < n; i++ {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteByte('?')
					args = append(args, rv.Index(i).Interface())
				}
			}
		} else {
			b.WriteByte('?')
			args = append(args, val)
		}
		last = t.end
	}
	b.WriteString(query[last:])
	return b.String(), args, nil
}

func findNamedParams(query string) ([]nameToken, error) {
	var out []nameToken
	i := 0
	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'':
			j, err := skipSingleQuoted(query, i+w)
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case '"':
			j, err := skipDoubleQuoted(query, i+w)
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case '`':
			j, err := skipBacktickQuoted(query, i+w)
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case '-':
			if hasPrefix(query[i:], "--") {
				i = skipLineComment(query, i+2)
				continue
			}
		case '/':
			if hasPrefix(query[i:], "/*") {
				j, err := skipBlockComment(query, i+2)
				if err != nil {
					return nil, err
				}
				i = j
				continue
			}
		case '$':
			if j, ok, err := skipDollarQuoted(query, i); err != nil {
				return nil, err
			} else if ok {
				i = j
				continue
			}
		case ':':
			if hasPrefix(query[i:], "::") {
				i += 2 // skip PG cast
				continue
			}
			start := i
			name, end := parseIdent(query, i+1)
			if name != "" {
				out = append(out, nameToken{name: name, start: start, end: end})
				i = end
				continue
			}
		}
		i += w
	}
	return out, nil
}

func rewritePlaceholders(query string, ph Placeholder) string {
	if ph == PlaceholderQuestion {
		return query
	}
	out := make([]byte, 0, len(query)+16)
	i, arg := 0, 1

	for i < len(query) {
		r, w := utf8.DecodeRuneInString(query[i:])
		switch r {
		case '\'':
			j, _ := skipSingleQuoted(query, i+w)
			out = append(out, query[i:j]...)
			i = j
			continue
		case '"':
			j, _ := skipDoubleQuoted(query, i+w)
			out = append(out, query[i:j]...)
			i = j
			continue
		case '`':
			j, _ := skipBacktickQuoted(query, i+w)
			out = append(out, query[i:j]...)
			i = j
			continue
		case '-':
			if hasPrefix(query[i:], "--") {
				j := skipLineComment(query, i+2)
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '/':
			if hasPrefix(query[i:], "/*") {
				j, _ := skipBlockComment(query, i+2)
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '$':
			if j, ok, _ := skipDollarQuoted(query, i); ok {
				out = append(out, query[i:j]...)
				i = j
				continue
			}
		case '?':
			switch ph {
			case PlaceholderDollar:
				out = append(out, '$')
				out = strconv.AppendInt(out, int64(arg), 10)
			case PlaceholderAtP:
				out = append(out, '@', 'p')
				out = strconv.AppendInt(out, int64(arg), 10)
			case PlaceholderColonNum:
				out = append(out, ':')
				out = strconv.AppendInt(out, int64(arg), 10)
			default:
				out = append(out, '?')
			}
			arg++
			i += w
			continue
		}
		out = append(out, query[i:i+w]...)
		i += w
	}
	return string(out)
}

func skipSingleQuoted(s string, i int) (int, error) {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		if r == '\'' {
			if i < len(s) && s[i] == '\'' {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("sqldao: unterminated single-quoted string")
}

func skipDoubleQuoted(s string, i int) (int, error) {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		if r == '"' {
			if i < len(s) && s[i] == '"' {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("sqldao: unterminated double-quoted identifier")
}

func skipBacktickQuoted(s string, i int) (int, error) {
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		i += w
		if r == '`' {
			if i < len(s) && s[i] == '`' {
				i++
				continue
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("sqldao: unterminated backtick-quoted identifier")
}

func skipLineComment(s string, i int) int {
	for i < len(s) {
		if s[i] == '\n' {
			return i + 1
		}
		i++
	}
	return i
}

func skipBlockComment(s string, i int) (int, error) {
	for i < len(s)-1 {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2, nil
		}
		i++
	}
	return 0, fmt.Errorf("sqldao: unterminated block comment")
}

// skipDollarQuoted handles $$...$$ and $tag$...$tag$ (PostgreSQL).
func skipDollarQuoted(s string, i int) (int, bool, error) {
	if s[i] != '$' {
		return 0, false, nil
	}
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagChar(rune(s[j])) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return 0, false, nil
	}
	tag := s[i : j+1]
	k := j + 1
	for {
		idx := strings.Index(s[k:], tag)
		if idx < 0 {
			return 0, true, fmt.Errorf("sqldao: unterminated dollar-quoted string")
		}
		k += idx + len(tag)
		return k, true, nil
	}
}

func isTagChar(r rune) bool      { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
func hasPrefix(s, p string) bool { return len(s) >= len(p) && s[:len(p)] == p }

func parseIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		r, w := utf8.DecodeRuneInString(s[i:])
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		i += w
	}
	if i == start {
		return "", i
	}
	return s[start:i], i
}
