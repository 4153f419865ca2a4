package sqldao

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNilParams is returned when field binding is requested with a nil DTO.
// This typically means you passed a nil *struct to Fields.
var ErrNilParams = errors.New("sqldao: named bind: nil params")

// ErrUnsupportedParams is returned by Bind when a value fits none of the
// three parameter shapes.
var ErrUnsupportedParams = errors.New("sqldao: params must be a struct or Fielder, a string-keyed map, or a positional list")

// ErrDuplicateKey is returned when two parameter names resolve to the same
// case-folded name: struct fields (including embedded, e.g. via db:"name"),
// Fielder entries, or Named map keys.
var ErrDuplicateKey = errors.New("sqldao: named bind: duplicate parameter name")

// Fielder supplies named parameter values directly, without reflection.
// A DTO that implements it controls exactly which names are bindable and
// what values they carry; names are matched case-insensitively against
// :name markers in the statement.
type Fielder interface {
	FieldValues() map[string]any
}

type paramKind uint8

const (
	paramsNone paramKind = iota
	paramsFields
	paramsNamed
	paramsPositional
)

// Params carries statement parameters in exactly one of three shapes:
//
//   - Fields(dto): a typed value whose exported fields (or FieldValues map,
//     if it implements Fielder) bind :name markers by name.
//   - Named(values): a map binding :name markers by key.
//   - Positional(args...): values passed through in order for ? markers.
//
// The zero value (NoParams) binds nothing and is valid wherever a
// statement takes no parameters. Construct Params with one of the three
// constructors, or let Bind classify an arbitrary value at run time.
type Params struct {
	kind  paramKind
	dto   any
	named map[string]any
	pos   []any
}

// NoParams is the Params zero value: a statement run without parameters.
var NoParams Params

// Fields binds the exported fields of dto to :name markers. Field names
// match case-insensitively; a `db:"name"` tag overrides the field name and
// `db:"-"` skips the field. Embedded structs are flattened. If dto
// implements Fielder, its FieldValues map is used instead of reflection.
func Fields(dto any) Params {
	return Params{kind: paramsFields, dto: dto}
}

// Named binds map entries to :name markers, matching keys
// case-insensitively.
func Named(values map[string]any) Params {
	return Params{kind: paramsNamed, named: values}
}

// Positional passes args through in order. No :name resolution happens;
// the statement is expected to use ? markers (rewritten per Placeholder).
func Positional(args ...any) Params {
	return Params{kind: paramsPositional, pos: args}
}

// Bind classifies an arbitrary value into one of the three Params shapes.
// It is the entry point for callers whose parameter shape is only known at
// run time:
//
//   - nil (including typed nil pointers) → NoParams
//   - a Params value → returned unchanged
//   - a Fielder, struct, or pointer to struct → Fields
//   - a string-keyed map → Named
//   - a slice or array (except []byte) → Positional, one arg per element
//
// Anything else reports ErrUnsupportedParams naming the offending type.
func Bind(v any) (Params, error) {
	if v == nil {
		return NoParams, nil
	}
	if p, ok := v.(Params); ok {
		return p, nil
	}
	if f, ok := v.(Fielder); ok {
		return Fields(f), nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return NoParams, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Params{}, fmt.Errorf("%w (got %T)", ErrUnsupportedParams, v)
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return Named(m), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// A byte blob is a single value, not an argument list, and a
			// single value alone names no parameter to bind it to.
			return Params{}, fmt.Errorf("%w (got %T)", ErrUnsupportedParams, v)
		}
		args := make([]any, rv.Len())
		for i := range args {
			args[i] = rv.Index(i).Interface()
		}
		return Positional(args...), nil
	case reflect.Struct:
		if p, ok := rv.Interface().(Params); ok {
			return p, nil
		}
		return Fields(v), nil
	default:
		return Params{}, fmt.Errorf("%w (got %T)", ErrUnsupportedParams, v)
	}
}

// isNamed reports whether the shape resolves :name markers.
func (p Params) isNamed() bool {
	return p.kind == paramsFields || p.kind == paramsNamed
}

// lookup builds the case-insensitive name → value table for the Fields and
// Named shapes. The other shapes have no names to look up.
func (p Params) lookup() (*paramLookup, error) {
	switch p.kind {
	case paramsFields:
		return fieldLookup(p.dto)
	case paramsNamed:
		m := make(map[string]any, len(p.named))
		for k, v := range p.named {
			key := strings.ToLower(k)
			if _, exists := m[key]; exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			m[key] = v
		}
		return &paramLookup{m: m}, nil
	default:
		return nil, nil
	}
}

type paramLookup struct {
	m map[string]any // lowercase name -> value
}

func (l *paramLookup) lookup(name string) (any, bool) {
	v, ok := l.m[strings.ToLower(name)]
	return v, ok
}

func fieldLookup(dto any) (*paramLookup, error) {
	if dto == nil {
		return nil, ErrNilParams
	}
	if f, ok := dto.(Fielder); ok {
		vals := f.FieldValues()
		m := make(map[string]any, len(vals))
		for k, v := range vals {
			key := strings.ToLower(k)
			if _, exists := m[key]; exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
			}
			m[key] = v
		}
		return &paramLookup{m: m}, nil
	}

	rv := reflect.ValueOf(dto)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, ErrNilParams
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w (got %T)", ErrUnsupportedParams, dto)
	}
	m := make(map[string]any)
	if err := addStructFields(m, rv); err != nil {
		return nil, err
	}
	return &paramLookup{m: m}, nil
}

func addStructFields(dst map[string]any, v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		tag := f.Tag.Get("db")
		name, inline, omit := parseTag(tag)
		if omit {
			continue
		}

		// Embedded and db:",inline" struct fields flatten into the parent.
		// A nil pointer along the chain contributes no names at all.
		if inline || (f.Anonymous && tag == "") {
			ft := f.Type
			fv := v.Field(i)

			isNil := false
			for ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					isNil = true
					break
				}
				ft = ft.Elem()
				fv = fv.Elem()
			}
			if isNil {
				continue
			}
			if ft.Kind() == reflect.Struct {
				if err := addStructFields(dst, fv); err != nil {
					return err
				}
				continue
			}
		}

		if name == "" {
			name = f.Name
		}
		key := strings.ToLower(name)
		if _, exists := dst[key]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		dst[key] = v.Field(i).Interface()
	}
	return nil
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

func isSliceOrArray(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	// A driver.Valuer is one bound value no matter its kind; uuid.UUID is an
	// array underneath, for example.
	if v.Type().Implements(valuerType) {
		return false
	}
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8 // []byte → scalar
	case reflect.Array:
		return true
	default:
		return false
	}
}
