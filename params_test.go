package sqldao

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestBind_Shapes(t *testing.T) {
	type dto struct {
		A int `db:"a"`
	}
	cases := []struct {
		name string
		in   any
		kind paramKind
	}{
		{"nil", nil, paramsNone},
		{"typed nil pointer", (*dto)(nil), paramsNone},
		{"struct", dto{A: 1}, paramsFields},
		{"pointer to struct", &dto{A: 1}, paramsFields},
		{"string map", map[string]any{"a": 1}, paramsNamed},
		{"string map typed values", map[string]int{"a": 1}, paramsNamed},
		{"slice", []any{1, "x"}, paramsPositional},
		{"typed slice", []int{1, 2}, paramsPositional},
		{"array", [2]int{1, 2}, paramsPositional},
	}
	for _, tc := range cases {
		p, err := Bind(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if p.kind != tc.kind {
			t.Fatalf("%s: kind=%d want %d", tc.name, p.kind, tc.kind)
		}
	}
}

func TestBind_ParamsPassthrough(t *testing.T) {
	orig := Named(map[string]any{"x": 1})
	p, err := Bind(orig)
	if err != nil {
		t.Fatal(err)
	}
	if p.kind != paramsNamed || p.named["x"] != 1 {
		t.Fatalf("Params not passed through: %+v", p)
	}
	p2, err := Bind(&orig)
	if err != nil {
		t.Fatal(err)
	}
	if p2.kind != paramsNamed || p2.named["x"] != 1 {
		t.Fatalf("*Params not passed through: %+v", p2)
	}
}

func TestBind_MapValueConversion(t *testing.T) {
	p, err := Bind(map[string]int{"n": 7})
	if err != nil {
		t.Fatal(err)
	}
	lut, err := p.lookup()
	if err != nil {
		t.Fatal(err)
	}
	v, ok := lut.lookup("n")
	if !ok || v.(int) != 7 {
		t.Fatalf("typed map values not converted: (%v,%v)", v, ok)
	}
}

func TestBind_SliceElementsBecomePositional(t *testing.T) {
	p, err := Bind([]int{4, 5, 6})
	if err != nil {
		t.Fatal(err)
	}
	eqSlice(t, p.pos, []any{4, 5, 6}, "slice elements")
}

func TestBind_Unsupported(t *testing.T) {
	for _, in := range []any{42, "text", []byte("blob"), [4]byte{1, 2, 3, 4}, map[int]any{1: 2}, make(chan int)} {
		if _, err := Bind(in); !errors.Is(err, ErrUnsupportedParams) {
			t.Fatalf("Bind(%T): want ErrUnsupportedParams, got %v", in, err)
		}
	}
}

func TestBind_ErrorNamesShapesAndType(t *testing.T) {
	_, err := Bind(42)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, part := range []string{"struct", "Fielder", "string-keyed map", "positional", "(got int)"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("error %q missing %q", msg, part)
		}
	}
}

type kvParams struct {
	vals map[string]any
}

func (k kvParams) FieldValues() map[string]any { return k.vals }

func TestBind_FielderWins(t *testing.T) {
	p, err := Bind(kvParams{vals: map[string]any{"user_id": 9}})
	if err != nil {
		t.Fatal(err)
	}
	if p.kind != paramsFields {
		t.Fatalf("Fielder should classify as Fields, got kind=%d", p.kind)
	}
	lut, err := p.lookup()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := lut.lookup("USER_ID"); !ok || v.(int) != 9 {
		t.Fatalf("Fielder values not used: (%v,%v)", v, ok)
	}
}

func TestFielder_ThroughRebind(t *testing.T) {
	p := Fields(kvParams{vals: map[string]any{"Status": "open", "limit": 5}})
	out, args, err := Rebind(`WHERE s=:status LIMIT :LIMIT`, PlaceholderDollar, p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "s=$1") || !strings.Contains(out, "LIMIT $2") {
		t.Fatalf("unexpected sql: %s", out)
	}
	eqSlice(t, args, []any{"open", 5}, "fielder args")
}

func TestFielder_DuplicateFoldedKey(t *testing.T) {
	p := Fields(kvParams{vals: map[string]any{"ID": 1, "id": 2}})
	if _, err := p.lookup(); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
}

func TestNamed_DuplicateFoldedKey(t *testing.T) {
	p := Named(map[string]any{"ID": 1, "id": 2})
	if _, err := p.lookup(); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
	if _, _, err := Rebind(`WHERE id = :id`, PlaceholderQuestion, p); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Rebind should surface the duplicate, got %v", err)
	}
}

func TestLookup_StructEmbeddedAndMap(t *testing.T) {
	type Inner struct {
		A int `db:"a"`
	}
	type Outer struct {
		Inner
		B string `db:"b"`
		C string `db:"-"`
	}
	o := Outer{Inner: Inner{A: 10}, B: "bee", C: "skip"}
	lut, err := Fields(o).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := lut.lookup("A"); !ok || v.(int) != 10 {
		t.Fatalf("lookup A failed: %#v %#v", ok, v)
	}
	if v, ok := lut.lookup("b"); !ok || v.(string) != "bee" {
		t.Fatalf("lookup b failed: %#v %#v", ok, v)
	}
	if _, ok := lut.lookup("c"); ok {
		t.Fatalf(`db:"-" should be skipped`)
	}

	lut2, err := Named(map[string]any{"X": 1}).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := lut2.lookup("x"); !ok || v.(int) != 1 {
		t.Fatalf("map lookup failed")
	}
}

func TestLookup_ErrorsAndUnexported(t *testing.T) {
	// Nil pointer -> ErrNilParams
	var p *struct{ A int }
	if _, err := Fields(p).lookup(); !errors.Is(err, ErrNilParams) {
		t.Fatalf("expected ErrNilParams, got %v", err)
	}
	// Non-struct DTO
	if _, err := Fields(123).lookup(); !errors.Is(err, ErrUnsupportedParams) {
		t.Fatalf("expected ErrUnsupportedParams, got %v", err)
	}

	// Unexported non-embedded field should be skipped (no key "x"),
	// and exported field should be present (key "y").
	type HasUnexported struct {
		x int `db:"x"` // unexported, not anonymous -> must be skipped
		Y int `db:"y"` // exported -> must be included under key "y"
	}
	lut, err := Fields(HasUnexported{x: 1, Y: 2}).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lut.lookup("x"); ok {
		t.Fatalf("unexported non-embedded field must be skipped")
	}
	if v, ok := lut.lookup("y"); !ok || v.(int) != 2 {
		t.Fatalf("exported field missing or wrong; got (%v,%v)", v, ok)
	}
}

func TestLookup_PointerChainNonNil_AndNilSkip(t *testing.T) {
	type E struct {
		Z int `db:"z"`
	}
	type OuterPtr struct {
		*E     // anonymous embedded pointer (non-nil → unwrap)
		Y  int `db:"y"`
	}
	op := OuterPtr{E: &E{Z: 7}, Y: 42}
	lut, err := Fields(op).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := lut.lookup("z"); !ok || v.(int) != 7 {
		t.Fatalf("embedded pointer fields not flattened (non-nil)")
	}
	if v, ok := lut.lookup("y"); !ok || v.(int) != 42 {
		t.Fatalf("outer field y missing")
	}

	// Now nil embedded pointer path (should be skipped)
	op2 := OuterPtr{E: nil, Y: 99}
	lut2, err := Fields(op2).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lut2.lookup("z"); ok {
		t.Fatalf("nil embedded pointer should be skipped")
	}
	if v, ok := lut2.lookup("y"); !ok || v.(int) != 99 {
		t.Fatalf("outer field y missing in nil case")
	}
}

func TestLookup_InlineTagOnNamedField(t *testing.T) {
	type Audit struct {
		CreatedBy string `db:"created_by"`
	}
	type Rec struct {
		ID    int    `db:"id"`
		Audit *Audit `db:",inline"`
	}
	lut, err := Fields(Rec{ID: 3, Audit: &Audit{CreatedBy: "ada"}}).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := lut.lookup("created_by"); !ok || v.(string) != "ada" {
		t.Fatalf("inline named field not flattened: (%v,%v)", v, ok)
	}

	// Nil inline pointer binds no names from the nested struct.
	lut2, err := Fields(Rec{ID: 4}).lookup()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lut2.lookup("created_by"); ok {
		t.Fatalf("nil inline pointer should contribute nothing")
	}
	if v, ok := lut2.lookup("id"); !ok || v.(int) != 4 {
		t.Fatalf("sibling field lost: (%v,%v)", v, ok)
	}
}

func TestLookup_DuplicateTagName(t *testing.T) {
	type Bad struct {
		A int `db:"n"`
		B int `db:"n"`
	}
	if _, err := Fields(Bad{}).lookup(); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
}

func TestRebind_ValuerScalars_UUIDAndDecimal(t *testing.T) {
	type order struct {
		ID    uuid.UUID       `db:"id"`
		Price decimal.Decimal `db:"price"`
		Tags  []string        `db:"tags"`
	}
	o := order{
		ID:    uuid.MustParse("f47ac10b-58cc-0372-8567-0e02b2c3d479"),
		Price: decimal.RequireFromString("19.99"),
		Tags:  []string{"a", "b"},
	}
	out, args, err := Rebind(
		`SELECT 1 WHERE id=:id AND price=:price AND tag IN (:tags)`,
		PlaceholderDollar, Fields(o),
	)
	if err != nil {
		t.Fatal(err)
	}
	// uuid.UUID is a [16]byte underneath; it must bind as one value, not 16.
	if !strings.Contains(out, "id=$1") || !strings.Contains(out, "price=$2") || !strings.Contains(out, "IN ($3,$4)") {
		t.Fatalf("unexpected sql: %s", out)
	}
	eqSlice(t, args, []any{o.ID, o.Price, "a", "b"}, "valuer args")
}

func TestIsSliceOrArray(t *testing.T) {
	if !isSliceOrArray(reflect.ValueOf([]int{1})) {
		t.Fatalf("[]int should expand")
	}
	if isSliceOrArray(reflect.ValueOf([]byte{1})) {
		t.Fatalf("[]byte should be scalar")
	}
	if !isSliceOrArray(reflect.ValueOf([2]int{1, 2})) {
		t.Fatalf("array should expand")
	}
	if isSliceOrArray(reflect.ValueOf(uuid.New())) {
		t.Fatalf("driver.Valuer array should be scalar")
	}
	if isSliceOrArray(reflect.Value{}) {
		t.Fatalf("invalid value should not expand")
	}
}

func TestPositional_KeepsArgsVerbatim(t *testing.T) {
	p := Positional("a", nil, 3)
	_, args, err := Rebind(`VALUES (?,?,?)`, PlaceholderQuestion, p)
	if err != nil {
		t.Fatal(err)
	}
	eqSlice(t, args, []any{"a", nil, 3}, "positional verbatim")
}

func TestParams_ShapeControlsNamedResolution(t *testing.T) {
	// Only the Fields and Named shapes resolve :name markers; Positional and
	// NoParams leave the statement text alone and pass their args through.
	type idArg struct {
		ID int `db:"id"`
	}
	in := `SELECT id FROM t WHERE id = :id`
	cases := []struct {
		name     string
		p        Params
		resolves bool
		wantSQL  string
		wantArgs []any
	}{
		{"fields", Fields(idArg{ID: 5}), true, `SELECT id FROM t WHERE id = ?`, []any{5}},
		{"named", Named(map[string]any{"id": 5}), true, `SELECT id FROM t WHERE id = ?`, []any{5}},
		{"positional", Positional(5), false, in, []any{5}},
		{"none", NoParams, false, in, nil},
	}
	for _, tc := range cases {
		if got := tc.p.isNamed(); got != tc.resolves {
			t.Fatalf("%s: isNamed()=%v want %v", tc.name, got, tc.resolves)
		}
		out, args, err := Rebind(in, PlaceholderQuestion, tc.p)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		eq(t, out, tc.wantSQL, tc.name+" sql")
		eqSlice(t, args, tc.wantArgs, tc.name+" args")
	}
}
