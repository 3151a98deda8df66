package dsl

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/posting/internal/errs"
)

func testScope(t *testing.T) Scope {
	t.Helper()
	var meta map[string]any
	dec := json.NewDecoder(strings.NewReader(`{
		"subtotal": 1000000,
		"rate": 19,
		"items": [{"amount": 10.5}, {"amount": 4.5}, {"amount": 5}],
		"nums": [3, 1, 2],
		"nested": {"flag": true}
	}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&meta))

	voucher, err := FromAny(map[string]any{
		"number":       "FV-001",
		"total_amount": json.Number("1190000"),
		"date":         time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		"metadata":     meta,
	})
	require.NoError(t, err)
	return NewScope(map[string]Value{"voucher": voucher, "template": Map(map[string]Value{})})
}

// evalSource compiles `let x = <expr>` and evaluates it.
func evalSource(t *testing.T, expr string) (Value, error) {
	t.Helper()
	ct, err := Compile("let x = " + expr + okEntry)
	require.NoError(t, err)
	return Eval(ct.Lets[0].Expr, testScope(t))
}

func requireNum(t *testing.T, v Value, want string) {
	t.Helper()
	d, ok := v.Num()
	require.True(t, ok, "want number, got %s", v.Kind())
	w := decimal.MustParse(want)
	assert.Zero(t, d.Cmp(w), "got %s want %s", d, w)
}

func TestEvalNumbers(t *testing.T) {
	cases := []struct{ expr, want string }{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"10 / 4", "2.5"},
		{"-3 + 1", "-2"},
		{"1_000_000 - 0.01", "999999.99"},
		{"voucher.total_amount - voucher.metadata.subtotal", "190000"},
		{"tax_calculate(voucher.metadata.subtotal, 19)", "190000"},
		{"tax_calculate(100, 0.5)", "0.5"},
		{"round(2.345, 2)", "2.34"},
		{"round(2.355, 2)", "2.36"},
		{"round(2.5)", "2"},
		{"abs(-4)", "4"},
		{"min(3, 1, 2)", "1"},
		{"max(voucher.metadata.nums)", "3"},
		{"sum(voucher.metadata.items, \"amount\")", "20"},
		{"avg(voucher.metadata.nums)", "2"},
		{"count(voucher.metadata.items)", "3"},
		{"voucher.metadata.items[1].amount", "4.5"},
		{"voucher.metadata[\"rate\"]", "19"},
		{"if(voucher.metadata.rate > 10, 1, voucher.metadata.missing)", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := evalSource(t, tc.expr)
			require.NoError(t, err)
			requireNum(t, v, tc.want)
		})
	}
}

func TestEvalStringsBoolsDates(t *testing.T) {
	cases := []struct {
		expr string
		want Value
	}{
		{`"FV-" + 1`, String("FV-1")},
		{`"Invoice " + voucher.number`, String("Invoice FV-001")},
		{`upper("abc") + lower("DEF")`, String("ABCdef")},
		{`str(1.50)`, String("1.50")},
		{`format_date(voucher.date, "YYYY/MM/DD")`, String("2024/01/15")},
		{`format_date(date_add(voucher.date, 1, "month"), "YYYY-MM")`, String("2024-02")},
		{`date_add(date("2024-01-15"), 2, "weeks") == date("2024-01-29")`, Bool(true)},
		{`has(voucher.metadata.subtotal)`, Bool(true)},
		{`has(voucher.metadata.taxes.iva_19)`, Bool(false)},
		{`voucher.metadata.nested.flag and not false`, Bool(true)},
		{`false and voucher.metadata.missing`, Bool(false)},
		{`true || voucher.metadata.missing`, Bool(true)},
		{`1 == "1"`, Bool(false)},
		{`1.0 == 1`, Bool(true)},
		{`"abc" < "abd"`, Bool(true)},
		{`voucher.date > date("2023-12-31")`, Bool(true)},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := evalSource(t, tc.expr)
			require.NoError(t, err)
			assert.True(t, equal(tc.want, v), "got %s (%s)", v, v.Kind())
		})
	}
}

func TestEvalFieldNotFoundCarriesFullPath(t *testing.T) {
	for _, expr := range []string{
		"voucher.metadata.taxes.iva_19",
		"voucher.metadata.taxes.iva_19 * 2",
		"round(voucher.metadata.taxes.iva_19, 2)",
	} {
		_, err := evalSource(t, expr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrFieldNotFound))

		var ee *EvalError
		require.True(t, errors.As(err, &ee))
		assert.Equal(t, EvalFieldNotFound, ee.Kind)
		assert.Equal(t, "voucher.metadata.taxes.iva_19", ee.Path)
	}
}

func TestEvalErrors(t *testing.T) {
	cases := []struct {
		expr string
		kind EvalErrorKind
	}{
		{"1 / 0", EvalDivisionByZero},
		{`"a" * 2`, EvalType},
		{`1 < "a"`, EvalType},
		{"not 1", EvalType},
		{"voucher.number.x", EvalType},
		{"round(1.5, 1.5)", EvalArgument},
		{`date("15/01/2024")`, EvalArgument},
		{`date_add(voucher.date, 1, "fortnight")`, EvalArgument},
		{"voucher.metadata.items[7]", EvalFieldNotFound},
		{"avg(voucher.metadata.missing_list)", EvalFieldNotFound},
		{"tax_calculate(100, -1)", EvalArgument},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := evalSource(t, tc.expr)
			var ee *EvalError
			require.True(t, errors.As(err, &ee), "got %v", err)
			assert.Equal(t, tc.kind, ee.Kind)
			if tc.kind != EvalFieldNotFound {
				assert.True(t, errors.Is(err, errs.ErrEvaluation))
			}
		})
	}
}

func TestScopeWithDoesNotMutate(t *testing.T) {
	base := NewScope(map[string]Value{"a": String("x")})
	next := base.With("b", Bool(true))

	_, ok := base.Lookup("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, next.Names())
}

func TestFromAnyKeepsDecimalPrecision(t *testing.T) {
	v, err := FromAny(map[string]any{"n": json.Number("0.1"), "f": 0.1, "i": 3})
	require.NoError(t, err)
	n, _ := v.Field("n")
	f, _ := v.Field("f")
	i, _ := v.Field("i")
	requireNum(t, n, "0.1")
	requireNum(t, f, "0.1")
	requireNum(t, i, "3")

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestFormatDateKeepsLiteralText(t *testing.T) {
	cases := []struct{ layout, want string }{
		{"Q1-YYYY", "Q1-2024"},
		{"FV-2 DD", "FV-2 15"},
		{"DD Jan YYYY", "15 Jan 2024"},
		{"Mon PM 2006 YY", "Mon PM 2006 24"},
		{"YYYYMMDD", "20240315"},
		{"period YYYY/MM", "period 2024/03"},
		{"", ""},
	}
	for _, tc := range cases {
		t.Run(tc.layout, func(t *testing.T) {
			v, err := evalSource(t, `format_date(date("2024-03-15"), "`+tc.layout+`")`)
			require.NoError(t, err)
			assert.True(t, equal(String(tc.want), v), "got %s", v)
		})
	}
}

func TestDateAddClampsToMonthEnd(t *testing.T) {
	cases := []struct{ expr, want string }{
		{`date_add(date("2024-01-31"), 1, "month")`, "2024-02-29"},
		{`date_add(date("2023-01-31"), 1, "month")`, "2023-02-28"},
		{`date_add(date("2024-03-31"), -1, "month")`, "2024-02-29"},
		{`date_add(date("2024-01-31"), 3, "months")`, "2024-04-30"},
		{`date_add(date("2024-08-31"), 6, "months")`, "2025-02-28"},
		{`date_add(date("2024-02-29"), 1, "year")`, "2025-02-28"},
		{`date_add(date("2024-01-15"), 1, "month")`, "2024-02-15"},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := evalSource(t, tc.expr)
			require.NoError(t, err)
			got, ok := v.Time()
			require.True(t, ok, "want date, got %s", v.Kind())
			assert.Equal(t, tc.want, got.Format("2006-01-02"))
		})
	}
}
