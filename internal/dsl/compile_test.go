package dsl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

const okEntry = `
entry {
  debit "1" amount(1)
  credit "2" amount(1)
}
`

const saleSource = `
# Sales invoice
let subtotal = voucher.metadata.subtotal
let iva = voucher.metadata.taxes.iva_19
let total = voucher.total_amount

require total > 0 : "total must be positive"
require subtotal + iva == total : "subtotal plus IVA must equal the total"

entry {
  debit "1305.05" amount(total) {
    description = "Customer " + voucher.third_party.name
    metadata.invoice.number = voucher.number
  }
  credit "4135.05" amount(subtotal) { description = "Sales revenue"; cost_center = "CC-01" }
  credit "2408.01" amount(iva)
}

after {
  update_customer_balance(voucher.third_party.id, total)
  notify("invoice_sale.posted", voucher.number)
}
`

func TestCompileTemplate(t *testing.T) {
	ct, err := Compile(saleSource)
	require.NoError(t, err)

	require.Len(t, ct.Lets, 3)
	assert.Equal(t, []string{"subtotal", "iva", "total"}, []string{ct.Lets[0].Name, ct.Lets[1].Name, ct.Lets[2].Name})
	assert.Equal(t, "voucher.metadata.taxes.iva_19", Path(ct.Lets[1].Expr))

	require.Len(t, ct.Rules, 2)
	assert.Equal(t, 1, ct.Rules[1].Index)
	assert.Equal(t, "subtotal plus IVA must equal the total", ct.Rules[1].Message)

	require.Len(t, ct.Lines, 3)
	assert.Equal(t, 1, ct.DebitCount())
	assert.Equal(t, 2, ct.CreditCount())
	first := ct.Lines[0]
	assert.Equal(t, ledger.SideDebit, first.Side)
	assert.Equal(t, "1305.05", first.Account.Str)
	require.Len(t, first.Metadata, 1)
	assert.Equal(t, "invoice.number", first.Metadata[0].Key)
	assert.NotNil(t, ct.Lines[1].CostCenter)
	assert.Nil(t, ct.Lines[2].Description)

	require.Len(t, ct.After, 2)
	assert.Equal(t, "update_customer_balance", ct.After[0].Name)
	assert.Len(t, ct.After[1].Args, 2)
}

func TestCompileIsDeterministic(t *testing.T) {
	a, err := Compile(saleSource)
	require.NoError(t, err)
	b, err := Compile(saleSource)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompilePrecedence(t *testing.T) {
	ct, err := Compile("let x = 1 + 2 * 3 > 6 and not false or true" + okEntry)
	require.NoError(t, err)
	e := ct.Lets[0].Expr
	require.Equal(t, ExprBinary, e.Kind)
	assert.Equal(t, OpOr, e.Op)
	assert.Equal(t, OpAnd, e.X.Op)
	cmp := e.X.X
	assert.Equal(t, OpGt, cmp.Op)
	assert.Equal(t, OpAdd, cmp.X.Op)
	assert.Equal(t, OpMul, cmp.X.Y.Op)
	assert.Equal(t, OpNot, e.X.Y.Op)
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		pos  Pos
		msg  string
	}{
		{"unknown identifier", "let a = foo" + okEntry, Pos{1, 9}, `unknown identifier "foo"`},
		{"forward reference", "let a = b\nlet b = 1" + okEntry, Pos{1, 9}, `forward reference to "b" (declared at 2:1)`},
		{"duplicate let", "let a = 1\nlet a = 2" + okEntry, Pos{2, 1}, `duplicate let "a" (first declared at 1:1)`},
		{"shadowed root", "let voucher = 1" + okEntry, Pos{1, 1}, `let "voucher" shadows a root identifier`},
		{"unknown function", "let a = nope(1)" + okEntry, Pos{1, 9}, `unknown function "nope"`},
		{"arity", "let a = round()" + okEntry, Pos{1, 9}, "round expects 1 to 2 arguments, got 0"},
		{"function as value", "let a = upper" + okEntry, Pos{1, 9}, "upper is a function; call it as upper(...)"},
		{"has needs path", "let a = has(1)" + okEntry, Pos{1, 13}, "has expects a field path such as voucher.metadata.key"},
		{"missing entry", "let a = 1\n", Pos{2, 1}, "missing entry block"},
		{"two entries", okEntry + okEntry, Pos{7, 1}, "only one entry block is allowed"},
		{"empty entry", "entry { }", Pos{1, 1}, "entry block has no debit or credit lines"},
		{"missing amount", "entry {\n  debit \"1\"\n}", Pos{2, 3}, "debit line is missing amount(...)"},
		{"missing account", "entry {\n  credit amount(1)\n}", Pos{2, 3}, "credit line is missing an account"},
		{"missing both", "entry {\n  credit\n}", Pos{2, 3}, "credit line is missing both an account and amount(...)"},
		{"require message", "require true : 5" + okEntry, Pos{1, 16}, "require message must be a string literal"},
		{"let after require", "require true : \"x\"\nlet a = 1" + okEntry, Pos{2, 1}, "let declarations must come before require rules"},
		{"unclosed entry", "entry {\n  debit \"1\" amount(1)\n", Pos{3, 1}, "unmatched '{' at 1:7: entry block is not closed"},
		{"unclosed paren", "let a = (1 + 2" + okEntry, Pos{2, 1}, "expected ')' to close '(' at 1:9, got 'entry'"},
		{"unknown attribute", "entry {\n  debit \"1\" amount(1) { memo = \"x\" }\n}", Pos{2, 25}, `unknown line attribute "memo"`},
		{"unknown action", okEntry + "after { explode() }", Pos{6, 9}, `unknown action "explode"`},
		{"action arity", okEntry + "after { notify(\"x\") }", Pos{6, 9}, "action notify expects 2 arguments, got 1"},
		{"stray token", okEntry + ")", Pos{6, 1}, "expected 'let', 'require', 'entry' or 'after', got ')'"},
		{"bad escape", "let a = \"\\q\"" + okEntry, Pos{1, 9}, `unknown escape sequence \q`},
		{"chained comparison", "let a = 1 < 2 < 3" + okEntry, Pos{1, 15}, "comparisons cannot be chained; use 'and'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ct, err := Compile(tc.src)
			require.Error(t, err)
			assert.Nil(t, ct)
			assert.True(t, errors.Is(err, errs.ErrCompile))

			var ces CompileErrors
			require.True(t, errors.As(err, &ces))
			require.NotEmpty(t, ces)
			found := false
			for _, ce := range ces {
				if ce.Msg == tc.msg {
					found = true
					assert.Equal(t, tc.pos, ce.Pos, "position of %q", tc.msg)
				}
			}
			assert.True(t, found, "want %q in %v", tc.msg, ces)
		})
	}
}

func TestCompileCollectsEveryError(t *testing.T) {
	src := `let a = foo
let a = 2
require a > 0 : 1
entry {
  debit amount(1)
  credit "x" amount(1)
}
after { explode() }
`
	_, err := Compile(src)
	var ces CompileErrors
	require.True(t, errors.As(err, &ces))

	var got []Pos
	for _, ce := range ces {
		got = append(got, ce.Pos)
	}
	assert.Equal(t, []Pos{{1, 9}, {2, 1}, {3, 17}, {5, 3}, {8, 9}}, got)
}

func TestCompileIllegalTokenReportedOnce(t *testing.T) {
	_, err := Compile("let a = @" + okEntry)
	var ces CompileErrors
	require.True(t, errors.As(err, &ces))
	require.Len(t, ces, 1)
	assert.Equal(t, "unexpected character '@'", ces[0].Msg)
}
