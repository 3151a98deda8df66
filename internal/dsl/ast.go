package dsl

import (
	"fmt"

	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/ledger"
)

// Pos is a 1-indexed line/column location in template source.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// ExprKind tags the variant an Expr node holds.
type ExprKind uint8

const (
	ExprNumber ExprKind = iota + 1 // Num
	ExprString                     // Str
	ExprBool                       // Bool
	ExprIdent                      // Name
	ExprField                      // X.Name
	ExprIndex                      // X[Y]
	ExprUnary                      // Op X
	ExprBinary                     // X Op Y
	ExprCall                       // Name(Args...)
)

// Op is a unary or binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpAnd Op = "and"
	OpOr  Op = "or"
	OpNot Op = "not"
	OpNeg Op = "neg"
)

// Expr is a tagged-variant expression node. Only the fields relevant to Kind are set.
type Expr struct {
	Kind ExprKind
	Pos  Pos
	Num  decimal.Decimal
	Str  string
	Bool bool
	Name string
	Op   Op
	X    *Expr
	Y    *Expr
	Args []*Expr
}

// Let is a `let name = expr` declaration.
type Let struct {
	Name string
	Expr *Expr
	Pos  Pos
}

// Rule is a `require expr : "message"` validation.
type Rule struct {
	Index   int
	Expr    *Expr
	Message string
	Pos     Pos
}

// MetaAttr is a `metadata.a.b = expr` line attribute.
type MetaAttr struct {
	Key  string
	Expr *Expr
	Pos  Pos
}

// LineSpec is one debit or credit statement of the entry block.
type LineSpec struct {
	Index       int
	Side        ledger.Side
	Account     *Expr
	Amount      *Expr
	Description *Expr
	CostCenter  *Expr
	Metadata    []MetaAttr
	Pos         Pos
}

// Action is a call statement of the after block.
type Action struct {
	Name string
	Args []*Expr
	Pos  Pos
}

// CompiledTemplate is the immutable result of Compile. It is safe for concurrent use.
type CompiledTemplate struct {
	Lets  []Let
	Rules []Rule
	Lines []LineSpec
	After []Action
}

// DebitCount returns the number of debit lines.
func (ct *CompiledTemplate) DebitCount() int {
	n := 0
	for _, ln := range ct.Lines {
		if ln.Side == ledger.SideDebit {
			n++
		}
	}
	return n
}

// CreditCount returns the number of credit lines.
func (ct *CompiledTemplate) CreditCount() int { return len(ct.Lines) - ct.DebitCount() }

// Path renders a field/index chain as a dotted path, e.g. voucher.metadata.taxes.iva_19.
func Path(e *Expr) string {
	switch e.Kind {
	case ExprIdent:
		return e.Name
	case ExprField:
		return Path(e.X) + "." + e.Name
	case ExprIndex:
		return Path(e.X) + "[" + indexText(e.Y) + "]"
	default:
		return "<expr>"
	}
}

func indexText(e *Expr) string {
	switch e.Kind {
	case ExprNumber:
		return e.Num.String()
	case ExprString:
		return fmt.Sprintf("%q", e.Str)
	default:
		return Path(e)
	}
}

// isPath reports whether e is an identifier followed by field/index accesses only.
func isPath(e *Expr) bool {
	switch e.Kind {
	case ExprIdent:
		return true
	case ExprField, ExprIndex:
		return isPath(e.X)
	}
	return false
}
