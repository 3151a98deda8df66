package engine

import (
	"fmt"

	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/meta"
)

// ValidationError is one failed require rule.
type ValidationError = errs.RuleViolation

// Bind evaluates every let in source order; each sees the ones before it.
func Bind(ct *dsl.CompiledTemplate, scope dsl.Scope) (dsl.Scope, error) {
	for _, l := range ct.Lets {
		v, err := dsl.Eval(l.Expr, scope)
		if err != nil {
			return scope, err
		}
		scope = scope.With(l.Name, v)
	}
	return scope, nil
}

// Validate runs every rule, even after one fails, and returns the violations in rule order.
// A rule that cannot be evaluated, or is not boolean, is a hard error.
func Validate(ct *dsl.CompiledTemplate, scope dsl.Scope) ([]ValidationError, error) {
	var out []ValidationError
	for _, r := range ct.Rules {
		ok, err := dsl.EvalBool(r.Expr, scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			out = append(out, ValidationError{RuleIndex: r.Index, Message: r.Message})
		}
	}
	return out, nil
}

// Generate evaluates the entry block into a DRAFT entry with one line per statement,
// in template order. Amounts are kept at full precision; no sign or zero policy is applied.
func Generate(ct *dsl.CompiledTemplate, scope dsl.Scope, currency string) (ledger.JournalEntry, error) {
	entry := ledger.JournalEntry{
		Currency: currency,
		Status:   ledger.StatusDraft,
		Lines:    make([]ledger.EntryLine, 0, len(ct.Lines)),
	}
	for _, ls := range ct.Lines {
		line, err := generateLine(ls, scope)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, nil
}

func generateLine(ls dsl.LineSpec, scope dsl.Scope) (ledger.EntryLine, error) {
	var line ledger.EntryLine

	acc, err := dsl.Eval(ls.Account, scope)
	if err != nil {
		return line, err
	}
	code, ok := acc.Str()
	if !ok {
		return line, lineErr(ls, "account must be a string, got %s", acc.Kind())
	}
	line.AccountCode = code

	amt, err := dsl.Eval(ls.Amount, scope)
	if err != nil {
		return line, err
	}
	d, ok := amt.Num()
	if !ok {
		return line, lineErr(ls, "amount must be a number, got %s", amt.Kind())
	}
	line.Debit, line.Credit = d, decimal.Zero
	if ls.Side == ledger.SideCredit {
		line.Debit, line.Credit = decimal.Zero, d
	}

	if line.Description, err = scalarText(ls, ls.Description, "description", scope); err != nil {
		return line, err
	}
	if line.CostCenter, err = scalarText(ls, ls.CostCenter, "cost_center", scope); err != nil {
		return line, err
	}
	if len(ls.Metadata) > 0 {
		line.Metadata = meta.New(nil)
		for _, m := range ls.Metadata {
			v, err := dsl.Eval(m.Expr, scope)
			if err != nil {
				return line, err
			}
			line.Metadata[m.Key] = v.String()
		}
		if err := line.Metadata.Validate(); err != nil {
			return line, lineErr(ls, "%v", err)
		}
	}
	return line, nil
}

func scalarText(ls dsl.LineSpec, e *dsl.Expr, attr string, scope dsl.Scope) (string, error) {
	if e == nil {
		return "", nil
	}
	v, err := dsl.Eval(e, scope)
	if err != nil {
		return "", err
	}
	switch v.Kind() {
	case dsl.KindMap, dsl.KindList:
		return "", lineErr(ls, "%s must be a scalar, got %s", attr, v.Kind())
	}
	return v.String(), nil
}

func lineErr(ls dsl.LineSpec, format string, args ...any) error {
	return &dsl.EvalError{
		Kind: dsl.EvalType,
		Pos:  ls.Pos,
		Msg:  fmt.Sprintf("line %d: ", ls.Index) + fmt.Sprintf(format, args...),
	}
}

// Actions evaluates the after block into a to-do list for the caller. Nothing is executed.
func Actions(ct *dsl.CompiledTemplate, scope dsl.Scope) ([]ledger.Action, error) {
	out := make([]ledger.Action, 0, len(ct.After))
	for _, a := range ct.After {
		args := make([]any, 0, len(a.Args))
		for _, e := range a.Args {
			v, err := dsl.Eval(e, scope)
			if err != nil {
				return nil, err
			}
			args = append(args, v.Interface())
		}
		out = append(out, ledger.Action{Name: a.Name, Args: args})
	}
	return out, nil
}
