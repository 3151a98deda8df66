package dsl

import (
	"errors"

	"github.com/govalues/decimal"
)

// Eval evaluates e against scope. It has no side effects.
// A missing field anywhere along a dotted path is a FieldNotFound error, never a default.
func Eval(e *Expr, scope Scope) (Value, error) {
	switch e.Kind {
	case ExprNumber:
		return Number(e.Num), nil
	case ExprString:
		return String(e.Str), nil
	case ExprBool:
		return Bool(e.Bool), nil
	case ExprIdent:
		v, ok := scope.Lookup(e.Name)
		if !ok {
			return Null, fieldNotFound(e)
		}
		return v, nil
	case ExprField:
		x, err := Eval(e.X, scope)
		if err != nil {
			return Null, widenPath(err, e)
		}
		if x.Kind() != KindMap {
			return Null, typeErr(e.Pos, "cannot read field %q of %s (%s)", e.Name, Path(e.X), x.Kind())
		}
		v, ok := x.Field(e.Name)
		if !ok {
			return Null, fieldNotFound(e)
		}
		return v, nil
	case ExprIndex:
		return evalIndex(e, scope)
	case ExprUnary:
		return evalUnary(e, scope)
	case ExprBinary:
		return evalBinary(e, scope)
	case ExprCall:
		return evalCall(e, scope)
	}
	return Null, typeErr(e.Pos, "unknown expression")
}

// EvalBool evaluates e and requires a boolean result.
func EvalBool(e *Expr, scope Scope) (bool, error) {
	v, err := Eval(e, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, typeErr(e.Pos, "expected bool, got %s", v.Kind())
	}
	return b, nil
}

func evalIndex(e *Expr, scope Scope) (Value, error) {
	x, err := Eval(e.X, scope)
	if err != nil {
		return Null, widenPath(err, e)
	}
	idx, err := Eval(e.Y, scope)
	if err != nil {
		return Null, err
	}
	switch x.Kind() {
	case KindList:
		items, _ := x.Items()
		n, err := intArg(e.Pos, "index", 0, idx)
		if err != nil {
			return Null, err
		}
		if n < 0 || n >= int64(len(items)) {
			return Null, fieldNotFound(e)
		}
		return items[n], nil
	case KindMap:
		key, ok := idx.Str()
		if !ok {
			return Null, typeErr(e.Pos, "map key must be a string, got %s", idx.Kind())
		}
		v, ok := x.Field(key)
		if !ok {
			return Null, fieldNotFound(e)
		}
		return v, nil
	}
	return Null, typeErr(e.Pos, "cannot index %s", x.Kind())
}

// widenPath reports a missing prefix as the full path the expression asked for,
// so voucher.metadata.taxes.iva_19 is named even when taxes is the missing key.
func widenPath(err error, e *Expr) error {
	var ee *EvalError
	if errors.As(err, &ee) && ee.Kind == EvalFieldNotFound {
		return &EvalError{Kind: EvalFieldNotFound, Pos: ee.Pos, Path: Path(e)}
	}
	return err
}

func evalUnary(e *Expr, scope Scope) (Value, error) {
	x, err := Eval(e.X, scope)
	if err != nil {
		return Null, err
	}
	switch e.Op {
	case OpNeg:
		d, ok := x.Num()
		if !ok {
			return Null, typeErr(e.Pos, "cannot negate %s", x.Kind())
		}
		return Number(d.Neg()), nil
	case OpNot:
		b, ok := x.Bool()
		if !ok {
			return Null, typeErr(e.Pos, "'not' needs bool, got %s", x.Kind())
		}
		return Bool(!b), nil
	}
	return Null, typeErr(e.Pos, "unknown unary operator %s", e.Op)
}

func evalBinary(e *Expr, scope Scope) (Value, error) {
	if e.Op == OpAnd || e.Op == OpOr {
		l, err := EvalBool(e.X, scope)
		if err != nil {
			return Null, err
		}
		if (e.Op == OpAnd && !l) || (e.Op == OpOr && l) {
			return Bool(l), nil
		}
		r, err := EvalBool(e.Y, scope)
		if err != nil {
			return Null, err
		}
		return Bool(r), nil
	}

	l, err := Eval(e.X, scope)
	if err != nil {
		return Null, err
	}
	r, err := Eval(e.Y, scope)
	if err != nil {
		return Null, err
	}

	switch e.Op {
	case OpEq, OpNeq:
		eq := equal(l, r)
		if e.Op == OpNeq {
			eq = !eq
		}
		return Bool(eq), nil
	case OpLt, OpLte, OpGt, OpGte:
		c, err := compare(e.Pos, l, r)
		if err != nil {
			return Null, err
		}
		switch e.Op {
		case OpLt:
			return Bool(c < 0), nil
		case OpLte:
			return Bool(c <= 0), nil
		case OpGt:
			return Bool(c > 0), nil
		default:
			return Bool(c >= 0), nil
		}
	case OpAdd:
		if l.Kind() == KindString || r.Kind() == KindString {
			if !isScalar(l) || !isScalar(r) {
				return Null, typeErr(e.Pos, "cannot concatenate %s and %s", l.Kind(), r.Kind())
			}
			return String(l.String() + r.String()), nil
		}
	}
	return arith(e, l, r)
}

func arith(e *Expr, l, r Value) (Value, error) {
	a, ok1 := l.Num()
	b, ok2 := r.Num()
	if !ok1 || !ok2 {
		return Null, typeErr(e.Pos, "operator %s needs numbers, got %s and %s", e.Op, l.Kind(), r.Kind())
	}
	var (
		out decimal.Decimal
		err error
	)
	switch e.Op {
	case OpAdd:
		out, err = a.Add(b)
	case OpSub:
		out, err = a.Sub(b)
	case OpMul:
		out, err = a.Mul(b)
	case OpDiv:
		if b.IsZero() {
			return Null, &EvalError{Kind: EvalDivisionByZero, Pos: e.Pos, Msg: "division by zero"}
		}
		out, err = a.Quo(b)
	default:
		return Null, typeErr(e.Pos, "unknown operator %s", e.Op)
	}
	if err != nil {
		return Null, overflowErr(e.Pos, err)
	}
	return Number(out), nil
}

func evalCall(e *Expr, scope Scope) (Value, error) {
	switch e.Name {
	case "if":
		cond, err := EvalBool(e.Args[0], scope)
		if err != nil {
			return Null, err
		}
		if cond {
			return Eval(e.Args[1], scope)
		}
		return Eval(e.Args[2], scope)
	case "has":
		_, err := Eval(e.Args[0], scope)
		if err == nil {
			return Bool(true), nil
		}
		var ee *EvalError
		if errors.As(err, &ee) && ee.Kind == EvalFieldNotFound {
			return Bool(false), nil
		}
		return Null, err
	}
	b, ok := builtins[e.Name]
	if !ok || b.fn == nil {
		return Null, argErr(e.Pos, "unknown function %q", e.Name)
	}
	args := make([]Value, 0, len(e.Args))
	for _, a := range e.Args {
		v, err := Eval(a, scope)
		if err != nil {
			return Null, err
		}
		args = append(args, v)
	}
	return b.fn(e.Pos, args)
}

func isScalar(v Value) bool {
	switch v.Kind() {
	case KindMap, KindList:
		return false
	}
	return true
}

func equal(l, r Value) bool {
	if l.Kind() != r.Kind() {
		return false
	}
	switch l.Kind() {
	case KindNull:
		return true
	case KindNumber:
		return l.num.Cmp(r.num) == 0
	case KindString:
		return l.str == r.str
	case KindBool:
		return l.b == r.b
	case KindDate:
		return l.t.Equal(r.t)
	case KindList:
		if len(l.l) != len(r.l) {
			return false
		}
		for i := range l.l {
			if !equal(l.l[i], r.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(l.m) != len(r.m) {
			return false
		}
		for k, lv := range l.m {
			rv, ok := r.m[k]
			if !ok || !equal(lv, rv) {
				return false
			}
		}
		return true
	}
	return false
}

func compare(pos Pos, l, r Value) (int, error) {
	if l.Kind() != r.Kind() {
		return 0, typeErr(pos, "cannot compare %s with %s", l.Kind(), r.Kind())
	}
	switch l.Kind() {
	case KindNumber:
		return l.num.Cmp(r.num), nil
	case KindString:
		switch {
		case l.str < r.str:
			return -1, nil
		case l.str > r.str:
			return 1, nil
		}
		return 0, nil
	case KindDate:
		return l.t.Compare(r.t), nil
	}
	return 0, typeErr(pos, "cannot order values of type %s", l.Kind())
}
