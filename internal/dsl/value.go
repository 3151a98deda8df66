package dsl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/decimal"
)

// Kind tags the variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindDate
	KindMap
	KindList
)

var kindNames = [...]string{"null", "number", "string", "bool", "date", "map", "list"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is an immutable runtime value. Maps and lists are never modified after construction.
type Value struct {
	kind Kind
	num  decimal.Decimal
	str  string
	b    bool
	t    time.Time
	m    map[string]Value
	l    []Value
}

var Null = Value{}

func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }
func String(s string) Value          { return Value{kind: KindString, str: s} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Map(m map[string]Value) Value   { return Value{kind: KindMap, m: m} }
func List(l []Value) Value           { return Value{kind: KindList, l: l} }

// Date builds a date value truncated to the UTC day.
func Date(t time.Time) Value {
	u := t.UTC()
	return Value{kind: KindDate, t: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Num() (decimal.Decimal, bool)     { return v.num, v.kind == KindNumber }
func (v Value) Str() (string, bool)              { return v.str, v.kind == KindString }
func (v Value) Bool() (bool, bool)               { return v.b, v.kind == KindBool }
func (v Value) Time() (time.Time, bool)          { return v.t, v.kind == KindDate }
func (v Value) Fields() (map[string]Value, bool) { return v.m, v.kind == KindMap }
func (v Value) Items() ([]Value, bool)           { return v.l, v.kind == KindList }

// Field returns a map entry.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	f, ok := v.m[name]
	return f, ok
}

// String formats scalars for concatenation and descriptions.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+v.m[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindList:
		parts := make([]string, 0, len(v.l))
		for _, it := range v.l {
			parts = append(parts, it.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "null"
}

// Interface converts v to plain Go data for JSON. Numbers become json.Number so no
// precision is lost.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return json.Number(v.num.String())
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, it := range v.m {
			out[k] = it.Interface()
		}
		return out
	case KindList:
		out := make([]any, 0, len(v.l))
		for _, it := range v.l {
			out = append(out, it.Interface())
		}
		return out
	}
	return nil
}

// FromAny converts decoded JSON (or equivalent Go data) into a Value.
// Floats are converted through their shortest decimal text, never used for arithmetic.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null, nil
	case Value:
		return t, nil
	case decimal.Decimal:
		return Number(t), nil
	case json.Number:
		d, err := decimal.Parse(t.String())
		if err != nil {
			return Null, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return Number(d), nil
	case int:
		return intValue(int64(t))
	case int64:
		return intValue(t)
	case float64:
		d, err := decimal.Parse(strconv.FormatFloat(t, 'f', -1, 64))
		if err != nil {
			return Null, fmt.Errorf("invalid number %v: %w", t, err)
		}
		return Number(d), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case time.Time:
		return Date(t), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Null, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = v
		}
		return Map(m), nil
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, it := range t {
			m[k] = String(it)
		}
		return Map(m), nil
	case []any:
		l := make([]Value, 0, len(t))
		for i, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Null, fmt.Errorf("[%d]: %w", i, err)
			}
			l = append(l, v)
		}
		return List(l), nil
	}
	return Null, fmt.Errorf("unsupported value type %T", x)
}

func intValue(n int64) (Value, error) {
	d, err := decimal.New(n, 0)
	if err != nil {
		return Null, err
	}
	return Number(d), nil
}

// Scope is an immutable identifier -> Value context. With returns a copy.
type Scope struct {
	vars map[string]Value
}

// NewScope copies vars into a new scope.
func NewScope(vars map[string]Value) Scope {
	m := make(map[string]Value, len(vars))
	for k, v := range vars {
		m[k] = v
	}
	return Scope{vars: m}
}

// With returns a new scope with name bound to v.
func (s Scope) With(name string, v Value) Scope {
	m := make(map[string]Value, len(s.vars)+1)
	for k, it := range s.vars {
		m[k] = it
	}
	m[name] = v
	return Scope{vars: m}
}

// Lookup resolves a root identifier.
func (s Scope) Lookup(name string) (Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns the bound identifiers in sorted order.
func (s Scope) Names() []string {
	out := make([]string, 0, len(s.vars))
	for k := range s.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Export converts the scope to plain data for previews.
func (s Scope) Export() map[string]any {
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v.Interface()
	}
	return out
}
