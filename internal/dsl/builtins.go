package dsl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/decimal"
)

type builtinFn func(pos Pos, args []Value) (Value, error)

type builtin struct {
	minArgs int
	maxArgs int // -1 for variadic
	// lazy builtins receive unevaluated arguments and are handled by the evaluator.
	lazy bool
	fn   builtinFn
}

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"date_add":      {minArgs: 3, maxArgs: 3, fn: dateAdd},
		"format_date":   {minArgs: 2, maxArgs: 2, fn: formatDate},
		"date":          {minArgs: 1, maxArgs: 1, fn: parseDate},
		"tax_calculate": {minArgs: 2, maxArgs: 2, fn: taxCalculate},
		"round":         {minArgs: 1, maxArgs: 2, fn: round},
		"abs":           {minArgs: 1, maxArgs: 1, fn: absFn},
		"min":           {minArgs: 1, maxArgs: -1, fn: extremum(-1)},
		"max":           {minArgs: 1, maxArgs: -1, fn: extremum(1)},
		"sum":           {minArgs: 1, maxArgs: 2, fn: sumFn},
		"avg":           {minArgs: 1, maxArgs: 2, fn: avgFn},
		"count":         {minArgs: 1, maxArgs: 1, fn: countFn},
		"upper":         {minArgs: 1, maxArgs: 1, fn: caseFn(strings.ToUpper)},
		"lower":         {minArgs: 1, maxArgs: 1, fn: caseFn(strings.ToLower)},
		"str":           {minArgs: 1, maxArgs: 1, fn: strFn},
		"if":            {minArgs: 3, maxArgs: 3, lazy: true},
		"has":           {minArgs: 1, maxArgs: 1, lazy: true},
	}
}

// Builtins returns the names of all built-in functions.
func Builtins() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	return out
}

func numArg(pos Pos, fn string, i int, v Value) (decimal.Decimal, error) {
	d, ok := v.Num()
	if !ok {
		return decimal.Zero, typeErr(pos, "%s: argument %d must be a number, got %s", fn, i+1, v.Kind())
	}
	return d, nil
}

func intArg(pos Pos, fn string, i int, v Value) (int64, error) {
	d, err := numArg(pos, fn, i, v)
	if err != nil {
		return 0, err
	}
	if !d.IsInt() {
		return 0, argErr(pos, "%s: argument %d must be a whole number, got %s", fn, i+1, d)
	}
	whole, _, ok := d.Int64(0)
	if !ok {
		return 0, argErr(pos, "%s: argument %d out of range", fn, i+1)
	}
	return whole, nil
}

func dateArg(pos Pos, fn string, i int, v Value) (time.Time, error) {
	t, ok := v.Time()
	if !ok {
		return time.Time{}, typeErr(pos, "%s: argument %d must be a date, got %s", fn, i+1, v.Kind())
	}
	return t, nil
}

func strArg(pos Pos, fn string, i int, v Value) (string, error) {
	s, ok := v.Str()
	if !ok {
		return "", typeErr(pos, "%s: argument %d must be a string, got %s", fn, i+1, v.Kind())
	}
	return s, nil
}

func dateAdd(pos Pos, args []Value) (Value, error) {
	t, err := dateArg(pos, "date_add", 0, args[0])
	if err != nil {
		return Null, err
	}
	n, err := intArg(pos, "date_add", 1, args[1])
	if err != nil {
		return Null, err
	}
	unit, err := strArg(pos, "date_add", 2, args[2])
	if err != nil {
		return Null, err
	}
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "day":
		return Date(t.AddDate(0, 0, int(n))), nil
	case "week":
		return Date(t.AddDate(0, 0, int(n)*7)), nil
	case "month":
		return Date(addMonths(t, int(n))), nil
	case "year":
		return Date(addMonths(t, int(n)*12)), nil
	}
	return Null, argErr(pos, "date_add: unknown unit %q", unit)
}

// addMonths shifts t by n calendar months, clamping the day to the end of the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func formatDate(pos Pos, args []Value) (Value, error) {
	t, err := dateArg(pos, "format_date", 0, args[0])
	if err != nil {
		return Null, err
	}
	layout, err := strArg(pos, "format_date", 1, args[1])
	if err != nil {
		return Null, err
	}
	return String(renderDate(t, layout)), nil
}

// renderDate expands YYYY, YY, MM and DD in layout; everything else is copied verbatim.
func renderDate(t time.Time, layout string) string {
	var b strings.Builder
	for i := 0; i < len(layout); {
		rest := layout[i:]
		switch {
		case strings.HasPrefix(rest, "YYYY"):
			fmt.Fprintf(&b, "%04d", t.Year())
			i += 4
		case strings.HasPrefix(rest, "YY"):
			fmt.Fprintf(&b, "%02d", t.Year()%100)
			i += 2
		case strings.HasPrefix(rest, "MM"):
			fmt.Fprintf(&b, "%02d", int(t.Month()))
			i += 2
		case strings.HasPrefix(rest, "DD"):
			fmt.Fprintf(&b, "%02d", t.Day())
			i += 2
		default:
			b.WriteByte(layout[i])
			i++
		}
	}
	return b.String()
}

func parseDate(pos Pos, args []Value) (Value, error) {
	if t, ok := args[0].Time(); ok {
		return Date(t), nil
	}
	s, err := strArg(pos, "date", 0, args[0])
	if err != nil {
		return Null, err
	}
	t, perr := time.Parse("2006-01-02", s)
	if perr != nil {
		return Null, argErr(pos, "date: invalid date %q, want YYYY-MM-DD", s)
	}
	return Date(t), nil
}

var hundred = decimal.MustNew(100, 0)

// taxCalculate returns base * rate / 100 where rate is a percentage (19 for 19%).
func taxCalculate(pos Pos, args []Value) (Value, error) {
	base, err := numArg(pos, "tax_calculate", 0, args[0])
	if err != nil {
		return Null, err
	}
	rate, err := numArg(pos, "tax_calculate", 1, args[1])
	if err != nil {
		return Null, err
	}
	if rate.IsNeg() {
		return Null, argErr(pos, "tax_calculate: rate must not be negative")
	}
	prod, err := base.Mul(rate)
	if err != nil {
		return Null, overflowErr(pos, err)
	}
	q, err := prod.Quo(hundred)
	if err != nil {
		return Null, overflowErr(pos, err)
	}
	return Number(q), nil
}

func round(pos Pos, args []Value) (Value, error) {
	x, err := numArg(pos, "round", 0, args[0])
	if err != nil {
		return Null, err
	}
	places := int64(0)
	if len(args) == 2 {
		if places, err = intArg(pos, "round", 1, args[1]); err != nil {
			return Null, err
		}
		if places < 0 || places > int64(decimal.MaxScale) {
			return Null, argErr(pos, "round: places out of range")
		}
	}
	return Number(x.Round(int(places))), nil
}

func absFn(pos Pos, args []Value) (Value, error) {
	x, err := numArg(pos, "abs", 0, args[0])
	if err != nil {
		return Null, err
	}
	return Number(x.Abs()), nil
}

func extremum(sign int) builtinFn {
	name := "min"
	if sign > 0 {
		name = "max"
	}
	return func(pos Pos, args []Value) (Value, error) {
		if len(args) == 1 {
			if items, ok := args[0].Items(); ok {
				args = items
			}
		}
		if len(args) == 0 {
			return Null, argErr(pos, "%s: no values", name)
		}
		best, err := numArg(pos, name, 0, args[0])
		if err != nil {
			return Null, err
		}
		for i := 1; i < len(args); i++ {
			d, err := numArg(pos, name, i, args[i])
			if err != nil {
				return Null, err
			}
			if d.Cmp(best) == sign {
				best = d
			}
		}
		return Number(best), nil
	}
}

// listNumbers extracts numbers from a list, optionally reading field from each map item.
func listNumbers(pos Pos, fn string, args []Value) ([]decimal.Decimal, error) {
	items, ok := args[0].Items()
	if !ok {
		return nil, typeErr(pos, "%s: argument 1 must be a list, got %s", fn, args[0].Kind())
	}
	field := ""
	if len(args) == 2 {
		f, err := strArg(pos, fn, 1, args[1])
		if err != nil {
			return nil, err
		}
		field = f
	}
	out := make([]decimal.Decimal, 0, len(items))
	for i, it := range items {
		v := it
		if field != "" {
			f, ok := it.Field(field)
			if !ok {
				return nil, &EvalError{Kind: EvalFieldNotFound, Pos: pos, Path: fn + "[" + strconv.Itoa(i) + "]." + field}
			}
			v = f
		}
		d, ok := v.Num()
		if !ok {
			return nil, typeErr(pos, "%s: item %d is %s, not a number", fn, i, v.Kind())
		}
		out = append(out, d)
	}
	return out, nil
}

func sumFn(pos Pos, args []Value) (Value, error) {
	nums, err := listNumbers(pos, "sum", args)
	if err != nil {
		return Null, err
	}
	total := decimal.Zero
	for _, d := range nums {
		if total, err = total.Add(d); err != nil {
			return Null, overflowErr(pos, err)
		}
	}
	return Number(total), nil
}

func avgFn(pos Pos, args []Value) (Value, error) {
	nums, err := listNumbers(pos, "avg", args)
	if err != nil {
		return Null, err
	}
	if len(nums) == 0 {
		return Null, &EvalError{Kind: EvalDivisionByZero, Pos: pos, Msg: "avg: empty list"}
	}
	total := decimal.Zero
	for _, d := range nums {
		if total, err = total.Add(d); err != nil {
			return Null, overflowErr(pos, err)
		}
	}
	n, err := decimal.New(int64(len(nums)), 0)
	if err != nil {
		return Null, overflowErr(pos, err)
	}
	q, err := total.Quo(n)
	if err != nil {
		return Null, overflowErr(pos, err)
	}
	return Number(q), nil
}

func countFn(pos Pos, args []Value) (Value, error) {
	items, ok := args[0].Items()
	if !ok {
		return Null, typeErr(pos, "count: argument 1 must be a list, got %s", args[0].Kind())
	}
	return intValue(int64(len(items)))
}

func caseFn(f func(string) string) builtinFn {
	return func(pos Pos, args []Value) (Value, error) {
		s, err := strArg(pos, "upper/lower", 0, args[0])
		if err != nil {
			return Null, err
		}
		return String(f(s)), nil
	}
}

func strFn(pos Pos, args []Value) (Value, error) {
	switch args[0].Kind() {
	case KindMap, KindList:
		return Null, typeErr(pos, "str: cannot format %s", args[0].Kind())
	}
	return String(args[0].String()), nil
}
