package dsl

import (
	"fmt"

	"github.com/tinoosan/posting/internal/dictionary"
)

// Root identifiers available to every template.
const (
	RootVoucher  = "voucher"
	RootTemplate = "template"
)

// Compile lexes, parses and checks source. On failure the returned error is a
// CompileErrors holding every problem found, sorted by position.
func Compile(source string) (*CompiledTemplate, error) {
	tokens, errs := NewLexer(source).ScanAll()
	p := newParser(source, tokens)
	ct := p.parseTemplate()
	errs = append(errs, p.errs...)
	errs = append(errs, check(ct)...)
	if len(errs) > 0 {
		return nil, errs.sorted()
	}
	return ct, nil
}

// checker resolves identifiers and validates calls once the template is parsed.
type checker struct {
	errs    CompileErrors
	lets    map[string]Pos
	visible map[string]bool
}

func check(ct *CompiledTemplate) CompileErrors {
	c := &checker{
		lets:    make(map[string]Pos, len(ct.Lets)),
		visible: map[string]bool{RootVoucher: true, RootTemplate: true},
	}
	for _, l := range ct.Lets {
		if prev, dup := c.lets[l.Name]; dup {
			c.errorf(l.Pos, "duplicate let %q (first declared at %s)", l.Name, prev)
			continue
		}
		c.lets[l.Name] = l.Pos
	}
	for _, l := range ct.Lets {
		c.expr(l.Expr)
		switch {
		case l.Name == RootVoucher || l.Name == RootTemplate:
			c.errorf(l.Pos, "let %q shadows a root identifier", l.Name)
		case isBuiltin(l.Name):
			c.errorf(l.Pos, "let %q shadows a built-in function", l.Name)
		}
		c.visible[l.Name] = true
	}
	for _, r := range ct.Rules {
		c.expr(r.Expr)
	}
	for _, ln := range ct.Lines {
		for _, e := range []*Expr{ln.Account, ln.Amount, ln.Description, ln.CostCenter} {
			if e != nil {
				c.expr(e)
			}
		}
		for _, m := range ln.Metadata {
			c.expr(m.Expr)
		}
	}
	for _, a := range ct.After {
		def, ok := dictionary.Action(a.Name)
		if !ok {
			c.errorf(a.Pos, "unknown action %q", a.Name)
		} else if len(a.Args) != len(def.Params) {
			c.errorf(a.Pos, "action %s expects %d arguments, got %d", a.Name, len(def.Params), len(a.Args))
		}
		for _, arg := range a.Args {
			c.expr(arg)
		}
	}
	return c.errs
}

func (c *checker) expr(e *Expr) {
	switch e.Kind {
	case ExprIdent:
		if c.visible[e.Name] {
			return
		}
		if pos, later := c.lets[e.Name]; later {
			c.errorf(e.Pos, "forward reference to %q (declared at %s)", e.Name, pos)
			return
		}
		if isBuiltin(e.Name) {
			c.errorf(e.Pos, "%s is a function; call it as %s(...)", e.Name, e.Name)
			return
		}
		c.errorf(e.Pos, "unknown identifier %q", e.Name)
	case ExprField, ExprUnary:
		c.expr(e.X)
	case ExprIndex, ExprBinary:
		c.expr(e.X)
		c.expr(e.Y)
	case ExprCall:
		c.call(e)
	}
}

func (c *checker) call(e *Expr) {
	b, ok := builtins[e.Name]
	if !ok {
		c.errorf(e.Pos, "unknown function %q", e.Name)
	} else if n := len(e.Args); n < b.minArgs || (b.maxArgs >= 0 && n > b.maxArgs) {
		c.errorf(e.Pos, "%s expects %s, got %d", e.Name, arity(b), n)
	}
	if e.Name == "has" && len(e.Args) == 1 && !isPath(e.Args[0]) {
		c.errorf(e.Args[0].Pos, "has expects a field path such as voucher.metadata.key")
	}
	for _, a := range e.Args {
		c.expr(a)
	}
}

func (c *checker) errorf(pos Pos, format string, args ...any) {
	c.errs = append(c.errs, &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func isBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func arity(b builtin) string {
	switch {
	case b.maxArgs < 0:
		return fmt.Sprintf("at least %d arguments", b.minArgs)
	case b.minArgs == b.maxArgs && b.minArgs == 1:
		return "1 argument"
	case b.minArgs == b.maxArgs:
		return fmt.Sprintf("%d arguments", b.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", b.minArgs, b.maxArgs)
}
