package dsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tinoosan/posting/internal/errs"
)

// CompileError is a single syntax or semantic problem in template source.
type CompileError struct {
	Pos Pos
	Msg string
}

func (e *CompileError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// CompileErrors is every problem found while compiling one template version.
type CompileErrors []*CompileError

func (e CompileErrors) Error() string {
	if len(e) == 1 {
		return "compile: " + e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, ce := range e {
		msgs = append(msgs, ce.Error())
	}
	return fmt.Sprintf("compile: %d errors: %s", len(e), strings.Join(msgs, "; "))
}

func (e CompileErrors) Unwrap() error { return errs.ErrCompile }

func (e CompileErrors) sorted() CompileErrors {
	sort.SliceStable(e, func(i, j int) bool {
		if e[i].Pos.Line != e[j].Pos.Line {
			return e[i].Pos.Line < e[j].Pos.Line
		}
		return e[i].Pos.Column < e[j].Pos.Column
	})
	return e
}

// EvalErrorKind classifies evaluation failures.
type EvalErrorKind string

const (
	EvalFieldNotFound  EvalErrorKind = "field_not_found"
	EvalType           EvalErrorKind = "type_error"
	EvalDivisionByZero EvalErrorKind = "division_by_zero"
	EvalArgument       EvalErrorKind = "argument_error"
	EvalOverflow       EvalErrorKind = "overflow"
)

// EvalError is returned by Eval. FieldNotFound errors carry the full dotted path.
type EvalError struct {
	Kind EvalErrorKind
	Pos  Pos
	Path string
	Msg  string
}

func (e *EvalError) Error() string {
	if e.Kind == EvalFieldNotFound {
		return fmt.Sprintf("%s: field not found: %s", e.Pos, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

func (e *EvalError) Unwrap() error {
	if e.Kind == EvalFieldNotFound {
		return errs.ErrFieldNotFound
	}
	return errs.ErrEvaluation
}

func fieldNotFound(e *Expr) error {
	return &EvalError{Kind: EvalFieldNotFound, Pos: e.Pos, Path: Path(e)}
}

func typeErr(pos Pos, format string, args ...any) error {
	return &EvalError{Kind: EvalType, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func argErr(pos Pos, format string, args ...any) error {
	return &EvalError{Kind: EvalArgument, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func overflowErr(pos Pos, err error) error {
	return &EvalError{Kind: EvalOverflow, Pos: pos, Msg: err.Error()}
}
