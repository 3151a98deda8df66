package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
	// ErrImmutable indicates an attempt to change immutable fields
	ErrImmutable = errors.New("immutable")

	ErrCompile           = errors.New("compile_error")
	ErrFieldNotFound     = errors.New("field_not_found")
	ErrEvaluation        = errors.New("evaluation_error")
	ErrValidation        = errors.New("validation_error")
	ErrUnbalancedEntry   = errors.New("unbalanced_entry")
	ErrInvalidTransition = errors.New("invalid_state_transition")
)

// InvalidStateTransition reports a lifecycle request the entry's current state does not allow.
type InvalidStateTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

func (e *InvalidStateTransition) Unwrap() error { return ErrInvalidTransition }

// UnbalancedEntry carries the totals of an entry that cannot leave DRAFT.
type UnbalancedEntry struct {
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	Difference  string `json:"difference"`
	Reason      string `json:"reason,omitempty"`
}

func (e *UnbalancedEntry) Error() string {
	msg := fmt.Sprintf("unbalanced entry: debit %s, credit %s, difference %s", e.TotalDebit, e.TotalCredit, e.Difference)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnbalancedEntry) Unwrap() error { return ErrUnbalancedEntry }

// RuleViolation is a single failed require clause.
type RuleViolation struct {
	RuleIndex int    `json:"rule_index"`
	Message   string `json:"message"`
}

// ValidationErrors collects every violated rule of a template for one voucher.
type ValidationErrors struct {
	Violations []RuleViolation
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("rule[%d]: %s", v.RuleIndex, v.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationErrors) Unwrap() error { return ErrValidation }
