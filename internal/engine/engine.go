package engine

import (
	"errors"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

// Result is everything one evaluation produced. Draft is nil when evaluation failed
// or validation rules were violated.
type Result struct {
	Scope            dsl.Scope
	Draft            *ledger.JournalEntry
	ValidationErrors []ValidationError
	Balance          BalanceResult
	Actions          []ledger.Action
}

// Engine evaluates compiled templates against vouchers. It is stateless and safe for
// concurrent use.
type Engine struct {
	// ToleranceMinor is the balance tolerance in minor units of the entry currency.
	ToleranceMinor int64
	// DefaultCurrency applies to vouchers that carry none.
	DefaultCurrency string
}

// New returns an engine with the given tolerance and default currency. The tolerance
// never exceeds one minor unit, the same bound Settle enforces at posting.
func New(toleranceMinor int64, defaultCurrency string) *Engine {
	if toleranceMinor <= 0 || toleranceMinor > 1 {
		toleranceMinor = 1
	}
	return &Engine{ToleranceMinor: toleranceMinor, DefaultCurrency: defaultCurrency}
}

// Evaluate binds lets, validates rules and, when every rule holds, generates the draft
// entry and its after-actions. Evaluation errors (including FieldNotFound) return no draft.
func (e *Engine) Evaluate(ct *dsl.CompiledTemplate, v ledger.Voucher, t ledger.Template) (Result, error) {
	res, err := e.evaluate(ct, v, t)
	evaluationsTotal.WithLabelValues(outcome(res, err)).Inc()
	return res, err
}

func (e *Engine) evaluate(ct *dsl.CompiledTemplate, v ledger.Voucher, t ledger.Template) (Result, error) {
	scope, err := NewScope(v, t)
	if err != nil {
		return Result{}, err
	}
	scope, err = Bind(ct, scope)
	if err != nil {
		return Result{}, err
	}
	res := Result{Scope: scope}

	res.ValidationErrors, err = Validate(ct, scope)
	if err != nil {
		return Result{}, err
	}
	if len(res.ValidationErrors) > 0 {
		return res, nil
	}

	currency := v.Currency
	if currency == "" {
		currency = e.DefaultCurrency
	}
	tol, err := Tolerance(currency, e.ToleranceMinor)
	if err != nil {
		return Result{}, err
	}
	draft, err := Generate(ct, scope, currency)
	if err != nil {
		return Result{}, err
	}
	actions, err := Actions(ct, scope)
	if err != nil {
		return Result{}, err
	}

	draft.OrgID = v.OrgID
	draft.Date = v.Date
	draft.Description = v.Description
	if draft.Description == "" {
		draft.Description = string(v.Type) + " " + v.Number
	}
	if v.ID != uuid.Nil {
		vid := v.ID
		draft.SourceVoucherID = &vid
	}
	if t.ID != uuid.Nil {
		tid := t.ID
		draft.TemplateID = &tid
	}
	draft.TemplateVersion = t.Version
	draft.Actions = actions

	res.Draft = &draft
	res.Actions = actions
	res.Balance = Check(draft, tol)
	return res, nil
}

func outcome(res Result, err error) string {
	switch {
	case errors.Is(err, errs.ErrFieldNotFound):
		return "field_not_found"
	case err != nil:
		return "error"
	case len(res.ValidationErrors) > 0:
		return "invalid"
	case !res.Balance.Postable():
		return "unbalanced"
	}
	return "ok"
}
