package engine

import (
	"fmt"

	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

// Issue is a line-level problem that blocks posting.
type Issue struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// BalanceResult is the outcome of Check.
type BalanceResult struct {
	Balanced    bool
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	// Difference is TotalDebit - TotalCredit.
	Difference decimal.Decimal
	Issues     []Issue
	Lines      int
}

// Postable reports whether the entry may leave DRAFT.
func (r BalanceResult) Postable() bool {
	return r.Balanced && len(r.Issues) == 0 && r.Lines >= 2
}

// Err returns nil for a postable entry and an *errs.UnbalancedEntry otherwise.
func (r BalanceResult) Err() error {
	if r.Postable() {
		return nil
	}
	reason := ""
	switch {
	case len(r.Issues) > 0:
		reason = fmt.Sprintf("line %d: %s", r.Issues[0].Line, r.Issues[0].Reason)
	case r.Lines < 2:
		reason = "an entry needs at least two lines"
	}
	return &errs.UnbalancedEntry{
		TotalDebit:  r.TotalDebit.String(),
		TotalCredit: r.TotalCredit.String(),
		Difference:  r.Difference.String(),
		Reason:      reason,
	}
}

// Scale returns the number of minor-unit digits of an ISO 4217 currency.
func Scale(currency string) (int, error) {
	c, err := money.ParseCurr(currency)
	if err != nil {
		return 0, fmt.Errorf("currency %q: %w", currency, errs.ErrInvalid)
	}
	return c.Scale(), nil
}

// Tolerance returns minor minor-units of currency as a decimal, e.g. 0.01 for (USD, 1).
func Tolerance(currency string, minor int64) (decimal.Decimal, error) {
	scale, err := Scale(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, scale)
}

// Check verifies the double-entry invariant: the entry is balanced iff
// |Σdebit - Σcredit| < tolerance. It never modifies the entry.
func Check(entry ledger.JournalEntry, tolerance decimal.Decimal) BalanceResult {
	res := BalanceResult{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Lines: len(entry.Lines)}
	for i, ln := range entry.Lines {
		switch {
		case ln.AccountCode == "":
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "account is empty"})
		case !ln.Debit.IsZero() && !ln.Credit.IsZero():
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "line has both debit and credit"})
		case ln.Debit.IsNeg() || ln.Credit.IsNeg():
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "amount must be positive"})
		case ln.Debit.IsZero() && ln.Credit.IsZero():
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "amount is zero"})
		}
		var err error
		if res.TotalDebit, err = res.TotalDebit.Add(ln.Debit); err != nil {
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "debit total overflows"})
		}
		if res.TotalCredit, err = res.TotalCredit.Add(ln.Credit); err != nil {
			res.Issues = append(res.Issues, Issue{Line: i, Reason: "credit total overflows"})
		}
	}
	diff, err := res.TotalDebit.Sub(res.TotalCredit)
	if err != nil {
		res.Issues = append(res.Issues, Issue{Line: -1, Reason: "difference overflows"})
		return res
	}
	res.Difference = diff
	res.Balanced = diff.Abs().Cmp(tolerance) < 0
	return res
}

// Settle rounds every line to the currency's minor unit (half to even) and folds the
// rounding residual into the largest line of the short side, so that Σdebit == Σcredit
// exactly. Entries that are not postable within one minor unit are rejected.
func Settle(entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	scale, err := Scale(entry.Currency)
	if err != nil {
		return entry, err
	}
	unit, err := decimal.New(1, scale)
	if err != nil {
		return entry, err
	}
	if err := Check(entry, unit).Err(); err != nil {
		return entry, err
	}

	out := entry
	out.Lines = make([]ledger.EntryLine, len(entry.Lines))
	for i, ln := range entry.Lines {
		ln.Debit = ln.Debit.Round(scale)
		ln.Credit = ln.Credit.Round(scale)
		ln.Metadata = ln.Metadata.Clone()
		out.Lines[i] = ln
	}

	res := Check(out, unit)
	if !res.Difference.IsZero() {
		short := ledger.SideDebit
		if res.Difference.IsPos() {
			short = ledger.SideCredit
		}
		idx := largest(out.Lines, short)
		if idx < 0 {
			return entry, res.Err()
		}
		residual := res.Difference.Abs()
		ln := &out.Lines[idx]
		if short == ledger.SideDebit {
			ln.Debit, err = ln.Debit.Add(residual)
		} else {
			ln.Credit, err = ln.Credit.Add(residual)
		}
		if err != nil {
			return entry, err
		}
		res = Check(out, unit)
	}
	if !res.Difference.IsZero() || !res.Postable() {
		if err := res.Err(); err != nil {
			return entry, err
		}
		return entry, &errs.UnbalancedEntry{
			TotalDebit:  res.TotalDebit.String(),
			TotalCredit: res.TotalCredit.String(),
			Difference:  res.Difference.String(),
			Reason:      "residual remains after settlement",
		}
	}
	return out, nil
}

// largest returns the index of the biggest line on side, first one wins ties.
func largest(lines []ledger.EntryLine, side ledger.Side) int {
	idx := -1
	var best decimal.Decimal
	for i, ln := range lines {
		if ln.Side() != side {
			continue
		}
		if idx < 0 || ln.Amount().Cmp(best) > 0 {
			idx, best = i, ln.Amount()
		}
	}
	return idx
}
