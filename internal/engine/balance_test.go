package engine

import (
	"errors"
	"testing"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

func debit(acc, amt string) ledger.EntryLine {
	return ledger.EntryLine{AccountCode: acc, Debit: dec(amt), Credit: decimal.Zero}
}

func credit(acc, amt string) ledger.EntryLine {
	return ledger.EntryLine{AccountCode: acc, Debit: decimal.Zero, Credit: dec(amt)}
}

func entryOf(currency string, lines ...ledger.EntryLine) ledger.JournalEntry {
	return ledger.JournalEntry{Currency: currency, Status: ledger.StatusDraft, Lines: lines}
}

func TestTolerance(t *testing.T) {
	tol, err := Tolerance("COP", 1)
	require.NoError(t, err)
	assertDec(t, "0.01", tol)

	tol, err = Tolerance("JPY", 1)
	require.NoError(t, err)
	assertDec(t, "1", tol)

	_, err = Tolerance("XXZ1", 1)
	assert.True(t, errors.Is(err, errs.ErrInvalid))
}

func TestCheckTolerance(t *testing.T) {
	tol := dec("0.01")
	cases := []struct {
		name     string
		entry    ledger.JournalEntry
		balanced bool
		diff     string
	}{
		{"exact", entryOf("COP", debit("1", "100"), credit("2", "100")), true, "0"},
		{"within tolerance", entryOf("COP", debit("1", "100.004"), credit("2", "100")), true, "0.004"},
		{"at tolerance", entryOf("COP", debit("1", "100.01"), credit("2", "100")), false, "0.01"},
		{"credit heavy", entryOf("COP", debit("1", "99"), credit("2", "100")), false, "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Check(tc.entry, tol)
			assert.Equal(t, tc.balanced, res.Balanced)
			assertDec(t, tc.diff, res.Difference)
			assert.Empty(t, res.Issues)
		})
	}
}

func TestCheckIssuesBlockPosting(t *testing.T) {
	tol := dec("0.01")

	twoSided := debit("1", "10")
	twoSided.Credit = dec("10")
	cases := []struct {
		name  string
		entry ledger.JournalEntry
	}{
		{"negative", entryOf("COP", debit("1", "-10"), credit("2", "-10"))},
		{"zero", entryOf("COP", debit("1", "0"), credit("2", "0"))},
		{"two sided", entryOf("COP", twoSided, debit("3", "5"), credit("4", "5"))},
		{"empty account", entryOf("COP", debit("", "10"), credit("2", "10"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Check(tc.entry, tol)
			assert.True(t, res.Balanced)
			assert.NotEmpty(t, res.Issues)
			assert.False(t, res.Postable())

			var ue *errs.UnbalancedEntry
			require.True(t, errors.As(res.Err(), &ue))
			assert.NotEmpty(t, ue.Reason)
		})
	}

	single := Check(entryOf("COP", debit("1", "0")), tol)
	assert.False(t, single.Postable())
	empty := Check(entryOf("COP"), tol)
	assert.True(t, empty.Balanced)
	assert.False(t, empty.Postable())
}

func TestSettleFoldsResidualIntoLargestShortLine(t *testing.T) {
	e := entryOf("COP",
		debit("5105", "33.333"),
		debit("5110", "33.333"),
		debit("5115", "33.334"),
		credit("2205", "100"),
	)
	out, err := Settle(e)
	require.NoError(t, err)

	assertDec(t, "33.34", out.Lines[0].Debit)
	assertDec(t, "33.33", out.Lines[1].Debit)
	assertDec(t, "33.33", out.Lines[2].Debit)
	assertDec(t, "100", out.Lines[3].Credit)

	res := Check(out, dec("0.01"))
	assert.True(t, res.Difference.IsZero())
	assert.True(t, res.Postable())

	// the input is left untouched
	assertDec(t, "33.333", e.Lines[0].Debit)
}

func TestSettleRoundsHalfToEven(t *testing.T) {
	out, err := Settle(entryOf("USD", debit("1", "10.005"), credit("2", "10.005")))
	require.NoError(t, err)
	assertDec(t, "10.00", out.Lines[0].Debit)
	assertDec(t, "10.00", out.Lines[1].Credit)
}

func TestSettleRejectsUnbalanced(t *testing.T) {
	_, err := Settle(entryOf("COP", debit("1", "100"), credit("2", "99")))
	var ue *errs.UnbalancedEntry
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "1", ue.Difference)
	assert.True(t, errors.Is(err, errs.ErrUnbalancedEntry))
}

func TestSettleRejectsLineRoundingToZero(t *testing.T) {
	_, err := Settle(entryOf("COP",
		debit("1", "100"),
		debit("2", "0.004"),
		credit("3", "100.004"),
	))
	assert.True(t, errors.Is(err, errs.ErrUnbalancedEntry))
}
