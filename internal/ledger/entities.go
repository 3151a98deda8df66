package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/meta"
)

// Side represents the accounting position of a journal line.
type Side string

const (
	// SideDebit records a value on the debit side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit side of an account.
	SideCredit Side = "credit"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// VoucherType enumerates the business documents that can trigger an entry.
type VoucherType string

const (
	VoucherInvoiceSale     VoucherType = "invoice_sale"
	VoucherInvoicePurchase VoucherType = "invoice_purchase"
	VoucherPayment         VoucherType = "payment"
	VoucherReceipt         VoucherType = "receipt"
	VoucherPayroll         VoucherType = "payroll"
	VoucherCreditNote      VoucherType = "credit_note"
	VoucherDebitNote       VoucherType = "debit_note"
	VoucherCustom          VoucherType = "custom"
)

// VoucherTypes lists every known voucher type in display order.
var VoucherTypes = []VoucherType{
	VoucherInvoiceSale, VoucherInvoicePurchase, VoucherPayment, VoucherReceipt,
	VoucherPayroll, VoucherCreditNote, VoucherDebitNote, VoucherCustom,
}

// Valid reports whether t is a known voucher type.
func (t VoucherType) Valid() bool {
	for _, v := range VoucherTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ThirdPartyKind distinguishes customers from suppliers.
type ThirdPartyKind string

const (
	ThirdPartyCustomer ThirdPartyKind = "customer"
	ThirdPartySupplier ThirdPartyKind = "supplier"
	ThirdPartyEmployee ThirdPartyKind = "employee"
)

// ThirdParty is the counterparty referenced by a voucher.
type ThirdParty struct {
	ID    uuid.UUID      `json:"id"`
	Name  string         `json:"name"`
	TaxID string         `json:"tax_id,omitempty"`
	Kind  ThirdPartyKind `json:"kind"`
}

// Voucher is the immutable business document an entry is generated from.
type Voucher struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Type        VoucherType
	Number      string
	Date        time.Time
	TotalAmount decimal.Decimal
	Currency    string
	Description string
	// Metadata is free-form nested data addressed by templates via dotted paths.
	Metadata   map[string]any
	ThirdParty *ThirdParty
	CreatedAt  time.Time
}

// Template is a named, versioned DSL program for one voucher type.
// (ID, Version) identifies the exact source text.
type Template struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Name        string
	VoucherType VoucherType
	Country     string
	Version     int
	Active      bool
	Source      string
	CreatedAt   time.Time
}

// Status is the lifecycle state of a journal entry.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// JournalEntry is a double-entry ledger record made of ordered lines.
type JournalEntry struct {
	ID       uuid.UUID
	OrgID    uuid.UUID
	Number   string
	Date     time.Time
	Currency string
	// Description is the entry memo shown on ledgers and reports.
	Description     string
	SourceVoucherID *uuid.UUID
	TemplateID      *uuid.UUID
	TemplateVersion int
	Status          Status
	Lines           []EntryLine
	// Actions is the after-posting to-do list produced by the template.
	Actions         []Action
	OriginalEntryID *uuid.UUID
	// Version increments on every persisted change and guards concurrent transitions.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	PostedAt  *time.Time
}

// EntryLine is one debit or credit of an entry. Exactly one of Debit/Credit is non-zero
// once the entry leaves DRAFT.
type EntryLine struct {
	AccountCode string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	CostCenter  string
	Metadata    meta.Metadata
}

// Side reports which side carries the line amount.
func (l EntryLine) Side() Side {
	if l.Debit.IsZero() && !l.Credit.IsZero() {
		return SideCredit
	}
	return SideDebit
}

// Amount returns the non-zero side's amount.
func (l EntryLine) Amount() decimal.Decimal {
	if l.Side() == SideCredit {
		return l.Credit
	}
	return l.Debit
}

// Action is a side effect requested by a template for the caller to run after posting.
type Action struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// Period returns the numbering period (YYYY-MM) an entry dated d belongs to.
func Period(d time.Time) string { return d.UTC().Format("2006-01") }

// FormatEntryNumber renders the sequential number of an entry within its period.
// Example: JE-202401-000042
func FormatEntryNumber(prefix, period string, seq int64) string {
	compact := period
	if len(period) == 7 && period[4] == '-' {
		compact = period[:4] + period[5:]
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, compact, seq)
}

// EntryFilter narrows entry listings. Zero values match everything.
type EntryFilter struct {
	Status          Status
	SourceVoucherID *uuid.UUID
	From            *time.Time
	To              *time.Time
}

// Match reports whether e passes the filter.
func (f EntryFilter) Match(e JournalEntry) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.SourceVoucherID != nil && (e.SourceVoucherID == nil || *e.SourceVoucherID != *f.SourceVoucherID) {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	return true
}
