package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/meta"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

// openClean migrates the test database, truncates every table and opens a store.
func openClean(t *testing.T) *Store {
	t.Helper()
	dsn := getTestDSN(t)
	if err := Migrate(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `truncate table entry_idempotency, entry_lines, entry_sequences, journal_entries, templates, vouchers cascade`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_VouchersAndTemplates(t *testing.T) {
	s := openClean(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	org := uuid.New()

	v := ledger.Voucher{
		ID: uuid.New(), OrgID: org, Type: ledger.VoucherInvoiceSale, Number: "FV-1",
		Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), TotalAmount: decimal.MustParse("1190000.50"),
		Currency: "cop", Metadata: map[string]any{"taxes": map[string]any{"iva_19": "190000"}},
		ThirdParty: &ledger.ThirdParty{ID: uuid.New(), Name: "ACME", Kind: ledger.ThirdPartyCustomer},
	}
	if _, err := s.CreateVoucher(ctx, v); err != nil {
		t.Fatalf("create voucher: %v", err)
	}
	if _, err := s.CreateVoucher(ctx, v); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict on duplicate voucher, got %v", err)
	}
	got, err := s.VoucherByID(ctx, org, v.ID)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if got.TotalAmount.Cmp(v.TotalAmount) != 0 || got.Currency != "COP" || got.ThirdParty == nil || got.ThirdParty.Name != "ACME" {
		t.Fatalf("voucher round trip mismatch: %+v", got)
	}

	id := uuid.New()
	t1 := ledger.Template{ID: id, OrgID: org, Name: "sale", VoucherType: ledger.VoucherInvoiceSale, Country: "CO", Version: 1, Active: true, Source: "v1"}
	if _, err := s.CreateTemplate(ctx, t1); err != nil {
		t.Fatalf("create template: %v", err)
	}
	t2 := t1
	t2.Version, t2.Source, t2.CreatedAt = 2, "v2", time.Time{}
	if _, err := s.CreateTemplate(ctx, t2); err != nil {
		t.Fatalf("revise template: %v", err)
	}
	if _, err := s.CreateTemplate(ctx, t1); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict for old version, got %v", err)
	}
	active, err := s.ActiveTemplate(ctx, org, ledger.VoucherInvoiceSale, "CO")
	if err != nil || active.Version != 2 || active.Source != "v2" {
		t.Fatalf("active template: %+v, %v", active, err)
	}
	if err := s.SetTemplateActive(ctx, org, id, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := s.ActiveTemplate(ctx, org, ledger.VoucherInvoiceSale, "CO"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found after deactivate, got %v", err)
	}
}

func TestStore_EntryLifecycle(t *testing.T) {
	s := openClean(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	org := uuid.New()

	draft := ledger.JournalEntry{
		ID: uuid.New(), OrgID: org, Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), Currency: "COP",
		Description: "sale", Status: ledger.StatusDraft,
		Lines: []ledger.EntryLine{
			{AccountCode: "1305.05", Debit: decimal.MustParse("100.005"), Credit: decimal.Zero, Metadata: meta.New(map[string]string{"invoice": "FV-1"})},
			{AccountCode: "4135.05", Debit: decimal.Zero, Credit: decimal.MustParse("100.005")},
		},
		Actions: []ledger.Action{{Name: "notify", Args: []any{"x", "1"}}},
	}
	created, err := s.CreateJournalEntry(ctx, draft)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	e, err := s.EntryByID(ctx, org, draft.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if len(e.Lines) != 2 || e.Lines[0].AccountCode != "1305.05" || e.Lines[0].Debit.Cmp(decimal.MustParse("100.005")) != 0 {
		t.Fatalf("lines not preserved: %+v", e.Lines)
	}
	if e.Lines[0].Metadata["invoice"] != "FV-1" || len(e.Actions) != 1 {
		t.Fatalf("metadata/actions not preserved: %+v %+v", e.Lines[0].Metadata, e.Actions)
	}

	if _, err := s.PostJournalEntry(ctx, e, e.Version+1, "JE"); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
	posted, err := s.PostJournalEntry(ctx, e, e.Version, "JE")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if posted.Number != "JE-202401-000001" || posted.Status != ledger.StatusPosted || posted.Version != 2 {
		t.Fatalf("unexpected posted entry: %s %s %d", posted.Number, posted.Status, posted.Version)
	}

	rev := posted
	rev.ID = uuid.New()
	rev.Number = "REV-" + posted.Number
	rev.OriginalEntryID = &posted.ID
	if _, err := s.ReverseJournalEntry(ctx, posted, posted.Version, rev); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	orig, err := s.EntryByID(ctx, org, posted.ID)
	if err != nil || orig.Status != ledger.StatusReversed {
		t.Fatalf("original not reversed: %+v, %v", orig.Status, err)
	}

	list, err := s.EntriesByOrgID(ctx, org, ledger.EntryFilter{Status: ledger.StatusPosted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != rev.ID {
		t.Fatalf("expected only the reversal to be POSTED, got %d entries", len(list))
	}

	if err := s.SaveIdempotencyKey(ctx, org, "k1", rev.ID); err != nil {
		t.Fatalf("save idem: %v", err)
	}
	if err := s.SaveIdempotencyKey(ctx, org, "k1", posted.ID); err != nil {
		t.Fatalf("save idem again: %v", err)
	}
	byKey, ok, err := s.GetEntryByIdempotencyKey(ctx, org, "k1")
	if err != nil || !ok || byKey.ID != rev.ID {
		t.Fatalf("idempotency lookup: %v %v %v", byKey.ID, ok, err)
	}
}
