// Package journal implements the posting state machine: drafts generated from vouchers,
// posting with sequential numbering, recalculation and reversal.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

// Repo defines read operations needed by the service.
type Repo interface {
	VoucherByID(ctx context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error)
	// TemplateByID returns the latest version of a template.
	TemplateByID(ctx context.Context, orgID, templateID uuid.UUID) (ledger.Template, error)
	ActiveTemplate(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error)
	EntryByID(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error)
	EntriesByOrgID(ctx context.Context, orgID uuid.UUID, f ledger.EntryFilter) ([]ledger.JournalEntry, error)
}

// Writer defines write operations needed by the service. Every update carries the
// version the caller read; a stale version fails with errs.ErrConflict.
type Writer interface {
	CreateJournalEntry(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
	UpdateJournalEntry(ctx context.Context, e ledger.JournalEntry, expectedVersion int64) (ledger.JournalEntry, error)
	// PostJournalEntry allocates the next number of the entry's (org, period) sequence and
	// marks the entry POSTED in one atomic step.
	PostJournalEntry(ctx context.Context, e ledger.JournalEntry, expectedVersion int64, numberPrefix string) (ledger.JournalEntry, error)
	// ReverseJournalEntry marks orig REVERSED and inserts reversal in one atomic step.
	ReverseJournalEntry(ctx context.Context, orig ledger.JournalEntry, expectedVersion int64, reversal ledger.JournalEntry) (ledger.JournalEntry, error)
}

// Service exposes the entry lifecycle and reporting helpers.
type Service interface {
	Preview(ctx context.Context, orgID, voucherID uuid.UUID, templateID *uuid.UUID) (engine.Result, ledger.Template, error)
	CreateDraft(ctx context.Context, orgID, voucherID uuid.UUID, templateID *uuid.UUID) (ledger.JournalEntry, error)
	CreateManual(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error)
	Post(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, []ledger.Action, error)
	Recalculate(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error)
	Reverse(ctx context.Context, orgID, entryID uuid.UUID, date time.Time) (ledger.JournalEntry, error)
	ListEntries(ctx context.Context, orgID uuid.UUID, f ledger.EntryFilter) ([]ledger.JournalEntry, error)
	GetEntry(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error)
	Balance(e ledger.JournalEntry) (engine.BalanceResult, error)
	TrialBalance(ctx context.Context, orgID uuid.UUID, asOf *time.Time) ([]AccountBalance, error)
}

// Options tunes numbering.
type Options struct {
	NumberPrefix   string
	ReversalPrefix string
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	repo   Repo
	writer Writer
	engine *engine.Engine
	cache  *engine.TemplateCache
	log    *slog.Logger
	opts   Options
}

// New wires the journal service.
func New(repo Repo, writer Writer, eng *engine.Engine, cache *engine.TemplateCache, logger *slog.Logger, opts Options) Service {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "JE"
	}
	if opts.ReversalPrefix == "" {
		opts.ReversalPrefix = "REV-"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, engine: eng, cache: cache, log: logger, opts: opts}
}

// resolve loads the voucher and the template to apply: the given one, or the active
// template for the voucher's type (and country, when the voucher names one).
func (s *service) resolve(ctx context.Context, orgID, voucherID uuid.UUID, templateID *uuid.UUID) (ledger.Voucher, ledger.Template, error) {
	if orgID == uuid.Nil || voucherID == uuid.Nil {
		return ledger.Voucher{}, ledger.Template{}, errs.ErrInvalid
	}
	v, err := s.repo.VoucherByID(ctx, orgID, voucherID)
	if err != nil {
		return ledger.Voucher{}, ledger.Template{}, err
	}
	var t ledger.Template
	if templateID != nil {
		t, err = s.repo.TemplateByID(ctx, orgID, *templateID)
		if err == nil && t.VoucherType != v.Type {
			err = fmt.Errorf("template %s is for %s vouchers, not %s: %w", t.Name, t.VoucherType, v.Type, errs.ErrUnprocessable)
		}
	} else {
		t, err = s.repo.ActiveTemplate(ctx, orgID, v.Type, voucherCountry(v))
	}
	if err != nil {
		return ledger.Voucher{}, ledger.Template{}, err
	}
	return v, t, nil
}

func voucherCountry(v ledger.Voucher) string {
	if c, ok := v.Metadata["country"].(string); ok {
		return strings.ToUpper(c)
	}
	return ""
}

func (s *service) evaluate(v ledger.Voucher, t ledger.Template) (engine.Result, error) {
	ct, err := s.cache.Get(t)
	if err != nil {
		return engine.Result{}, err
	}
	return s.engine.Evaluate(ct, v, t)
}

// Preview evaluates a voucher without persisting anything.
func (s *service) Preview(ctx context.Context, orgID, voucherID uuid.UUID, templateID *uuid.UUID) (engine.Result, ledger.Template, error) {
	v, t, err := s.resolve(ctx, orgID, voucherID, templateID)
	if err != nil {
		return engine.Result{}, ledger.Template{}, err
	}
	res, err := s.evaluate(v, t)
	return res, t, err
}

// CreateDraft generates and persists a DRAFT entry. Unbalanced drafts are stored too;
// rule violations are returned as *errs.ValidationErrors and nothing is stored.
func (s *service) CreateDraft(ctx context.Context, orgID, voucherID uuid.UUID, templateID *uuid.UUID) (ledger.JournalEntry, error) {
	v, t, err := s.resolve(ctx, orgID, voucherID, templateID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	res, err := s.evaluate(v, t)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if len(res.ValidationErrors) > 0 {
		return ledger.JournalEntry{}, &errs.ValidationErrors{Violations: res.ValidationErrors}
	}
	draft := *res.Draft
	draft.ID = uuid.New()
	created, err := s.writer.CreateJournalEntry(ctx, draft)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	transitionsTotal.WithLabelValues(string(ledger.StatusDraft)).Inc()
	s.log.Info("draft created",
		"org_id", orgID, "entry_id", created.ID, "voucher_id", v.ID,
		"template", t.Name, "template_version", t.Version, "balanced", res.Balance.Balanced,
	)
	return created, nil
}

// CreateManual stores a caller-built DRAFT entry that has no source voucher.
func (s *service) CreateManual(ctx context.Context, e ledger.JournalEntry) (ledger.JournalEntry, error) {
	if e.OrgID == uuid.Nil || e.Date.IsZero() {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if _, err := engine.Scale(e.Currency); err != nil {
		return ledger.JournalEntry{}, err
	}
	if len(e.Lines) == 0 {
		return ledger.JournalEntry{}, fmt.Errorf("at least one line is required: %w", errs.ErrInvalid)
	}
	for i, ln := range e.Lines {
		if err := ln.Metadata.Validate(); err != nil {
			return ledger.JournalEntry{}, fmt.Errorf("line %d: %v: %w", i, err, errs.ErrInvalid)
		}
	}
	e.ID = uuid.New()
	e.Status = ledger.StatusDraft
	e.Number = ""
	e.SourceVoucherID = nil
	e.TemplateID = nil
	e.TemplateVersion = 0
	e.OriginalEntryID = nil
	e.PostedAt = nil
	created, err := s.writer.CreateJournalEntry(ctx, e)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	transitionsTotal.WithLabelValues(string(ledger.StatusDraft)).Inc()
	s.log.Info("manual draft created", "org_id", e.OrgID, "entry_id", created.ID)
	return created, nil
}

// Balance checks e against the configured tolerance.
func (s *service) Balance(e ledger.JournalEntry) (engine.BalanceResult, error) {
	tol, err := engine.Tolerance(e.Currency, s.engine.ToleranceMinor)
	if err != nil {
		return engine.BalanceResult{}, err
	}
	return engine.Check(e, tol), nil
}

// Post moves a DRAFT to POSTED. It returns the posted entry and its after-actions.
// A second post of the same entry fails with InvalidStateTransition and allocates nothing.
func (s *service) Post(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, []ledger.Action, error) {
	if orgID == uuid.Nil || entryID == uuid.Nil {
		return ledger.JournalEntry{}, nil, errs.ErrInvalid
	}
	e, err := s.repo.EntryByID(ctx, orgID, entryID)
	if err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	if e.Status != ledger.StatusDraft {
		return ledger.JournalEntry{}, nil, transition(e.Status, ledger.StatusPosted)
	}
	bal, err := s.Balance(e)
	if err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	if err := bal.Err(); err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	settled, err := engine.Settle(e)
	if err != nil {
		return ledger.JournalEntry{}, nil, err
	}
	posted, err := s.writer.PostJournalEntry(ctx, settled, e.Version, s.opts.NumberPrefix)
	if err != nil {
		return ledger.JournalEntry{}, nil, s.explainConflict(ctx, orgID, entryID, ledger.StatusDraft, ledger.StatusPosted, err)
	}
	transitionsTotal.WithLabelValues(string(ledger.StatusPosted)).Inc()
	s.log.Info("entry posted", "org_id", orgID, "entry_id", posted.ID, "number", posted.Number, "actions", len(posted.Actions))
	return posted, posted.Actions, nil
}

// Recalculate re-evaluates a DRAFT against the latest version of its template and
// replaces lines, description and actions in place.
func (s *service) Recalculate(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error) {
	if orgID == uuid.Nil || entryID == uuid.Nil {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	e, err := s.repo.EntryByID(ctx, orgID, entryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if e.Status != ledger.StatusDraft {
		return ledger.JournalEntry{}, transition(e.Status, ledger.StatusDraft)
	}
	if e.SourceVoucherID == nil {
		return ledger.JournalEntry{}, fmt.Errorf("manual entries have no template to recalculate: %w", errs.ErrUnprocessable)
	}
	var templateID *uuid.UUID
	if e.TemplateID != nil {
		t, err := s.repo.TemplateByID(ctx, orgID, *e.TemplateID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return ledger.JournalEntry{}, err
		}
		if err == nil && t.Active {
			templateID = &t.ID
		}
	}
	v, t, err := s.resolve(ctx, orgID, *e.SourceVoucherID, templateID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	res, err := s.evaluate(v, t)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if len(res.ValidationErrors) > 0 {
		return ledger.JournalEntry{}, &errs.ValidationErrors{Violations: res.ValidationErrors}
	}

	next := e
	next.Lines = res.Draft.Lines
	next.Description = res.Draft.Description
	next.Actions = res.Draft.Actions
	next.Currency = res.Draft.Currency
	next.Date = res.Draft.Date
	next.TemplateID = res.Draft.TemplateID
	next.TemplateVersion = res.Draft.TemplateVersion
	updated, err := s.writer.UpdateJournalEntry(ctx, next, e.Version)
	if err != nil {
		return ledger.JournalEntry{}, s.explainConflict(ctx, orgID, entryID, ledger.StatusDraft, ledger.StatusDraft, err)
	}
	s.log.Info("draft recalculated", "org_id", orgID, "entry_id", entryID, "template_version", t.Version)
	return updated, nil
}

// Reverse creates the mirror entry of a POSTED entry and flips the original to REVERSED.
func (s *service) Reverse(ctx context.Context, orgID, entryID uuid.UUID, date time.Time) (ledger.JournalEntry, error) {
	if orgID == uuid.Nil || entryID == uuid.Nil {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	orig, err := s.repo.EntryByID(ctx, orgID, entryID)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if orig.OrgID != orgID {
		return ledger.JournalEntry{}, errs.ErrForbidden
	}
	if orig.Status != ledger.StatusPosted {
		return ledger.JournalEntry{}, transition(orig.Status, ledger.StatusReversed)
	}
	now := s.opts.Now().UTC()
	if date.IsZero() {
		date = now
	}
	rev := BuildReversal(orig, uuid.New(), date, now, s.opts.ReversalPrefix)
	created, err := s.writer.ReverseJournalEntry(ctx, orig, orig.Version, rev)
	if err != nil {
		return ledger.JournalEntry{}, s.explainConflict(ctx, orgID, entryID, ledger.StatusPosted, ledger.StatusReversed, err)
	}
	transitionsTotal.WithLabelValues(string(ledger.StatusReversed)).Inc()
	s.log.Info("entry reversed", "org_id", orgID, "entry_id", orig.ID, "number", orig.Number, "reversal_id", created.ID, "reversal_number", created.Number)
	return created, nil
}

// BuildReversal returns the mirror of orig: same accounts and amounts with debit and
// credit swapped, already POSTED and linked to orig.
func BuildReversal(orig ledger.JournalEntry, id uuid.UUID, date, now time.Time, prefix string) ledger.JournalEntry {
	lines := make([]ledger.EntryLine, 0, len(orig.Lines))
	for _, ln := range orig.Lines {
		nl := ln
		nl.Debit, nl.Credit = ln.Credit, ln.Debit
		nl.Description = "Reversal - " + ln.Description
		nl.Metadata = ln.Metadata.Clone()
		lines = append(lines, nl)
	}
	origID := orig.ID
	postedAt := now
	return ledger.JournalEntry{
		ID:              id,
		OrgID:           orig.OrgID,
		Number:          prefix + orig.Number,
		Date:            date,
		Currency:        orig.Currency,
		Description:     "Reversal of " + orig.Number + " — " + orig.Description,
		SourceVoucherID: orig.SourceVoucherID,
		TemplateID:      orig.TemplateID,
		TemplateVersion: orig.TemplateVersion,
		Status:          ledger.StatusPosted,
		Lines:           lines,
		OriginalEntryID: &origID,
		PostedAt:        &postedAt,
	}
}

// explainConflict turns a lost optimistic-lock race into the state error the caller
// would have seen had it read the entry a moment later.
func (s *service) explainConflict(ctx context.Context, orgID, entryID uuid.UUID, want, to ledger.Status, err error) error {
	if !errors.Is(err, errs.ErrConflict) {
		return err
	}
	cur, gerr := s.repo.EntryByID(ctx, orgID, entryID)
	if gerr == nil && cur.Status != want {
		return transition(cur.Status, to)
	}
	return err
}

func transition(from, to ledger.Status) error {
	return &errs.InvalidStateTransition{From: string(from), To: string(to)}
}

func (s *service) ListEntries(ctx context.Context, orgID uuid.UUID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.EntriesByOrgID(ctx, orgID, f)
}

func (s *service) GetEntry(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error) {
	if orgID == uuid.Nil || entryID == uuid.Nil {
		return ledger.JournalEntry{}, errs.ErrInvalid
	}
	return s.repo.EntryByID(ctx, orgID, entryID)
}

// AccountBalance is one row of the trial balance.
type AccountBalance struct {
	AccountCode string
	Currency    string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Net returns debits minus credits.
func (b AccountBalance) Net() (decimal.Decimal, error) { return b.Debit.Sub(b.Credit) }

// TrialBalance sums POSTED and REVERSED entries per (account, currency) up to asOf.
// A reversed entry and its reversal cancel out.
func (s *service) TrialBalance(ctx context.Context, orgID uuid.UUID, asOf *time.Time) ([]AccountBalance, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	entries, err := s.repo.EntriesByOrgID(ctx, orgID, ledger.EntryFilter{To: asOf})
	if err != nil {
		return nil, err
	}
	type key struct{ account, currency string }
	sums := make(map[key]*AccountBalance)
	for _, e := range entries {
		if e.Status == ledger.StatusDraft {
			continue
		}
		for _, ln := range e.Lines {
			k := key{ln.AccountCode, e.Currency}
			b, ok := sums[k]
			if !ok {
				b = &AccountBalance{AccountCode: ln.AccountCode, Currency: e.Currency, Debit: decimal.Zero, Credit: decimal.Zero}
				sums[k] = b
			}
			if b.Debit, err = b.Debit.Add(ln.Debit); err != nil {
				return nil, err
			}
			if b.Credit, err = b.Credit.Add(ln.Credit); err != nil {
				return nil, err
			}
		}
	}
	out := make([]AccountBalance, 0, len(sums))
	for _, b := range sums {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].AccountCode < out[j].AccountCode
	})
	return out, nil
}
