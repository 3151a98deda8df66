// Package postgres provides a pgx-backed storage implementation that satisfies
// the repository and writer interfaces used by the services.
//
// Migrations that create the expected schema are embedded under migrations/.
// Amounts travel as numeric text so no precision is lost between decimal and SQL.
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/meta"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.Parse(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("numeric %q: %w", s, err)
	}
	return d, nil
}

// --- Vouchers ---

const voucherCols = `id, org_id, type, number, date, total_amount::text, currency, description, metadata, third_party, created_at`

func scanVoucher(row pgx.Row) (ledger.Voucher, error) {
	var (
		v       ledger.Voucher
		total   string
		md, tpb []byte
	)
	if err := row.Scan(&v.ID, &v.OrgID, &v.Type, &v.Number, &v.Date, &total, &v.Currency, &v.Description, &md, &tpb, &v.CreatedAt); err != nil {
		return ledger.Voucher{}, err
	}
	var err error
	if v.TotalAmount, err = parseDec(total); err != nil {
		return ledger.Voucher{}, err
	}
	if len(md) > 0 {
		if err := decodeJSON(md, &v.Metadata); err != nil {
			return ledger.Voucher{}, fmt.Errorf("voucher metadata: %w", err)
		}
	}
	if len(tpb) > 0 && string(tpb) != "null" {
		var tp ledger.ThirdParty
		if err := json.Unmarshal(tpb, &tp); err != nil {
			return ledger.Voucher{}, fmt.Errorf("voucher third_party: %w", err)
		}
		v.ThirdParty = &tp
	}
	return v, nil
}

func (s *Store) CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	if v.Metadata == nil {
		v.Metadata = map[string]any{}
	}
	md, err := json.Marshal(v.Metadata)
	if err != nil {
		return ledger.Voucher{}, fmt.Errorf("voucher metadata: %w", err)
	}
	var tp []byte
	if v.ThirdParty != nil {
		if tp, err = json.Marshal(v.ThirdParty); err != nil {
			return ledger.Voucher{}, err
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
        insert into vouchers (id, org_id, type, number, date, total_amount, currency, description, metadata, third_party, created_at)
        values ($1,$2,$3,$4,$5,$6::numeric,$7,$8,$9,$10,$11)
    `, v.ID, v.OrgID, v.Type, v.Number, v.Date, v.TotalAmount.String(), strings.ToUpper(v.Currency), v.Description, md, tp, v.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.Voucher{}, errs.ErrConflict
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

func (s *Store) VoucherByID(ctx context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error) {
	v, err := scanVoucher(s.pool.QueryRow(ctx, `select `+voucherCols+` from vouchers where id=$1 and org_id=$2`, voucherID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	return v, err
}

func (s *Store) ListVouchers(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType) ([]ledger.Voucher, error) {
	rows, err := s.pool.Query(ctx, `
        select `+voucherCols+`
        from vouchers
        where org_id = $1 and ($2 = '' or type = $2)
        order by date asc, number asc
    `, orgID, string(vt))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Voucher, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- Templates ---

const templateCols = `id, org_id, name, voucher_type, country, version, active, source, created_at`

func scanTemplate(row pgx.Row) (ledger.Template, error) {
	var t ledger.Template
	err := row.Scan(&t.ID, &t.OrgID, &t.Name, &t.VoucherType, &t.Country, &t.Version, &t.Active, &t.Source, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Template{}, errs.ErrNotFound
	}
	return t, err
}

// CreateTemplate inserts a template version. An active version deactivates the older ones.
func (s *Store) CreateTemplate(ctx context.Context, t ledger.Template) (ledger.Template, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Template{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		owner   *uuid.UUID
		current int
	)
	if err := tx.QueryRow(ctx, `
        select (array_agg(org_id))[1], coalesce(max(version), 0) from templates where id = $1
    `, t.ID).Scan(&owner, &current); err != nil {
		return ledger.Template{}, err
	}
	if owner != nil && (*owner != t.OrgID || t.Version <= current) {
		return ledger.Template{}, errs.ErrConflict
	}
	if t.Active {
		if _, err := tx.Exec(ctx, `update templates set active = false where id = $1`, t.ID); err != nil {
			return ledger.Template{}, err
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
        insert into templates (id, version, org_id, name, voucher_type, country, active, source, created_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, t.ID, t.Version, t.OrgID, t.Name, t.VoucherType, t.Country, t.Active, t.Source, t.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.Template{}, errs.ErrConflict
	}
	if err != nil {
		return ledger.Template{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Template{}, err
	}
	return t, nil
}

func (s *Store) SetTemplateActive(ctx context.Context, orgID, templateID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `
        update templates
        set active = ($3 and version = (select max(version) from templates where id = $1))
        where id = $1 and org_id = $2
    `, templateID, orgID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) TemplateByID(ctx context.Context, orgID, templateID uuid.UUID) (ledger.Template, error) {
	return scanTemplate(s.pool.QueryRow(ctx, `
        select `+templateCols+` from templates
        where id = $1 and org_id = $2
        order by version desc limit 1
    `, templateID, orgID))
}

func (s *Store) TemplateVersion(ctx context.Context, orgID, templateID uuid.UUID, version int) (ledger.Template, error) {
	return scanTemplate(s.pool.QueryRow(ctx, `
        select `+templateCols+` from templates
        where id = $1 and org_id = $2 and version = $3
    `, templateID, orgID, version))
}

// ActiveTemplate prefers an exact country match over a country-less template, then the
// most recently created.
func (s *Store) ActiveTemplate(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error) {
	return scanTemplate(s.pool.QueryRow(ctx, `
        select `+templateCols+` from templates t
        where org_id = $1 and voucher_type = $2 and active
          and version = (select max(version) from templates v where v.id = t.id)
          and ($3 = '' or country = $3 or country = '')
        order by ($3 <> '' and country = $3) desc, created_at desc, id desc
        limit 1
    `, orgID, vt, country))
}

func (s *Store) ListTemplates(ctx context.Context, orgID uuid.UUID) ([]ledger.Template, error) {
	rows, err := s.pool.Query(ctx, `
        select `+templateCols+` from (
            select distinct on (id) `+templateCols+`
            from templates where org_id = $1
            order by id, version desc
        ) latest
        order by name, id
    `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Entry reads ---

const entryCols = `id, org_id, number, date, currency, description, source_voucher_id, template_id,
    template_version, status, actions, original_entry_id, version, created_at, updated_at, posted_at`

func scanEntry(row pgx.Row) (ledger.JournalEntry, error) {
	var (
		e       ledger.JournalEntry
		actions []byte
	)
	if err := row.Scan(&e.ID, &e.OrgID, &e.Number, &e.Date, &e.Currency, &e.Description, &e.SourceVoucherID, &e.TemplateID,
		&e.TemplateVersion, &e.Status, &actions, &e.OriginalEntryID, &e.Version, &e.CreatedAt, &e.UpdatedAt, &e.PostedAt); err != nil {
		return ledger.JournalEntry{}, err
	}
	if len(actions) > 0 {
		if err := decodeJSON(actions, &e.Actions); err != nil {
			return ledger.JournalEntry{}, fmt.Errorf("entry actions: %w", err)
		}
	}
	if len(e.Actions) == 0 {
		e.Actions = nil
	}
	return e, nil
}

// loadLines populates the lines of entries in position order.
func (s *Store) loadLines(ctx context.Context, entries []ledger.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(entries))
	idx := make(map[uuid.UUID]*ledger.JournalEntry, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
		idx[entries[i].ID] = &entries[i]
	}
	rows, err := s.pool.Query(ctx, `
        select entry_id, account_code, description, debit::text, credit::text, cost_center, metadata
        from entry_lines
        where entry_id = any($1)
        order by entry_id, position
    `, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			entryID       uuid.UUID
			ln            ledger.EntryLine
			debit, credit string
			md            []byte
		)
		if err := rows.Scan(&entryID, &ln.AccountCode, &ln.Description, &debit, &credit, &ln.CostCenter, &md); err != nil {
			return err
		}
		if ln.Debit, err = parseDec(debit); err != nil {
			return err
		}
		if ln.Credit, err = parseDec(credit); err != nil {
			return err
		}
		if len(md) > 0 {
			var m meta.Metadata
			if err := m.UnmarshalJSON(md); err == nil && len(m) > 0 {
				ln.Metadata = m
			}
		}
		if e := idx[entryID]; e != nil {
			e.Lines = append(e.Lines, ln)
		}
	}
	return rows.Err()
}

// EntriesByOrgID returns entries for an org matching f, ordered by (date, id), with lines populated.
func (s *Store) EntriesByOrgID(ctx context.Context, orgID uuid.UUID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	where := []string{"org_id = $1"}
	args := []any{orgID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.SourceVoucherID != nil {
		add("source_voucher_id = $%d", *f.SourceVoucherID)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	rows, err := s.pool.Query(ctx, `select `+entryCols+` from journal_entries where `+strings.Join(where, " and ")+` order by date asc, id asc`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]ledger.JournalEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := s.loadLines(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// EntryByID returns an entry by id for an org with lines populated.
func (s *Store) EntryByID(ctx context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `select `+entryCols+` from journal_entries where id = $1 and org_id = $2`, entryID, orgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalEntry{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	one := []ledger.JournalEntry{e}
	if err := s.loadLines(ctx, one); err != nil {
		return ledger.JournalEntry{}, err
	}
	return one[0], nil
}

// --- Entry writes ---

// CreateJournalEntry inserts an entry and its lines in a transaction.
func (s *Store) CreateJournalEntry(ctx context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	created, err := createEntry(ctx, tx, entry)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return created, nil
}

// lockEntry reads the current version and status of an entry under a row lock and
// checks it against expectedVersion and the required status.
func lockEntry(ctx context.Context, tx pgx.Tx, orgID, id uuid.UUID, expectedVersion int64, want ledger.Status) (time.Time, error) {
	var (
		version   int64
		status    ledger.Status
		createdAt time.Time
	)
	err := tx.QueryRow(ctx, `
        select version, status, created_at from journal_entries
        where id = $1 and org_id = $2
        for update
    `, id, orgID).Scan(&version, &status, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, errs.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	if version != expectedVersion || status != want {
		return time.Time{}, errs.ErrConflict
	}
	return createdAt, nil
}

// UpdateJournalEntry replaces a DRAFT entry's content and lines.
func (s *Store) UpdateJournalEntry(ctx context.Context, entry ledger.JournalEntry, expectedVersion int64) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	createdAt, err := lockEntry(ctx, tx, entry.OrgID, entry.ID, expectedVersion, ledger.StatusDraft)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	entry.Status = ledger.StatusDraft
	entry.Number = ""
	entry.CreatedAt = createdAt
	entry.UpdatedAt = time.Now().UTC()
	entry.Version = expectedVersion + 1
	if err := rewriteEntry(ctx, tx, entry); err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return entry, nil
}

// PostJournalEntry allocates the next number of the (org, period) sequence and marks the
// entry POSTED in one transaction. A failed version check rolls the allocation back.
func (s *Store) PostJournalEntry(ctx context.Context, entry ledger.JournalEntry, expectedVersion int64, numberPrefix string) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	createdAt, err := lockEntry(ctx, tx, entry.OrgID, entry.ID, expectedVersion, ledger.StatusDraft)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	period := ledger.Period(entry.Date)
	var seq int64
	if err := tx.QueryRow(ctx, `
        insert into entry_sequences (org_id, period, last_value) values ($1, $2, 1)
        on conflict (org_id, period) do update set last_value = entry_sequences.last_value + 1
        returning last_value
    `, entry.OrgID, period).Scan(&seq); err != nil {
		return ledger.JournalEntry{}, fmt.Errorf("allocate entry number: %w", err)
	}
	now := time.Now().UTC()
	entry.Number = ledger.FormatEntryNumber(numberPrefix, period, seq)
	entry.Status = ledger.StatusPosted
	entry.PostedAt = &now
	entry.CreatedAt = createdAt
	entry.UpdatedAt = now
	entry.Version = expectedVersion + 1
	if err := rewriteEntry(ctx, tx, entry); err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return entry, nil
}

// ReverseJournalEntry flips orig to REVERSED and inserts reversal in one transaction.
func (s *Store) ReverseJournalEntry(ctx context.Context, orig ledger.JournalEntry, expectedVersion int64, reversal ledger.JournalEntry) (ledger.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := lockEntry(ctx, tx, orig.OrgID, orig.ID, expectedVersion, ledger.StatusPosted); err != nil {
		return ledger.JournalEntry{}, err
	}
	if _, err := tx.Exec(ctx, `
        update journal_entries set status = 'REVERSED', version = version + 1, updated_at = now()
        where id = $1 and org_id = $2
    `, orig.ID, orig.OrgID); err != nil {
		return ledger.JournalEntry{}, err
	}
	created, err := createEntry(ctx, tx, reversal)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.JournalEntry{}, err
	}
	return created, nil
}

// createEntry inserts the entry header at version 1 and its lines within tx.
func createEntry(ctx context.Context, tx pgx.Tx, e ledger.JournalEntry) (ledger.JournalEntry, error) {
	now := time.Now().UTC()
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now
	actions, err := actionsJSON(e.Actions)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	_, err = tx.Exec(ctx, `
        insert into journal_entries (id, org_id, number, date, currency, description, source_voucher_id, template_id,
            template_version, status, actions, original_entry_id, version, created_at, updated_at, posted_at)
        values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    `, e.ID, e.OrgID, e.Number, e.Date, strings.ToUpper(e.Currency), e.Description, e.SourceVoucherID, e.TemplateID,
		e.TemplateVersion, e.Status, actions, e.OriginalEntryID, e.Version, e.CreatedAt, e.UpdatedAt, e.PostedAt)
	if isUniqueViolation(err) {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := insertLines(ctx, tx, e); err != nil {
		return ledger.JournalEntry{}, err
	}
	return e, nil
}

// rewriteEntry overwrites the header of an existing entry and replaces its lines.
func rewriteEntry(ctx context.Context, tx pgx.Tx, e ledger.JournalEntry) error {
	actions, err := actionsJSON(e.Actions)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
        update journal_entries
        set number=$3, date=$4, currency=$5, description=$6, template_id=$7, template_version=$8,
            status=$9, actions=$10, version=$11, updated_at=$12, posted_at=$13
        where id=$1 and org_id=$2
    `, e.ID, e.OrgID, e.Number, e.Date, strings.ToUpper(e.Currency), e.Description, e.TemplateID, e.TemplateVersion,
		e.Status, actions, e.Version, e.UpdatedAt, e.PostedAt)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from entry_lines where entry_id = $1`, e.ID); err != nil {
		return err
	}
	return insertLines(ctx, tx, e)
}

func insertLines(ctx context.Context, tx pgx.Tx, e ledger.JournalEntry) error {
	batch := &pgx.Batch{}
	for i, ln := range e.Lines {
		md, err := ln.Metadata.MarshalStableJSON()
		if err != nil {
			return err
		}
		batch.Queue(`
            insert into entry_lines (entry_id, position, account_code, description, debit, credit, cost_center, metadata)
            values ($1,$2,$3,$4,$5::numeric,$6::numeric,$7,$8)
        `, e.ID, i, ln.AccountCode, ln.Description, ln.Debit.String(), ln.Credit.String(), ln.CostCenter, md)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

func actionsJSON(actions []ledger.Action) ([]byte, error) {
	if actions == nil {
		actions = []ledger.Action{}
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("entry actions: %w", err)
	}
	return b, nil
}

// --- Idempotency ---

// GetEntryByIdempotencyKey resolves an entry by idempotency key for the org.
func (s *Store) GetEntryByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.JournalEntry, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
        select entry_id from entry_idempotency where org_id=$1 and key=$2
    `, orgID, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.JournalEntry{}, false, nil
	}
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	e, err := s.EntryByID(ctx, orgID, id)
	if err != nil {
		return ledger.JournalEntry{}, false, err
	}
	return e, true, nil
}

// SaveIdempotencyKey stores a mapping from (org,key) to entry id. The first mapping wins.
func (s *Store) SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, entryID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        insert into entry_idempotency (org_id, key, entry_id)
        values ($1,$2,$3)
        on conflict (org_id, key) do nothing
    `, orgID, key, entryID)
	return err
}
