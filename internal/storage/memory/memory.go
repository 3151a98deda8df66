// Package memory provides an in-memory store used for development and tests.
// It implements the same versioned, sequence-allocating contract as the Postgres store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

// entryKey tracks ordering for entries per org: sorted asc by (Date, ID)
type entryKey struct {
	Date time.Time
	ID   uuid.UUID
}

type voucherKey struct {
	OrgID  uuid.UUID
	Type   ledger.VoucherType
	Number string
}

type seqKey struct {
	OrgID  uuid.UUID
	Period string
}

// Store is an in-memory implementation of the service repos and writers.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu             sync.RWMutex
	vouchers       map[uuid.UUID]ledger.Voucher
	voucherNumbers map[voucherKey]uuid.UUID
	// templates holds every version of a template, ascending by version
	templates map[uuid.UUID][]ledger.Template
	entries   map[uuid.UUID]*ledger.JournalEntry
	// Per-org sorted index of entries for ordered scans and date ranges
	entryKeysByOrg map[uuid.UUID][]entryKey
	sequences      map[seqKey]int64
	// Idempotency: orgID -> key -> entryID
	entryIdem map[uuid.UUID]map[string]uuid.UUID
	now       func() time.Time
}

// New constructs an empty in-memory store.
func New() *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	s.Reset()
	return s
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	s.vouchers = map[uuid.UUID]ledger.Voucher{}
	s.voucherNumbers = map[voucherKey]uuid.UUID{}
	s.templates = map[uuid.UUID][]ledger.Template{}
	s.entries = map[uuid.UUID]*ledger.JournalEntry{}
	s.entryKeysByOrg = map[uuid.UUID][]entryKey{}
	s.sequences = map[seqKey]int64{}
	s.entryIdem = map[uuid.UUID]map[string]uuid.UUID{}
	s.mu.Unlock()
}

// ---- vouchers ----

func (s *Store) CreateVoucher(_ context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := voucherKey{OrgID: v.OrgID, Type: v.Type, Number: v.Number}
	if _, ok := s.voucherNumbers[k]; ok {
		return ledger.Voucher{}, errs.ErrConflict
	}
	if _, ok := s.vouchers[v.ID]; ok {
		return ledger.Voucher{}, errs.ErrConflict
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	v = cloneVoucher(v)
	s.vouchers[v.ID] = v
	s.voucherNumbers[k] = v.ID
	return cloneVoucher(v), nil
}

func (s *Store) VoucherByID(_ context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[voucherID]
	if !ok || v.OrgID != orgID {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	return cloneVoucher(v), nil
}

// ListVouchers returns the org's vouchers ordered by (Date, Number).
func (s *Store) ListVouchers(_ context.Context, orgID uuid.UUID, vt ledger.VoucherType) ([]ledger.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Voucher, 0)
	for _, v := range s.vouchers {
		if v.OrgID == orgID && (vt == "" || v.Type == vt) {
			out = append(out, cloneVoucher(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

// ---- templates ----

// CreateTemplate stores a new template version. An active version deactivates the
// previous versions of the same template.
func (s *Store) CreateTemplate(_ context.Context, t ledger.Template) (ledger.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.templates[t.ID]
	if len(versions) > 0 {
		last := versions[len(versions)-1]
		if last.OrgID != t.OrgID || t.Version <= last.Version {
			return ledger.Template{}, errs.ErrConflict
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Active {
		for i := range versions {
			versions[i].Active = false
		}
	}
	s.templates[t.ID] = append(versions, t)
	return t, nil
}

// SetTemplateActive toggles the latest version; deactivation applies to every version.
func (s *Store) SetTemplateActive(_ context.Context, orgID, templateID uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.templates[templateID]
	if len(versions) == 0 || versions[0].OrgID != orgID {
		return errs.ErrNotFound
	}
	for i := range versions {
		versions[i].Active = false
	}
	versions[len(versions)-1].Active = active
	return nil
}

func (s *Store) TemplateByID(_ context.Context, orgID, templateID uuid.UUID) (ledger.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.templates[templateID]
	if len(versions) == 0 || versions[0].OrgID != orgID {
		return ledger.Template{}, errs.ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (s *Store) TemplateVersion(_ context.Context, orgID, templateID uuid.UUID, version int) (ledger.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates[templateID] {
		if t.OrgID == orgID && t.Version == version {
			return t, nil
		}
	}
	return ledger.Template{}, errs.ErrNotFound
}

// ActiveTemplate picks the active template for a voucher type. A template for the exact
// country wins over a country-less one; ties go to the most recently created.
func (s *Store) ActiveTemplate(_ context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  ledger.Template
		score = -1
	)
	for _, versions := range s.templates {
		t := versions[len(versions)-1]
		if t.OrgID != orgID || t.VoucherType != vt || !t.Active {
			continue
		}
		sc := 0
		switch {
		case country != "" && t.Country == country:
			sc = 2
		case t.Country == "" || country == "":
			sc = 1
		default:
			continue
		}
		if sc > score || (sc == score && newer(t, best)) {
			best, score = t, sc
		}
	}
	if score < 0 {
		return ledger.Template{}, errs.ErrNotFound
	}
	return best, nil
}

func newer(a, b ledger.Template) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}

// ListTemplates returns the latest version of each org template ordered by name.
func (s *Store) ListTemplates(_ context.Context, orgID uuid.UUID) ([]ledger.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Template, 0)
	for _, versions := range s.templates {
		if t := versions[len(versions)-1]; t.OrgID == orgID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// ---- journal entries ----

// CreateJournalEntry stores a new entry at version 1.
func (s *Store) CreateJournalEntry(_ context.Context, entry ledger.JournalEntry) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	return s.insertEntryLocked(entry), nil
}

func (s *Store) insertEntryLocked(entry ledger.JournalEntry) ledger.JournalEntry {
	now := s.now()
	e := cloneEntry(entry)
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now
	s.entries[e.ID] = &e
	s.insertEntryIndexLocked(e.OrgID, entryKey{Date: e.Date, ID: e.ID})
	return cloneEntry(e)
}

// currentLocked returns the stored entry when it exists and is still at expectedVersion.
func (s *Store) currentLocked(orgID, id uuid.UUID, expectedVersion int64) (*ledger.JournalEntry, error) {
	cur, ok := s.entries[id]
	if !ok || cur.OrgID != orgID {
		return nil, errs.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return nil, errs.ErrConflict
	}
	return cur, nil
}

// UpdateJournalEntry replaces a DRAFT entry's content.
func (s *Store) UpdateJournalEntry(_ context.Context, entry ledger.JournalEntry, expectedVersion int64) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.currentLocked(entry.OrgID, entry.ID, expectedVersion)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if cur.Status != ledger.StatusDraft {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	e := cloneEntry(entry)
	e.Status = ledger.StatusDraft
	e.Number = ""
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = s.now()
	e.Version = cur.Version + 1
	if !e.Date.Equal(cur.Date) {
		s.removeEntryIndexLocked(cur.OrgID, entryKey{Date: cur.Date, ID: cur.ID})
		s.insertEntryIndexLocked(e.OrgID, entryKey{Date: e.Date, ID: e.ID})
	}
	s.entries[e.ID] = &e
	return cloneEntry(e), nil
}

// PostJournalEntry numbers and posts a DRAFT atomically. The sequence only advances
// when the version check passes.
func (s *Store) PostJournalEntry(_ context.Context, entry ledger.JournalEntry, expectedVersion int64, numberPrefix string) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.currentLocked(entry.OrgID, entry.ID, expectedVersion)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if cur.Status != ledger.StatusDraft {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	period := ledger.Period(entry.Date)
	k := seqKey{OrgID: entry.OrgID, Period: period}
	s.sequences[k]++

	now := s.now()
	e := cloneEntry(entry)
	e.Number = ledger.FormatEntryNumber(numberPrefix, period, s.sequences[k])
	e.Status = ledger.StatusPosted
	e.PostedAt = &now
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = now
	e.Version = cur.Version + 1
	s.entries[e.ID] = &e
	return cloneEntry(e), nil
}

// ReverseJournalEntry flips orig to REVERSED and inserts the reversal.
func (s *Store) ReverseJournalEntry(_ context.Context, orig ledger.JournalEntry, expectedVersion int64, reversal ledger.JournalEntry) (ledger.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.currentLocked(orig.OrgID, orig.ID, expectedVersion)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	if cur.Status != ledger.StatusPosted {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	if _, ok := s.entries[reversal.ID]; ok {
		return ledger.JournalEntry{}, errs.ErrConflict
	}
	cur.Status = ledger.StatusReversed
	cur.Version++
	cur.UpdatedAt = s.now()
	return s.insertEntryLocked(reversal), nil
}

// EntriesByOrgID returns the org's entries matching f, ordered by (Date, ID).
func (s *Store) EntriesByOrgID(_ context.Context, orgID uuid.UUID, f ledger.EntryFilter) ([]ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.rangeByTimeLocked(orgID, f.From, f.To)
	out := make([]ledger.JournalEntry, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k.ID]; ok && e.OrgID == orgID && f.Match(*e) {
			out = append(out, cloneEntry(*e))
		}
	}
	return out, nil
}

// EntryByID returns a single entry for an org.
func (s *Store) EntryByID(_ context.Context, orgID, entryID uuid.UUID) (ledger.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.OrgID != orgID {
		return ledger.JournalEntry{}, errs.ErrNotFound
	}
	return cloneEntry(*e), nil
}

// GetEntryByIdempotencyKey resolves the entry created under key, if any.
func (s *Store) GetEntryByIdempotencyKey(_ context.Context, orgID uuid.UUID, key string) (ledger.JournalEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.entryIdem[orgID]; ok {
		if eid, ok2 := m[key]; ok2 {
			if e, ok3 := s.entries[eid]; ok3 {
				return cloneEntry(*e), true, nil
			}
		}
	}
	return ledger.JournalEntry{}, false, nil
}

// SaveIdempotencyKey binds key to entryID. The first binding wins.
func (s *Store) SaveIdempotencyKey(_ context.Context, orgID uuid.UUID, key string, entryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entryIdem[orgID]
	if !ok {
		m = make(map[string]uuid.UUID)
		s.entryIdem[orgID] = m
	}
	if _, exists := m[key]; !exists {
		m[key] = entryID
	}
	return nil
}

// insertEntryIndexLocked inserts k into the per-org sorted index, keeping order asc by (Date, ID).
// Caller must hold s.mu (write lock).
func (s *Store) insertEntryIndexLocked(orgID uuid.UUID, k entryKey) {
	keys := s.entryKeysByOrg[orgID]
	i := sort.Search(len(keys), func(i int) bool { return keyLess(k, keys[i]) })
	keys = append(keys, entryKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.entryKeysByOrg[orgID] = keys
}

func (s *Store) removeEntryIndexLocked(orgID uuid.UUID, k entryKey) {
	keys := s.entryKeysByOrg[orgID]
	i := sort.Search(len(keys), func(i int) bool { return !keyLess(keys[i], k) })
	if i < len(keys) && keys[i].ID == k.ID {
		s.entryKeysByOrg[orgID] = append(keys[:i], keys[i+1:]...)
	}
}

func keyLess(a, b entryKey) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID.String() < b.ID.String()
}

// rangeByTimeLocked returns a copy of keys within [from,to] inclusive for an org.
func (s *Store) rangeByTimeLocked(orgID uuid.UUID, from, to *time.Time) []entryKey {
	keys := s.entryKeysByOrg[orgID]
	start := 0
	if from != nil {
		f := *from
		start = sort.Search(len(keys), func(i int) bool { return !keys[i].Date.Before(f) })
	}
	end := len(keys)
	if to != nil {
		t := *to
		end = sort.Search(len(keys), func(i int) bool { return keys[i].Date.After(t) })
	}
	if start >= end {
		return nil
	}
	subset := make([]entryKey, end-start)
	copy(subset, keys[start:end])
	return subset
}

func cloneEntry(e ledger.JournalEntry) ledger.JournalEntry {
	lines := make([]ledger.EntryLine, len(e.Lines))
	for i, ln := range e.Lines {
		ln.Metadata = ln.Metadata.Clone()
		lines[i] = ln
	}
	e.Lines = lines
	if e.Actions != nil {
		e.Actions = append([]ledger.Action(nil), e.Actions...)
	}
	return e
}

func cloneVoucher(v ledger.Voucher) ledger.Voucher {
	if v.ThirdParty != nil {
		tp := *v.ThirdParty
		v.ThirdParty = &tp
	}
	if v.Metadata != nil {
		v.Metadata = cloneAny(v.Metadata).(map[string]any)
	}
	return v
}

// cloneAny deep-copies the maps and slices of decoded JSON metadata.
func cloneAny(x any) any {
	switch t := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = cloneAny(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = cloneAny(v)
		}
		return out
	}
	return x
}
