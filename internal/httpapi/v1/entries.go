package v1

import (
	"net/http"
	"time"

	"github.com/tinoosan/posting/internal/ledger"
)

// withBalance attaches the live balance check to an entry response.
func (s *Server) withBalance(e ledger.JournalEntry) (entryWithBalance, error) {
	b, err := s.journal.Balance(e)
	if err != nil {
		return entryWithBalance{}, err
	}
	return entryWithBalance{entryResponse: toEntryResponse(e), Balance: toBalanceResponse(b)}, nil
}

func (s *Server) writeEntry(w http.ResponseWriter, status int, e ledger.JournalEntry) {
	out, err := s.withBalance(e)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, status, out)
}

// POST /v1/entries generates a DRAFT from a voucher. With an Idempotency-Key
// header a retried request returns the draft created by the first one.
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postEntryRequest](r)
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}
	if key != "" && s.idemStore != nil {
		if e, found, err := s.idemStore.GetEntryByIdempotencyKey(r.Context(), req.OrgID, key); err != nil {
			writeServiceErr(w, err)
			return
		} else if found {
			s.writeEntry(w, http.StatusOK, e)
			return
		}
	}
	e, err := s.journal.CreateDraft(r.Context(), req.OrgID, req.VoucherID, req.TemplateID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	if key != "" && s.idemStore != nil {
		if err := s.idemStore.SaveIdempotencyKey(r.Context(), req.OrgID, key, e.ID); err != nil {
			s.log.Error("save idempotency key", "req_id", reqID(r), "err", err)
		} else if bound, found, err := s.idemStore.GetEntryByIdempotencyKey(r.Context(), req.OrgID, key); err == nil && found && bound.ID != e.ID {
			// A concurrent request with the same key won the binding.
			s.writeEntry(w, http.StatusOK, bound)
			return
		}
	}
	s.writeEntry(w, http.StatusCreated, e)
}

// POST /v1/entries/manual
func (s *Server) postManualEntry(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postManualEntryRequest](r)
	in, err := toManualEntry(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := s.journal.CreateManual(r.Context(), in)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	s.writeEntry(w, http.StatusCreated, e)
}

// GET /v1/entries?org_id=&status=&voucher_id=&from=&to=
func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	q, _ := r.Context().Value(ctxKeyListEntries).(listEntriesQuery)
	list, err := s.journal.ListEntries(r.Context(), q.OrgID, q.Filter)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/entries/{id}?org_id=
func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := s.journal.GetEntry(r.Context(), orgFrom(r), id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	s.writeEntry(w, http.StatusOK, e)
}

// POST /v1/entries/{id}/post
func (s *Server) postDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := bodyFrom[orgRequest](r)
	e, actions, err := s.journal.Post(r.Context(), req.OrgID, id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	if actions == nil {
		actions = []ledger.Action{}
	}
	toJSON(w, http.StatusOK, postEntryResponse{Entry: toEntryResponse(e), Actions: actions})
}

// POST /v1/entries/{id}/recalculate
func (s *Server) recalculateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := bodyFrom[orgRequest](r)
	e, err := s.journal.Recalculate(r.Context(), req.OrgID, id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	s.writeEntry(w, http.StatusOK, e)
}

// POST /v1/entries/{id}/reverse
func (s *Server) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := bodyFrom[reverseEntryRequest](r)
	var date time.Time
	if req.Date != nil {
		date = req.Date.UTC()
	}
	e, err := s.journal.Reverse(r.Context(), req.OrgID, id, date)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(e))
}

// GET /v1/trial-balance?org_id=&as_of=
func (s *Server) trialBalance(w http.ResponseWriter, r *http.Request) {
	q, _ := r.Context().Value(ctxKeyTrialBalance).(trialBalanceQuery)
	rows, err := s.journal.TrialBalance(r.Context(), q.OrgID, q.AsOf)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	lines, err := toTrialBalance(rows)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, struct {
		AsOf  *time.Time         `json:"as_of,omitempty"`
		Lines []trialBalanceLine `json:"lines"`
	}{AsOf: q.AsOf, Lines: lines})
}
