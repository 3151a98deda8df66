package v1

import (
	"net/http"

	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/ledger"
)

// POST /v1/vouchers
func (s *Server) postVoucher(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postVoucherRequest](r)
	v, err := s.vouchers.Create(r.Context(), toVoucherDomain(req))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toVoucherResponse(v))
}

// GET /v1/vouchers?org_id=&type=
func (s *Server) listVouchers(w http.ResponseWriter, r *http.Request) {
	vt := ledger.VoucherType(r.URL.Query().Get("type"))
	if vt != "" && !vt.Valid() {
		badRequest(w, "invalid type")
		return
	}
	list, err := s.vouchers.List(r.Context(), orgFrom(r), vt)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	out := make([]voucherResponse, 0, len(list))
	for _, v := range list {
		out = append(out, toVoucherResponse(v))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/vouchers/{id}?org_id=
func (s *Server) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.vouchers.Get(r.Context(), orgFrom(r), id)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toVoucherResponse(v))
}

// POST /v1/vouchers/{id}/preview evaluates the voucher without persisting anything.
// Rule violations are part of a successful preview, not an error.
func (s *Server) previewVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := bodyFrom[previewRequest](r)
	res, t, err := s.journal.Preview(r.Context(), req.OrgID, id, req.TemplateID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	out := previewResponse{
		Template:         toTemplateResponse(t),
		Variables:        res.Scope.Export(),
		ValidationErrors: res.ValidationErrors,
		Actions:          res.Actions,
	}
	if out.ValidationErrors == nil {
		out.ValidationErrors = []engine.ValidationError{}
	}
	if res.Draft != nil {
		d := toEntryResponse(*res.Draft)
		b := toBalanceResponse(res.Balance)
		out.Draft, out.Balance = &d, &b
	}
	toJSON(w, http.StatusOK, out)
}
