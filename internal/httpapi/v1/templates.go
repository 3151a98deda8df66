package v1

import (
	"net/http"

	"github.com/tinoosan/posting/internal/ledger"
)

// POST /v1/templates
func (s *Server) postTemplate(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postTemplateRequest](r)
	t, err := s.templates.Create(r.Context(), ledger.Template{
		OrgID:       req.OrgID,
		Name:        req.Name,
		VoucherType: req.VoucherType,
		Country:     req.Country,
		Source:      req.Source,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// POST /v1/templates/check compiles source without storing it.
func (s *Server) checkTemplate(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[checkTemplateRequest](r)
	ce := s.templates.Check(req.Source)
	toJSON(w, http.StatusOK, checkTemplateResponse{Valid: len(ce) == 0, Errors: toCompileErrorItems(ce)})
}

// POST /v1/templates/{id}/revisions
func (s *Server) reviseTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	req := bodyFrom[reviseTemplateRequest](r)
	t, err := s.templates.Revise(r.Context(), req.OrgID, id, req.Source)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// GET /v1/templates?org_id=
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.List(r.Context(), orgFrom(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	out := make([]templateResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTemplateResponse(t))
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/templates/{id}?org_id=&version=
func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, _ := r.Context().Value(ctxKeyTemplateQuery).(templateQuery)
	t, err := s.templates.Get(r.Context(), q.OrgID, id, q.Version)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTemplateResponse(t))
}

// DELETE /v1/templates/{id}?org_id= deactivates every version of the template.
func (s *Server) deactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.templates.Deactivate(r.Context(), orgFrom(r), id); err != nil {
		writeServiceErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
