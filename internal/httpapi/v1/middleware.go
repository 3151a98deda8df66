package v1

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/ledger"
)

type ctxKey string

const (
	ctxKeyBody          ctxKey = "validatedBody"
	ctxKeyOrg           ctxKey = "validatedOrg"
	ctxKeyListEntries   ctxKey = "validatedListEntries"
	ctxKeyTrialBalance  ctxKey = "validatedTrialBalance"
	ctxKeyTemplateQuery ctxKey = "validatedTemplateQuery"
)

// orgScoped is implemented by request bodies that name an organization.
type orgScoped interface{ org() uuid.UUID }

func (r postTemplateRequest) org() uuid.UUID    { return r.OrgID }
func (r reviseTemplateRequest) org() uuid.UUID  { return r.OrgID }
func (r postVoucherRequest) org() uuid.UUID     { return r.OrgID }
func (r previewRequest) org() uuid.UUID         { return r.OrgID }
func (r postEntryRequest) org() uuid.UUID       { return r.OrgID }
func (r postManualEntryRequest) org() uuid.UUID { return r.OrgID }
func (r orgRequest) org() uuid.UUID             { return r.OrgID }
func (r reverseEntryRequest) org() uuid.UUID    { return r.OrgID }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("voucher_type", func(fl validator.FieldLevel) bool {
		return ledger.VoucherType(fl.Field().String()).Valid()
	})
	return v
}

// validateBody decodes a JSON body into T, runs struct validation and the org
// check, then stores the value in the request context for the handler.
func validateBody[T any](s *Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req T
			if err := decodeBody(r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if err := s.validate.Struct(req); err != nil {
				invalidRequest(w, err)
				return
			}
			if o, ok := any(req).(orgScoped); ok && !orgAllowed(r.Context(), o.org()) {
				writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyBody, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bodyFrom[T any](r *http.Request) T {
	v, _ := r.Context().Value(ctxKeyBody).(T)
	return v
}

func parseOrgQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("org_id")
	if raw == "" {
		badRequest(w, "org_id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid org_id")
		return uuid.Nil, false
	}
	if !orgAllowed(r.Context(), id) {
		writeErr(w, http.StatusForbidden, "forbidden", "forbidden")
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, raw); err != nil {
			return nil, err
		}
	}
	t = t.UTC()
	return &t, nil
}

// validateOrgQuery parses ?org_id for plain reads.
func (s *Server) validateOrgQuery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, ok := parseOrgQuery(w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyOrg, org)))
		})
	}
}

func orgFrom(r *http.Request) uuid.UUID {
	v, _ := r.Context().Value(ctxKeyOrg).(uuid.UUID)
	return v
}

type templateQuery struct {
	OrgID   uuid.UUID
	Version int
}

// validateTemplateQuery parses ?org_id and the optional ?version for GET /v1/templates/{id}.
func (s *Server) validateTemplateQuery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, ok := parseOrgQuery(w, r)
			if !ok {
				return
			}
			q := templateQuery{OrgID: org}
			if raw := r.URL.Query().Get("version"); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil || v < 1 {
					badRequest(w, "invalid version")
					return
				}
				q.Version = v
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyTemplateQuery, q)))
		})
	}
}

// validateListEntries parses the query for GET /v1/entries.
func (s *Server) validateListEntries() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, ok := parseOrgQuery(w, r)
			if !ok {
				return
			}
			q := r.URL.Query()
			lq := listEntriesQuery{OrgID: org}
			if st := q.Get("status"); st != "" {
				status := ledger.Status(strings.ToUpper(st))
				switch status {
				case ledger.StatusDraft, ledger.StatusPosted, ledger.StatusReversed:
				default:
					badRequest(w, "invalid status")
					return
				}
				lq.Filter.Status = status
			}
			if raw := q.Get("voucher_id"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					badRequest(w, "invalid voucher_id")
					return
				}
				lq.Filter.SourceVoucherID = &id
			}
			var err error
			if lq.Filter.From, err = parseTimeQuery(q.Get("from")); err != nil {
				badRequest(w, "invalid from")
				return
			}
			if lq.Filter.To, err = parseTimeQuery(q.Get("to")); err != nil {
				badRequest(w, "invalid to")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyListEntries, lq)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateTrialBalance parses GET /v1/trial-balance query.
func (s *Server) validateTrialBalance() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org, ok := parseOrgQuery(w, r)
			if !ok {
				return
			}
			asOf, err := parseTimeQuery(r.URL.Query().Get("as_of"))
			if err != nil {
				badRequest(w, "invalid as_of")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyTrialBalance, trialBalanceQuery{OrgID: org, AsOf: asOf})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// pathID parses a UUID path parameter, writing 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
