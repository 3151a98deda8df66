// Package v1 wires the HTTP surface of the posting service.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/posting/internal/service/journal"
	"github.com/tinoosan/posting/internal/service/template"
	"github.com/tinoosan/posting/internal/service/voucher"
)

// Deps are the services and stores the API is built on.
type Deps struct {
	Journal     journal.Service
	Templates   template.Service
	Vouchers    voucher.Service
	Idempotency IdempotencyStore
	Ready       []ReadyChecker
}

// Options configures the optional middleware.
type Options struct {
	Auth AuthConfig
	// RateLimit is a limiter rate such as "100-M"; empty disables limiting.
	RateLimit string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	journal   journal.Service
	templates template.Service
	vouchers  voucher.Service
	idemStore IdempotencyStore
	ready     []ReadyChecker
	validate  *validator.Validate
	log       *slog.Logger
	rt        *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(deps Deps, logger *slog.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if opts.RateLimit != "" {
		lim, err := newLimiter(opts.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(rateLimit(lim, logger))
	}
	if mw := authJWT(opts.Auth); mw != nil {
		r.Use(mw)
	}

	s := &Server{
		journal:   deps.Journal,
		templates: deps.Templates,
		vouchers:  deps.Vouchers,
		idemStore: deps.Idempotency,
		ready:     deps.Ready,
		validate:  newValidator(),
		log:       logger,
		rt:        r,
	}
	s.routes()
	return s, nil
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	js := s.rt.With(requireJSON)

	// Templates
	js.With(validateBody[postTemplateRequest](s)).Post("/v1/templates", s.postTemplate)
	js.With(validateBody[checkTemplateRequest](s)).Post("/v1/templates/check", s.checkTemplate)
	js.With(validateBody[reviseTemplateRequest](s)).Post("/v1/templates/{id}/revisions", s.reviseTemplate)
	s.rt.With(s.validateOrgQuery()).Get("/v1/templates", s.listTemplates)
	s.rt.With(s.validateTemplateQuery()).Get("/v1/templates/{id}", s.getTemplate)
	s.rt.With(s.validateOrgQuery()).Delete("/v1/templates/{id}", s.deactivateTemplate)

	// Vouchers
	js.With(validateBody[postVoucherRequest](s)).Post("/v1/vouchers", s.postVoucher)
	s.rt.With(s.validateOrgQuery()).Get("/v1/vouchers", s.listVouchers)
	s.rt.With(s.validateOrgQuery()).Get("/v1/vouchers/{id}", s.getVoucher)
	js.With(validateBody[previewRequest](s)).Post("/v1/vouchers/{id}/preview", s.previewVoucher)

	// Entries
	js.With(validateBody[postEntryRequest](s)).Post("/v1/entries", s.postEntry)
	js.With(validateBody[postManualEntryRequest](s)).Post("/v1/entries/manual", s.postManualEntry)
	s.rt.With(s.validateListEntries()).Get("/v1/entries", s.listEntries)
	s.rt.With(s.validateOrgQuery()).Get("/v1/entries/{id}", s.getEntry)
	js.With(validateBody[orgRequest](s)).Post("/v1/entries/{id}/post", s.postDraft)
	js.With(validateBody[orgRequest](s)).Post("/v1/entries/{id}/recalculate", s.recalculateDraft)
	js.With(validateBody[reverseEntryRequest](s)).Post("/v1/entries/{id}/reverse", s.reverseEntry)
	s.rt.With(s.validateTrialBalance()).Get("/v1/trial-balance", s.trialBalance)

	// Dictionaries
	s.rt.Get("/v1/dictionary/actions", s.getActionsDictionary)
	s.rt.Get("/v1/dictionary/voucher-types", s.getVoucherTypesDictionary)

	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
