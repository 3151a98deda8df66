// Package template implements the template lifecycle: immutable versions, one active
// version per id, and compile checks before anything is stored.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/slug"
)

type Repo interface {
	// TemplateByID returns the latest version of a template.
	TemplateByID(ctx context.Context, orgID, templateID uuid.UUID) (ledger.Template, error)
	TemplateVersion(ctx context.Context, orgID, templateID uuid.UUID, version int) (ledger.Template, error)
	ActiveTemplate(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error)
	ListTemplates(ctx context.Context, orgID uuid.UUID) ([]ledger.Template, error)
}

type Writer interface {
	// CreateTemplate stores a new (id, version) pair; an existing pair is errs.ErrConflict.
	// Storing an active version deactivates the older versions of the same id.
	CreateTemplate(ctx context.Context, t ledger.Template) (ledger.Template, error)
	SetTemplateActive(ctx context.Context, orgID, templateID uuid.UUID, active bool) error
}

type Service interface {
	ValidateCreate(t ledger.Template) error
	Create(ctx context.Context, t ledger.Template) (ledger.Template, error)
	Revise(ctx context.Context, orgID, templateID uuid.UUID, source string) (ledger.Template, error)
	Deactivate(ctx context.Context, orgID, templateID uuid.UUID) error
	// Get returns a specific version; version 0 means the latest.
	Get(ctx context.Context, orgID, templateID uuid.UUID, version int) (ledger.Template, error)
	Latest(ctx context.Context, orgID, templateID uuid.UUID) (ledger.Template, error)
	Active(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error)
	List(ctx context.Context, orgID uuid.UUID) ([]ledger.Template, error)
	Compiled(t ledger.Template) (*dsl.CompiledTemplate, error)
	Check(source string) dsl.CompileErrors
}

type service struct {
	repo   Repo
	writer Writer
	cache  *engine.TemplateCache
	log    *slog.Logger
}

func New(repo Repo, writer Writer, cache *engine.TemplateCache, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, cache: cache, log: logger}
}

func (s *service) ValidateCreate(t ledger.Template) error {
	if t.OrgID == uuid.Nil {
		return errs.ErrInvalid
	}
	if t.Name == "" {
		return errors.New("name is required")
	}
	if !slug.IsSlug(t.Name) {
		return errors.New("invalid template name")
	}
	if !t.VoucherType.Valid() {
		return errors.New("invalid voucher type")
	}
	if t.Country != "" && (len(t.Country) != 2 || strings.ToUpper(t.Country) != t.Country) {
		return errors.New("country must be an ISO 3166 alpha-2 code")
	}
	if strings.TrimSpace(t.Source) == "" {
		return errors.New("source is required")
	}
	return nil
}

// Check compiles source without storing anything and returns every error found.
func (s *service) Check(source string) dsl.CompileErrors {
	_, err := dsl.Compile(source)
	var ce dsl.CompileErrors
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func (s *service) Create(ctx context.Context, t ledger.Template) (ledger.Template, error) {
	t.Name = slug.Slugify(t.Name)
	t.Country = strings.ToUpper(strings.TrimSpace(t.Country))
	if err := s.ValidateCreate(t); err != nil {
		return ledger.Template{}, fmt.Errorf("%v: %w", err, errs.ErrInvalid)
	}
	if ce := s.Check(t.Source); len(ce) > 0 {
		return ledger.Template{}, ce
	}
	t.ID = uuid.New()
	t.Version = 1
	t.Active = true
	created, err := s.writer.CreateTemplate(ctx, t)
	if err != nil {
		return ledger.Template{}, err
	}
	s.log.Info("template created", "org_id", t.OrgID, "template_id", created.ID, "name", created.Name, "voucher_type", created.VoucherType)
	return created, nil
}

// Revise stores source as the next version of the template. The new version is active;
// drafts already generated keep the version they were built with.
func (s *service) Revise(ctx context.Context, orgID, templateID uuid.UUID, source string) (ledger.Template, error) {
	if orgID == uuid.Nil || templateID == uuid.Nil {
		return ledger.Template{}, errs.ErrInvalid
	}
	cur, err := s.repo.TemplateByID(ctx, orgID, templateID)
	if err != nil {
		return ledger.Template{}, err
	}
	if ce := s.Check(source); len(ce) > 0 {
		return ledger.Template{}, ce
	}
	next := cur
	next.Version = cur.Version + 1
	next.Source = source
	next.Active = true
	next.CreatedAt = time.Time{}
	created, err := s.writer.CreateTemplate(ctx, next)
	if err != nil {
		return ledger.Template{}, err
	}
	s.log.Info("template revised", "org_id", orgID, "template_id", templateID, "version", created.Version)
	return created, nil
}

func (s *service) Deactivate(ctx context.Context, orgID, templateID uuid.UUID) error {
	if orgID == uuid.Nil || templateID == uuid.Nil {
		return errs.ErrInvalid
	}
	if _, err := s.repo.TemplateByID(ctx, orgID, templateID); err != nil {
		return err
	}
	if err := s.writer.SetTemplateActive(ctx, orgID, templateID, false); err != nil {
		return err
	}
	s.log.Info("template deactivated", "org_id", orgID, "template_id", templateID)
	return nil
}

func (s *service) Get(ctx context.Context, orgID, templateID uuid.UUID, version int) (ledger.Template, error) {
	if orgID == uuid.Nil || templateID == uuid.Nil || version < 0 {
		return ledger.Template{}, errs.ErrInvalid
	}
	if version == 0 {
		return s.repo.TemplateByID(ctx, orgID, templateID)
	}
	return s.repo.TemplateVersion(ctx, orgID, templateID, version)
}

func (s *service) Latest(ctx context.Context, orgID, templateID uuid.UUID) (ledger.Template, error) {
	return s.Get(ctx, orgID, templateID, 0)
}

func (s *service) Active(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType, country string) (ledger.Template, error) {
	if orgID == uuid.Nil || !vt.Valid() {
		return ledger.Template{}, errs.ErrInvalid
	}
	return s.repo.ActiveTemplate(ctx, orgID, vt, strings.ToUpper(country))
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]ledger.Template, error) {
	if orgID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListTemplates(ctx, orgID)
}

func (s *service) Compiled(t ledger.Template) (*dsl.CompiledTemplate, error) {
	return s.cache.Get(t)
}
