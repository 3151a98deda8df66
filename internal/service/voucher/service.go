// Package voucher validates and stores business vouchers. Vouchers are immutable once
// stored; corrections are new vouchers.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
)

type Repo interface {
	VoucherByID(ctx context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error)
	ListVouchers(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType) ([]ledger.Voucher, error)
}

type Writer interface {
	// CreateVoucher fails with errs.ErrConflict when (org, type, number) already exists.
	CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
}

type Service interface {
	Validate(v ledger.Voucher) error
	Create(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error)
	Get(ctx context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error)
	// List returns the org's vouchers; an empty type lists all of them.
	List(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType) ([]ledger.Voucher, error)
}

type service struct {
	repo            Repo
	writer          Writer
	defaultCurrency string
	log             *slog.Logger
}

func New(repo Repo, writer Writer, defaultCurrency string, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, defaultCurrency: strings.ToUpper(defaultCurrency), log: logger}
}

func (s *service) Validate(v ledger.Voucher) error {
	if v.OrgID == uuid.Nil {
		return errs.ErrInvalid
	}
	if !v.Type.Valid() {
		return errors.New("invalid voucher type")
	}
	if strings.TrimSpace(v.Number) == "" {
		return errors.New("number is required")
	}
	if v.Date.IsZero() {
		return errors.New("date is required")
	}
	if v.TotalAmount.IsNeg() {
		return errors.New("total_amount must not be negative")
	}
	if _, err := engine.Scale(v.Currency); err != nil {
		return errors.New("invalid currency")
	}
	if tp := v.ThirdParty; tp != nil {
		if strings.TrimSpace(tp.Name) == "" {
			return errors.New("third_party.name is required")
		}
		switch tp.Kind {
		case ledger.ThirdPartyCustomer, ledger.ThirdPartySupplier, ledger.ThirdPartyEmployee:
		default:
			return errors.New("invalid third_party.kind")
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	v.Currency = strings.ToUpper(strings.TrimSpace(v.Currency))
	if v.Currency == "" {
		v.Currency = s.defaultCurrency
	}
	v.Number = strings.TrimSpace(v.Number)
	if err := s.Validate(v); err != nil {
		if errors.Is(err, errs.ErrInvalid) {
			return ledger.Voucher{}, err
		}
		return ledger.Voucher{}, fmt.Errorf("%v: %w", err, errs.ErrInvalid)
	}
	if tp := v.ThirdParty; tp != nil && tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	v.ID = uuid.New()
	v.Date = v.Date.UTC()
	v.CreatedAt = time.Now().UTC()
	created, err := s.writer.CreateVoucher(ctx, v)
	if err != nil {
		return ledger.Voucher{}, err
	}
	s.log.Info("voucher created", "org_id", v.OrgID, "voucher_id", created.ID, "type", created.Type, "number", created.Number)
	return created, nil
}

func (s *service) Get(ctx context.Context, orgID, voucherID uuid.UUID) (ledger.Voucher, error) {
	if orgID == uuid.Nil || voucherID == uuid.Nil {
		return ledger.Voucher{}, errs.ErrInvalid
	}
	return s.repo.VoucherByID(ctx, orgID, voucherID)
}

func (s *service) List(ctx context.Context, orgID uuid.UUID, vt ledger.VoucherType) ([]ledger.Voucher, error) {
	if orgID == uuid.Nil || (vt != "" && !vt.Valid()) {
		return nil, errs.ErrInvalid
	}
	return s.repo.ListVouchers(ctx, orgID, vt)
}
