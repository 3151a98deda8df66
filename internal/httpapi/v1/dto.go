package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/meta"
	"github.com/tinoosan/posting/internal/service/journal"
)

// ---- templates ----

type postTemplateRequest struct {
	OrgID       uuid.UUID          `json:"org_id" validate:"required"`
	Name        string             `json:"name" validate:"required,max=64"`
	VoucherType ledger.VoucherType `json:"voucher_type" validate:"required,voucher_type"`
	Country     string             `json:"country" validate:"omitempty,len=2,alpha"`
	Source      string             `json:"source" validate:"required"`
}

type reviseTemplateRequest struct {
	OrgID  uuid.UUID `json:"org_id" validate:"required"`
	Source string    `json:"source" validate:"required"`
}

type checkTemplateRequest struct {
	Source string `json:"source" validate:"required"`
}

type templateResponse struct {
	ID          uuid.UUID          `json:"id"`
	OrgID       uuid.UUID          `json:"org_id"`
	Name        string             `json:"name"`
	VoucherType ledger.VoucherType `json:"voucher_type"`
	Country     string             `json:"country,omitempty"`
	Version     int                `json:"version"`
	Active      bool               `json:"active"`
	Source      string             `json:"source"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toTemplateResponse(t ledger.Template) templateResponse {
	return templateResponse{
		ID: t.ID, OrgID: t.OrgID, Name: t.Name, VoucherType: t.VoucherType, Country: t.Country,
		Version: t.Version, Active: t.Active, Source: t.Source, CreatedAt: t.CreatedAt,
	}
}

type compileErrorItem struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

type checkTemplateResponse struct {
	Valid  bool               `json:"valid"`
	Errors []compileErrorItem `json:"errors"`
}

func toCompileErrorItems(ce dsl.CompileErrors) []compileErrorItem {
	out := make([]compileErrorItem, 0, len(ce))
	for _, e := range ce {
		out = append(out, compileErrorItem{Line: e.Pos.Line, Column: e.Pos.Column, Message: e.Msg})
	}
	return out
}

// ---- vouchers ----

type thirdPartyDTO struct {
	ID    uuid.UUID             `json:"id,omitempty"`
	Name  string                `json:"name" validate:"required"`
	TaxID string                `json:"tax_id,omitempty"`
	Kind  ledger.ThirdPartyKind `json:"kind" validate:"required,oneof=customer supplier employee"`
}

type postVoucherRequest struct {
	OrgID       uuid.UUID          `json:"org_id" validate:"required"`
	Type        ledger.VoucherType `json:"type" validate:"required,voucher_type"`
	Number      string             `json:"number" validate:"required,max=64"`
	Date        time.Time          `json:"date" validate:"required"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency" validate:"omitempty,len=3,alpha"`
	Description string             `json:"description"`
	Metadata    map[string]any     `json:"metadata"`
	ThirdParty  *thirdPartyDTO     `json:"third_party" validate:"omitempty"`
}

type voucherResponse struct {
	ID          uuid.UUID          `json:"id"`
	OrgID       uuid.UUID          `json:"org_id"`
	Type        ledger.VoucherType `json:"type"`
	Number      string             `json:"number"`
	Date        time.Time          `json:"date"`
	TotalAmount string             `json:"total_amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"description,omitempty"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	ThirdParty  *ledger.ThirdParty `json:"third_party,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

func toVoucherDomain(req postVoucherRequest) ledger.Voucher {
	v := ledger.Voucher{
		OrgID:       req.OrgID,
		Type:        req.Type,
		Number:      req.Number,
		Date:        req.Date,
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
	}
	if tp := req.ThirdParty; tp != nil {
		v.ThirdParty = &ledger.ThirdParty{ID: tp.ID, Name: tp.Name, TaxID: tp.TaxID, Kind: tp.Kind}
	}
	return v
}

func toVoucherResponse(v ledger.Voucher) voucherResponse {
	return voucherResponse{
		ID: v.ID, OrgID: v.OrgID, Type: v.Type, Number: v.Number, Date: v.Date,
		TotalAmount: v.TotalAmount.String(), Currency: v.Currency, Description: v.Description,
		Metadata: v.Metadata, ThirdParty: v.ThirdParty, CreatedAt: v.CreatedAt,
	}
}

type previewRequest struct {
	OrgID      uuid.UUID  `json:"org_id" validate:"required"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// ---- entries ----

type postEntryRequest struct {
	OrgID      uuid.UUID  `json:"org_id" validate:"required"`
	VoucherID  uuid.UUID  `json:"voucher_id" validate:"required"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

type manualLineRequest struct {
	AccountCode string            `json:"account_code" validate:"required,max=32"`
	Side        ledger.Side       `json:"side" validate:"required,oneof=debit credit"`
	AmountMinor int64             `json:"amount_minor" validate:"gt=0"`
	Description string            `json:"description"`
	CostCenter  string            `json:"cost_center"`
	Metadata    map[string]string `json:"metadata"`
}

type postManualEntryRequest struct {
	OrgID       uuid.UUID           `json:"org_id" validate:"required"`
	Date        time.Time           `json:"date" validate:"required"`
	Currency    string              `json:"currency" validate:"required,len=3,alpha"`
	Description string              `json:"description"`
	Lines       []manualLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type orgRequest struct {
	OrgID uuid.UUID `json:"org_id" validate:"required"`
}

type reverseEntryRequest struct {
	OrgID uuid.UUID  `json:"org_id" validate:"required"`
	Date  *time.Time `json:"date,omitempty"`
}

type listEntriesQuery struct {
	OrgID  uuid.UUID
	Filter ledger.EntryFilter
}

type trialBalanceQuery struct {
	OrgID uuid.UUID
	AsOf  *time.Time
}

// toManualEntry converts minor-unit amounts into decimals at the currency's scale.
func toManualEntry(req postManualEntryRequest) (ledger.JournalEntry, error) {
	lines := make([]ledger.EntryLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		amt, err := money.NewAmountFromMinorUnits(req.Currency, l.AmountMinor)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		ln := ledger.EntryLine{
			AccountCode: l.AccountCode,
			Description: l.Description,
			CostCenter:  l.CostCenter,
			Debit:       decimal.Zero,
			Credit:      decimal.Zero,
			Metadata:    meta.New(l.Metadata),
		}
		if l.Side == ledger.SideDebit {
			ln.Debit = amt.Decimal()
		} else {
			ln.Credit = amt.Decimal()
		}
		lines = append(lines, ln)
	}
	return ledger.JournalEntry{
		OrgID:       req.OrgID,
		Date:        req.Date.UTC(),
		Currency:    req.Currency,
		Description: req.Description,
		Lines:       lines,
	}, nil
}

type lineResponse struct {
	AccountCode string        `json:"account_code"`
	Description string        `json:"description,omitempty"`
	Side        ledger.Side   `json:"side"`
	Amount      string        `json:"amount"`
	AmountMinor *int64        `json:"amount_minor,omitempty"`
	Debit       string        `json:"debit"`
	Credit      string        `json:"credit"`
	CostCenter  string        `json:"cost_center,omitempty"`
	Metadata    meta.Metadata `json:"metadata,omitempty"`
}

type entryResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrgID           uuid.UUID       `json:"org_id"`
	Number          string          `json:"number,omitempty"`
	Date            time.Time       `json:"date"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	Status          ledger.Status   `json:"status"`
	SourceVoucherID *uuid.UUID      `json:"source_voucher_id,omitempty"`
	TemplateID      *uuid.UUID      `json:"template_id,omitempty"`
	TemplateVersion int             `json:"template_version,omitempty"`
	OriginalEntryID *uuid.UUID      `json:"original_entry_id,omitempty"`
	Version         int64           `json:"version"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	Lines           []lineResponse  `json:"lines"`
	Actions         []ledger.Action `json:"actions,omitempty"`
}

// minorUnits returns the amount in minor units when it is exact at the currency scale.
func minorUnits(currency string, d decimal.Decimal) *int64 {
	amt, err := money.NewAmountFromDecimal(mustCurr(currency), d)
	if err != nil || amt.Scale() > amt.Curr().Scale() {
		return nil
	}
	n, ok := amt.MinorUnits()
	if !ok {
		return nil
	}
	return &n
}

func mustCurr(code string) money.Currency {
	c, err := money.ParseCurr(code)
	if err != nil {
		return money.XXX
	}
	return c
}

func toEntryResponse(e ledger.JournalEntry) entryResponse {
	lines := make([]lineResponse, 0, len(e.Lines))
	for _, ln := range e.Lines {
		lines = append(lines, lineResponse{
			AccountCode: ln.AccountCode,
			Description: ln.Description,
			Side:        ln.Side(),
			Amount:      ln.Amount().String(),
			AmountMinor: minorUnits(e.Currency, ln.Amount()),
			Debit:       ln.Debit.String(),
			Credit:      ln.Credit.String(),
			CostCenter:  ln.CostCenter,
			Metadata:    ln.Metadata,
		})
	}
	return entryResponse{
		ID: e.ID, OrgID: e.OrgID, Number: e.Number, Date: e.Date, Currency: e.Currency,
		Description: e.Description, Status: e.Status, SourceVoucherID: e.SourceVoucherID,
		TemplateID: e.TemplateID, TemplateVersion: e.TemplateVersion, OriginalEntryID: e.OriginalEntryID,
		Version: e.Version, PostedAt: e.PostedAt, Lines: lines, Actions: e.Actions,
	}
}

type balanceResponse struct {
	Balanced    bool           `json:"balanced"`
	Postable    bool           `json:"postable"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	Difference  string         `json:"difference"`
	Issues      []engine.Issue `json:"issues,omitempty"`
}

func toBalanceResponse(b engine.BalanceResult) balanceResponse {
	return balanceResponse{
		Balanced: b.Balanced, Postable: b.Postable(),
		TotalDebit: b.TotalDebit.String(), TotalCredit: b.TotalCredit.String(), Difference: b.Difference.String(),
		Issues: b.Issues,
	}
}

type entryWithBalance struct {
	entryResponse
	Balance balanceResponse `json:"balance"`
}

type postEntryResponse struct {
	Entry   entryResponse   `json:"entry"`
	Actions []ledger.Action `json:"actions"`
}

type previewResponse struct {
	Template         templateResponse         `json:"template"`
	Variables        map[string]any           `json:"variables"`
	ValidationErrors []engine.ValidationError `json:"validation_errors"`
	Draft            *entryResponse           `json:"draft,omitempty"`
	Balance          *balanceResponse         `json:"balance,omitempty"`
	Actions          []ledger.Action          `json:"actions,omitempty"`
}

type trialBalanceLine struct {
	AccountCode string `json:"account_code"`
	Currency    string `json:"currency"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Net         string `json:"net"`
}

func toTrialBalance(rows []journal.AccountBalance) ([]trialBalanceLine, error) {
	out := make([]trialBalanceLine, 0, len(rows))
	for _, b := range rows {
		net, err := b.Net()
		if err != nil {
			return nil, err
		}
		out = append(out, trialBalanceLine{
			AccountCode: b.AccountCode, Currency: b.Currency,
			Debit: b.Debit.String(), Credit: b.Credit.String(), Net: net.String(),
		})
	}
	return out, nil
}
