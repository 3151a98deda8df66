package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/seed"
	"github.com/tinoosan/posting/internal/service/journal"
	"github.com/tinoosan/posting/internal/service/template"
	"github.com/tinoosan/posting/internal/service/voucher"
	"github.com/tinoosan/posting/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type errResp struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

type lineResp struct {
	AccountCode string `json:"account_code"`
	Side        string `json:"side"`
	Amount      string `json:"amount"`
	AmountMinor *int64 `json:"amount_minor"`
}

type entryResp struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	Status          string     `json:"status"`
	Description     string     `json:"description"`
	OriginalEntryID string     `json:"original_entry_id"`
	Lines           []lineResp `json:"lines"`
	Balance         struct {
		Balanced   bool   `json:"balanced"`
		Difference string `json:"difference"`
	} `json:"balance"`
}

type idResp struct {
	ID string `json:"id"`
}

type fixture struct {
	h     http.Handler
	store *memory.Store
	org   uuid.UUID
}

type failingChecker struct{}

func (failingChecker) Ready(context.Context) error { return errors.New("down") }

func setupWith(t *testing.T, opts Options, ready ...ReadyChecker) fixture {
	t.Helper()
	store := memory.New()
	cache, err := engine.NewTemplateCache(32)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	logger := testLogger()
	now := func() time.Time { return time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC) }
	srv, err := New(Deps{
		Journal:     journal.New(store, store, engine.New(1, "COP"), cache, logger, journal.Options{Now: now}),
		Templates:   template.New(store, store, cache, logger),
		Vouchers:    voucher.New(store, store, "COP", logger),
		Idempotency: store,
		Ready:       ready,
	}, logger, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return fixture{h: srv.Handler(), store: store, org: uuid.New()}
}

func setup(t *testing.T) fixture { return setupWith(t, Options{}) }

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (f fixture) createSaleTemplate(t *testing.T) string {
	t.Helper()
	src, err := seed.Source("invoice_sale_co")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec := do(t, f.h, http.MethodPost, "/v1/templates", map[string]any{
		"org_id": f.org, "name": "Factura de Venta", "voucher_type": "invoice_sale", "country": "co", "source": src,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[idResp](t, rec).ID
}

func (f fixture) createSaleVoucher(t *testing.T, number, subtotal, iva, total string) string {
	t.Helper()
	rec := do(t, f.h, http.MethodPost, "/v1/vouchers", map[string]any{
		"org_id":       f.org,
		"type":         "invoice_sale",
		"number":       number,
		"date":         "2024-01-15T00:00:00Z",
		"total_amount": total,
		"currency":     "COP",
		"metadata": map[string]any{
			"subtotal": json.Number(subtotal),
			"taxes":    map[string]any{"iva_19": json.Number(iva)},
			"country":  "CO",
		},
		"third_party": map[string]any{"name": "ACME SAS", "kind": "customer"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create voucher: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[idResp](t, rec).ID
}

func TestVoucherToReversalFlow(t *testing.T) {
	f := setup(t)
	f.createSaleTemplate(t)
	vid := f.createSaleVoucher(t, "FV-1001", "1000000", "190000", "1190000")

	// preview persists nothing
	rec := do(t, f.h, http.MethodPost, "/v1/vouchers/"+vid+"/preview", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	pv := decode[struct {
		Template  struct{ Name string } `json:"template"`
		Variables map[string]any        `json:"variables"`
		Draft     *entryResp            `json:"draft"`
		Actions   []json.RawMessage     `json:"actions"`
	}](t, rec)
	if pv.Template.Name != "factura_de_venta" || pv.Draft == nil || len(pv.Draft.Lines) != 3 || len(pv.Actions) != 2 {
		t.Fatalf("unexpected preview: %s", rec.Body.String())
	}
	if _, ok := pv.Variables["subtotal"]; !ok {
		t.Fatalf("preview variables missing subtotal: %v", pv.Variables)
	}
	rec = do(t, f.h, http.MethodGet, "/v1/entries?org_id="+f.org.String(), nil)
	if got := decode[[]entryResp](t, rec); len(got) != 0 {
		t.Fatalf("preview stored %d entries", len(got))
	}

	// draft with idempotent retry
	body := map[string]any{"org_id": f.org, "voucher_id": vid}
	rec = do(t, f.h, http.MethodPost, "/v1/entries", body, "Idempotency-Key", "k-1")
	if rec.Code != http.StatusCreated {
		t.Fatalf("draft: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	draft := decode[entryResp](t, rec)
	if draft.Status != "DRAFT" || draft.Number != "" || !draft.Balance.Balanced {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if draft.Lines[0].AmountMinor == nil || *draft.Lines[0].AmountMinor != 119000000 {
		t.Fatalf("expected amount_minor 119000000 on the receivable line, got %+v", draft.Lines[0])
	}
	rec = do(t, f.h, http.MethodPost, "/v1/entries", body, "Idempotency-Key", "k-1")
	if rec.Code != http.StatusOK || decode[entryResp](t, rec).ID != draft.ID {
		t.Fatalf("replay: expected 200 with same id, got %d: %s", rec.Code, rec.Body.String())
	}

	// post
	rec = do(t, f.h, http.MethodPost, "/v1/entries/"+draft.ID+"/post", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusOK {
		t.Fatalf("post: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	posted := decode[struct {
		Entry   entryResp `json:"entry"`
		Actions []struct {
			Name string `json:"name"`
		} `json:"actions"`
	}](t, rec)
	if posted.Entry.Number != "JE-202401-000001" || posted.Entry.Status != "POSTED" {
		t.Fatalf("unexpected posted entry: %+v", posted.Entry)
	}
	if len(posted.Actions) != 2 || posted.Actions[1].Name != "notify" {
		t.Fatalf("unexpected actions: %+v", posted.Actions)
	}

	// posting twice is a state error
	rec = do(t, f.h, http.MethodPost, "/v1/entries/"+draft.ID+"/post", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusConflict || decode[errResp](t, rec).Code != "invalid_state_transition" {
		t.Fatalf("second post: expected 409 invalid_state_transition, got %d: %s", rec.Code, rec.Body.String())
	}

	// reverse
	rec = do(t, f.h, http.MethodPost, "/v1/entries/"+draft.ID+"/reverse", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reverse: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rev := decode[entryResp](t, rec)
	if rev.Number != "REV-JE-202401-000001" || rev.OriginalEntryID != draft.ID || rev.Status != "POSTED" {
		t.Fatalf("unexpected reversal: %+v", rev)
	}
	if rev.Lines[0].Side != "credit" || rev.Lines[0].AccountCode != "1305.05" {
		t.Fatalf("reversal lines not swapped: %+v", rev.Lines[0])
	}
	rec = do(t, f.h, http.MethodGet, "/v1/entries/"+draft.ID+"?org_id="+f.org.String(), nil)
	if got := decode[entryResp](t, rec); got.Status != "REVERSED" {
		t.Fatalf("original should be REVERSED, got %s", got.Status)
	}

	rec = do(t, f.h, http.MethodGet, "/v1/entries?org_id="+f.org.String()+"&status=posted", nil)
	if got := decode[[]entryResp](t, rec); len(got) != 1 || got[0].ID != rev.ID {
		t.Fatalf("expected only the reversal as POSTED, got %s", rec.Body.String())
	}

	rec = do(t, f.h, http.MethodGet, "/v1/trial-balance?org_id="+f.org.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trial balance: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	tb := decode[struct {
		Lines []trialBalanceLine `json:"lines"`
	}](t, rec)
	if len(tb.Lines) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(tb.Lines))
	}
	for _, l := range tb.Lines {
		if !decimal.MustParse(l.Net).IsZero() {
			t.Fatalf("account %s should net to zero, got %s", l.AccountCode, l.Net)
		}
	}
}

func TestPostEntry_RuleViolationsReturn422(t *testing.T) {
	f := setup(t)
	f.createSaleTemplate(t)
	vid := f.createSaleVoucher(t, "FV-2", "1000000", "100000", "1190000")

	rec := do(t, f.h, http.MethodPost, "/v1/entries", map[string]any{"org_id": f.org, "voucher_id": vid})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	er := decode[errResp](t, rec)
	if er.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", er.Code)
	}
	var violations []struct {
		RuleIndex int `json:"rule_index"`
	}
	if err := json.Unmarshal(er.Details, &violations); err != nil || len(violations) != 1 || violations[0].RuleIndex != 1 {
		t.Fatalf("unexpected violations: %s", er.Details)
	}

	// preview reports the same violations without failing
	rec = do(t, f.h, http.MethodPost, "/v1/vouchers/"+vid+"/preview", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d", rec.Code)
	}
	pv := decode[struct {
		ValidationErrors []json.RawMessage `json:"validation_errors"`
		Draft            *entryResp        `json:"draft"`
	}](t, rec)
	if len(pv.ValidationErrors) != 1 || pv.Draft != nil {
		t.Fatalf("unexpected preview: %s", rec.Body.String())
	}
}

func TestPostEntry_NoActiveTemplate(t *testing.T) {
	f := setup(t)
	vid := f.createSaleVoucher(t, "FV-3", "100", "19", "119")
	rec := do(t, f.h, http.MethodPost, "/v1/entries", map[string]any{"org_id": f.org, "voucher_id": vid})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a template, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestManualEntry_UnbalancedCannotPost(t *testing.T) {
	f := setup(t)
	rec := do(t, f.h, http.MethodPost, "/v1/entries/manual", map[string]any{
		"org_id":   f.org,
		"date":     "2024-02-01T00:00:00Z",
		"currency": "USD",
		"lines": []map[string]any{
			{"account_code": "1105", "side": "debit", "amount_minor": 1500},
			{"account_code": "4135", "side": "credit", "amount_minor": 1400},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("manual: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	e := decode[entryResp](t, rec)
	if e.Balance.Balanced || decimal.MustParse(e.Balance.Difference).Cmp(decimal.One) != 0 {
		t.Fatalf("expected unbalanced draft with difference 1, got %+v", e.Balance)
	}
	rec = do(t, f.h, http.MethodPost, "/v1/entries/"+e.ID+"/post", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusUnprocessableEntity || decode[errResp](t, rec).Code != "unbalanced_entry" {
		t.Fatalf("expected 422 unbalanced_entry, got %d: %s", rec.Code, rec.Body.String())
	}

	// manual drafts have no template to recalculate against
	rec = do(t, f.h, http.MethodPost, "/v1/entries/"+e.ID+"/recalculate", map[string]any{"org_id": f.org})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("recalculate manual: expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTemplates_ValidationAndCompileErrors(t *testing.T) {
	f := setup(t)

	rec := do(t, f.h, http.MethodPost, "/v1/templates", map[string]any{
		"org_id": f.org, "name": "x", "voucher_type": "bogus", "source": "entry {}",
	})
	if rec.Code != http.StatusBadRequest || decode[errResp](t, rec).Code != "validation_error" {
		t.Fatalf("expected 400 validation_error for unknown voucher type, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, f.h, http.MethodPost, "/v1/templates", map[string]any{
		"org_id": f.org, "name": "broken", "voucher_type": "payment", "source": "let x = \nentry {",
	})
	if rec.Code != http.StatusUnprocessableEntity || decode[errResp](t, rec).Code != "compile_error" {
		t.Fatalf("expected 422 compile_error, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, f.h, http.MethodPost, "/v1/templates/check", map[string]any{"source": "let x = \nentry {"})
	if rec.Code != http.StatusOK {
		t.Fatalf("check: expected 200, got %d", rec.Code)
	}
	chk := decode[checkTemplateResponse](t, rec)
	if chk.Valid || len(chk.Errors) == 0 || chk.Errors[0].Line < 1 {
		t.Fatalf("expected positioned compile errors, got %+v", chk)
	}

	rec = do(t, f.h, http.MethodPost, "/v1/templates", map[string]any{"org_id": f.org}, "Content-Type", "text/plain")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}

	rec = do(t, f.h, http.MethodPost, "/v1/templates", map[string]any{"org_id": f.org, "unknown": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestTemplates_ReviseGetDeactivate(t *testing.T) {
	f := setup(t)
	id := f.createSaleTemplate(t)
	src, _ := seed.Source("invoice_sale_co")

	rec := do(t, f.h, http.MethodPost, "/v1/templates/"+id+"/revisions", map[string]any{"org_id": f.org, "source": src + "\n"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("revise: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if v := decode[templateResponse](t, rec).Version; v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}

	rec = do(t, f.h, http.MethodGet, "/v1/templates/"+id+"?org_id="+f.org.String()+"&version=1", nil)
	if rec.Code != http.StatusOK || decode[templateResponse](t, rec).Version != 1 {
		t.Fatalf("get v1: got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, f.h, http.MethodGet, "/v1/templates/"+id+"?org_id="+f.org.String(), nil)
	if got := decode[templateResponse](t, rec); got.Version != 2 || !got.Active {
		t.Fatalf("latest should be active v2, got %+v", got)
	}

	rec = do(t, f.h, http.MethodDelete, "/v1/templates/"+id+"?org_id="+f.org.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deactivate: expected 204, got %d", rec.Code)
	}
	vid := f.createSaleVoucher(t, "FV-9", "100", "19", "119")
	rec = do(t, f.h, http.MethodPost, "/v1/entries", map[string]any{"org_id": f.org, "voucher_id": vid})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after deactivation, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, f.h, http.MethodGet, "/v1/templates/"+id+"?org_id=nope", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad org_id, got %d", rec.Code)
	}
}

func TestVouchers_DuplicateNumberConflicts(t *testing.T) {
	f := setup(t)
	f.createSaleVoucher(t, "FV-1", "100", "19", "119")
	rec := do(t, f.h, http.MethodPost, "/v1/vouchers", map[string]any{
		"org_id": f.org, "type": "invoice_sale", "number": "FV-1", "date": "2024-01-15T00:00:00Z", "total_amount": "1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, f.h, http.MethodGet, "/v1/vouchers?org_id="+f.org.String()+"&type=invoice_sale", nil)
	if got := decode[[]voucherResponse](t, rec); len(got) != 1 || got[0].Currency != "COP" {
		t.Fatalf("unexpected voucher list: %s", rec.Body.String())
	}
}

func TestAuth_JWT(t *testing.T) {
	const secret = "test-secret"
	f := setupWith(t, Options{Auth: AuthConfig{Secret: secret, Issuer: "posting-tests"}})
	sign := func(org string) string {
		claims := Claims{
			OrgID: org,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "posting-tests",
				Subject:   "tester",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return "Bearer " + tok
	}
	path := "/v1/entries?org_id=" + f.org.String()

	if rec := do(t, f.h, http.MethodGet, path, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, f.h, http.MethodGet, path, nil, "Authorization", "Bearer not.a.jwt"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
	if rec := do(t, f.h, http.MethodGet, path, nil, "Authorization", sign("")); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, f.h, http.MethodGet, path, nil, "Authorization", sign(uuid.NewString())); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for token pinned to another org, got %d", rec.Code)
	}
	if rec := do(t, f.h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz should be public, got %d", rec.Code)
	}
	if rec := do(t, f.h, http.MethodGet, "/v1/dictionary/actions", nil); rec.Code != http.StatusOK {
		t.Fatalf("dictionary should be public, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	f := setupWith(t, Options{RateLimit: "2-M"})
	path := "/v1/entries?org_id=" + f.org.String()
	for i := 0; i < 2; i++ {
		if rec := do(t, f.h, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := do(t, f.h, http.MethodGet, path, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestDictionaryAndHealth(t *testing.T) {
	f := setup(t)
	rec := do(t, f.h, http.MethodGet, "/v1/dictionary/voucher-types", nil)
	items := decode[struct {
		Items []struct {
			Code string `json:"code"`
		} `json:"items"`
	}](t, rec)
	if len(items.Items) != 8 || items.Items[0].Code != "invoice_sale" {
		t.Fatalf("unexpected voucher types: %s", rec.Body.String())
	}
	if rec := do(t, f.h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rec.Code)
	}
	if rec := do(t, f.h, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}

	down := setupWith(t, Options{}, failingChecker{})
	if rec := do(t, down.h, http.MethodGet, "/readyz", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: expected 503, got %d", rec.Code)
	}
}
