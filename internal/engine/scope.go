// Package engine turns a compiled template and a voucher into a draft journal entry
// and enforces the balance invariant. It performs no I/O.
package engine

import (
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/ledger"
)

// NewScope builds the root evaluation context exposing `voucher` and `template`.
func NewScope(v ledger.Voucher, t ledger.Template) (dsl.Scope, error) {
	md, err := dsl.FromAny(v.Metadata)
	if err != nil {
		return dsl.Scope{}, err
	}
	fields := map[string]dsl.Value{
		"id":           dsl.String(v.ID.String()),
		"type":         dsl.String(string(v.Type)),
		"number":       dsl.String(v.Number),
		"date":         dsl.Date(v.Date),
		"total_amount": dsl.Number(v.TotalAmount),
		"description":  dsl.String(v.Description),
		"currency":     dsl.String(v.Currency),
		"metadata":     md,
	}
	if tp := v.ThirdParty; tp != nil {
		fields["third_party"] = dsl.Map(map[string]dsl.Value{
			"id":     dsl.String(tp.ID.String()),
			"name":   dsl.String(tp.Name),
			"tax_id": dsl.String(tp.TaxID),
			"kind":   dsl.String(string(tp.Kind)),
		})
	}

	version, err := decimal.New(int64(t.Version), 0)
	if err != nil {
		return dsl.Scope{}, err
	}
	tmpl := map[string]dsl.Value{
		"id":           dsl.String(t.ID.String()),
		"name":         dsl.String(t.Name),
		"version":      dsl.Number(version),
		"country":      dsl.String(t.Country),
		"voucher_type": dsl.String(string(t.VoucherType)),
	}
	return dsl.NewScope(map[string]dsl.Value{
		dsl.RootVoucher:  dsl.Map(fields),
		dsl.RootTemplate: dsl.Map(tmpl),
	}), nil
}
