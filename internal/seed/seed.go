// Package seed ships the example posting templates loaded in dev mode and used by tests.
package seed

import (
	"embed"
	"fmt"

	"github.com/tinoosan/posting/internal/ledger"
)

//go:embed templates/*.dsl
var files embed.FS

// Template is a seedable template definition.
type Template struct {
	Name        string
	VoucherType ledger.VoucherType
	Country     string
	Source      string
}

var catalog = []struct {
	name string
	typ  ledger.VoucherType
}{
	{"invoice_sale_co", ledger.VoucherInvoiceSale},
	{"invoice_purchase_co", ledger.VoucherInvoicePurchase},
	{"payment_co", ledger.VoucherPayment},
	{"receipt_co", ledger.VoucherReceipt},
}

// Templates returns every seed template in catalog order.
func Templates() ([]Template, error) {
	out := make([]Template, 0, len(catalog))
	for _, c := range catalog {
		src, err := Source(c.name)
		if err != nil {
			return nil, err
		}
		out = append(out, Template{Name: c.name, VoucherType: c.typ, Country: "CO", Source: src})
	}
	return out, nil
}

// Source returns the DSL text of a seed template by name.
func Source(name string) (string, error) {
	b, err := files.ReadFile("templates/" + name + ".dsl")
	if err != nil {
		return "", fmt.Errorf("seed template %q: %w", name, err)
	}
	return string(b), nil
}
