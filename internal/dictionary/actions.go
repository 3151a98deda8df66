// Package dictionary lists the curated vocabularies templates and clients can rely on.
package dictionary

import "github.com/tinoosan/posting/internal/ledger"

// ActionDef describes a side effect an `after` block may request.
type ActionDef struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Params []string `json:"params"`
}

var actions = []ActionDef{
	{Name: "notify", Label: "Send a notification event", Params: []string{"event", "payload"}},
	{Name: "update_supplier_balance", Label: "Adjust a supplier's open balance", Params: []string{"supplier_id", "delta"}},
	{Name: "update_customer_balance", Label: "Adjust a customer's open balance", Params: []string{"customer_id", "delta"}},
	{Name: "schedule_payment", Label: "Schedule an outgoing payment", Params: []string{"third_party_id", "amount", "due_date"}},
}

// Action looks up an action definition by name.
func Action(name string) (ActionDef, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionDef{}, false
}

// Actions returns a copy of the action catalog.
func Actions() []ActionDef {
	out := make([]ActionDef, len(actions))
	copy(out, actions)
	return out
}

// VoucherTypeDef labels a voucher type for clients.
type VoucherTypeDef struct {
	Code  ledger.VoucherType `json:"code"`
	Label string             `json:"label"`
}

var voucherLabels = map[ledger.VoucherType]string{
	ledger.VoucherInvoiceSale:     "Sales invoice",
	ledger.VoucherInvoicePurchase: "Purchase invoice",
	ledger.VoucherPayment:         "Payment",
	ledger.VoucherReceipt:         "Receipt",
	ledger.VoucherPayroll:         "Payroll run",
	ledger.VoucherCreditNote:      "Credit note",
	ledger.VoucherDebitNote:       "Debit note",
	ledger.VoucherCustom:          "Custom document",
}

// VoucherTypes returns every voucher type with its label, in display order.
func VoucherTypes() []VoucherTypeDef {
	out := make([]VoucherTypeDef, 0, len(ledger.VoucherTypes))
	for _, t := range ledger.VoucherTypes {
		out = append(out, VoucherTypeDef{Code: t, Label: voucherLabels[t]})
	}
	return out
}
