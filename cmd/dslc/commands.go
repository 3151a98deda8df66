package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/engine"
	"github.com/tinoosan/posting/internal/ledger"
)

type CheckCmd struct {
	Files []string `arg:"" help:"Template files." type:"existingfile"`
}

// Run prints one line per error as FILE:LINE:COLUMN: message.
func (cmd *CheckCmd) Run(ctx *kong.Context) error {
	return check(ctx.Stdout, cmd.Files)
}

func check(w io.Writer, files []string) error {
	failed := 0
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := dsl.Compile(string(src)); err != nil {
			var ce dsl.CompileErrors
			if !errors.As(err, &ce) {
				return fmt.Errorf("%s: %w", f, err)
			}
			failed++
			for _, e := range ce {
				fmt.Fprintf(w, "%s:%s: %s\n", f, e.Pos, e.Msg)
			}
			continue
		}
		fmt.Fprintf(w, "%s: ok\n", f)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed to compile", failed, len(files))
	}
	return nil
}

type EvalCmd struct {
	Template  string `help:"Template file." type:"existingfile" required:""`
	Voucher   string `help:"Voucher JSON file." type:"existingfile" required:""`
	Currency  string `help:"Currency when the voucher has none." default:"COP"`
	Tolerance int64  `help:"Balance tolerance in minor units." default:"1"`
}

// voucherFile mirrors the voucher capture payload of the HTTP API.
type voucherFile struct {
	Type        ledger.VoucherType `json:"type"`
	Number      string             `json:"number"`
	Date        time.Time          `json:"date"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"description"`
	Metadata    map[string]any     `json:"metadata"`
	ThirdParty  *ledger.ThirdParty `json:"third_party"`
}

type evalOutput struct {
	Variables        map[string]any           `json:"variables"`
	ValidationErrors []engine.ValidationError `json:"validation_errors"`
	Lines            []evalLine               `json:"lines,omitempty"`
	Balance          *evalBalance             `json:"balance,omitempty"`
	Actions          []ledger.Action          `json:"actions,omitempty"`
}

type evalLine struct {
	AccountCode string `json:"account_code"`
	Description string `json:"description,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

type evalBalance struct {
	Balanced    bool           `json:"balanced"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	Difference  string         `json:"difference"`
	Issues      []engine.Issue `json:"issues,omitempty"`
}

func (cmd *EvalCmd) Run(ctx *kong.Context) error {
	src, err := os.ReadFile(cmd.Template)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(cmd.Voucher)
	if err != nil {
		return err
	}
	return eval(ctx.Stdout, string(src), raw, cmd.Currency, cmd.Tolerance)
}

func eval(w io.Writer, src string, voucherJSON []byte, currency string, tolerance int64) error {
	ct, err := dsl.Compile(src)
	if err != nil {
		return err
	}
	var vf voucherFile
	dec := json.NewDecoder(bytes.NewReader(voucherJSON))
	dec.UseNumber()
	if err := dec.Decode(&vf); err != nil {
		return fmt.Errorf("voucher: %w", err)
	}
	v := ledger.Voucher{
		ID: uuid.New(), Type: vf.Type, Number: vf.Number, Date: vf.Date.UTC(),
		TotalAmount: vf.TotalAmount, Currency: vf.Currency, Description: vf.Description,
		Metadata: vf.Metadata, ThirdParty: vf.ThirdParty,
	}
	res, err := engine.New(tolerance, currency).Evaluate(ct, v, ledger.Template{VoucherType: vf.Type})
	if err != nil {
		return err
	}
	out := evalOutput{
		Variables:        res.Scope.Export(),
		ValidationErrors: res.ValidationErrors,
		Actions:          res.Actions,
	}
	if out.ValidationErrors == nil {
		out.ValidationErrors = []engine.ValidationError{}
	}
	if res.Draft != nil {
		for _, ln := range res.Draft.Lines {
			out.Lines = append(out.Lines, evalLine{
				AccountCode: ln.AccountCode, Description: ln.Description,
				Debit: ln.Debit.String(), Credit: ln.Credit.String(),
			})
		}
		b := res.Balance
		out.Balance = &evalBalance{
			Balanced: b.Balanced, TotalDebit: b.TotalDebit.String(), TotalCredit: b.TotalCredit.String(),
			Difference: b.Difference.String(), Issues: b.Issues,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
