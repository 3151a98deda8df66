package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/posting/internal/seed"
)

func TestCheckReportsEveryFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.dsl")
	bad := filepath.Join(dir, "bad.dsl")
	src, err := seed.Source("payment_co")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, []byte(src), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("let x = \nentry {"), 0o600))

	var out bytes.Buffer
	err = check(&out, []string{good, bad})
	require.Error(t, err)
	assert.Contains(t, out.String(), good+": ok")
	assert.True(t, strings.HasPrefix(strings.Split(out.String(), "\n")[1], bad+":"), out.String())
}

func TestEvalPrintsDraft(t *testing.T) {
	src, err := seed.Source("invoice_sale_co")
	require.NoError(t, err)
	voucher := []byte(`{
		"type": "invoice_sale", "number": "FV-7", "date": "2024-03-01T00:00:00Z",
		"total_amount": "119", "currency": "COP",
		"metadata": {"subtotal": 100, "taxes": {"iva_19": 19}},
		"third_party": {"name": "ACME", "kind": "customer"}
	}`)
	var out bytes.Buffer
	require.NoError(t, eval(&out, src, voucher, "COP", 1))

	var got evalOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Empty(t, got.ValidationErrors)
	require.Len(t, got.Lines, 3)
	assert.Equal(t, "1305.05", got.Lines[0].AccountCode)
	require.NotNil(t, got.Balance)
	assert.True(t, got.Balance.Balanced)
	assert.Len(t, got.Actions, 2)
}
