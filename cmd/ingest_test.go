package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pricewatch/internal/reconciliation"
)

const validInvoice = `{
  "invoice_number": "FV/2025/7",
  "invoice_date": "01.04.2025",
  "due_date": "30.04.2099",
  "seller": "ABC Hurt",
  "total": 105.5,
  "paid": "UNPAID",
  "category": "FOOD",
  "ingredients": [
    {"name": "Rice", "unit": "kg", "net_price_per_unit": 4.0, "vat_percent": 5, "gross_price_per_unit": 4.2, "category": "FOOD"}
  ]
}`

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "xlsx")
	t.Setenv("XLSX_PATH", filepath.Join(t.TempDir(), "ledger.xlsx"))
	t.Setenv("STORE_RETRY_DELAY", "0s")

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestIngestPrintsEventPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.json")
	if err := os.WriteFile(path, []byte(validInvoice), 0o644); err != nil {
		t.Fatalf("write invoice: %v", err)
	}

	out, err := runRoot(t, "", "ingest", path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var result reconciliation.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, out)
	}
	if result.InvoiceNumber != "FV/2025/7" || result.Ingredients.Inserted != 1 || result.StatusRow != reconciliation.StatusAppended {
		t.Fatalf("unexpected payload: %+v", result)
	}
	if result.RunID == "" {
		t.Fatalf("run id missing")
	}
}

func TestIngestErrorClasses(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  error
	}{
		{"missing file", "", []string{"ingest", missing}, errReadInvoice},
		{"empty stdin", "  ", []string{"ingest"}, errReadInvoice},
		{"not json", "scan failed", []string{"ingest", "-"}, errExtractInvoice},
		{"missing field", `{"invoice_date":"01.04.2025"}`, []string{"ingest"}, errExtractInvoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, tt.stdin, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestMarkPaidUnknownInvoice(t *testing.T) {
	_, err := runRoot(t, "", "mark-paid", "--number", "X", "--date", "01.04.2025")
	if err == nil || !strings.Contains(err.Error(), "no unpaid invoice") {
		t.Fatalf("expected not-found message, got %v", err)
	}

	_, err = runRoot(t, "", "mark-paid", "--date", "2025-04-01")
	if err == nil || !strings.Contains(err.Error(), "DD.MM.YYYY") {
		t.Fatalf("expected date format error, got %v", err)
	}
}
