package config

import (
	"strings"
	"testing"
	"time"

	"pricewatch/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UnpaidTable != "Unpaid Invoices" || cfg.PaidTable != "Paid Invoices" {
		t.Fatalf("status tables = %q, %q", cfg.UnpaidTable, cfg.PaidTable)
	}
	if cfg.CategoryTables[models.CategoryChemical] != "CHEMICAL" {
		t.Fatalf("category tables = %v", cfg.CategoryTables)
	}
	if cfg.DecimalSeparator != "," {
		t.Fatalf("separator = %q", cfg.DecimalSeparator)
	}
	if p := cfg.RetryPolicy(); p.Attempts != 3 || p.Delay != 2*time.Second {
		t.Fatalf("retry policy = %+v", p)
	}
	if cfg.LogOutput != "stderr" {
		t.Fatalf("log output = %q", cfg.LogOutput)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "xlsx")
	t.Setenv("XLSX_PATH", "/tmp/prices.xlsx")
	t.Setenv("TABLE_FOOD", "Jedzenie")
	t.Setenv("DECIMAL_SEPARATOR", ".")
	t.Setenv("STORE_RETRY_ATTEMPTS", "5")
	t.Setenv("STORE_RETRY_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LedgerTables()[models.CategoryFood] != "Jedzenie" {
		t.Fatalf("ledger tables = %v", cfg.LedgerTables())
	}
	if p := cfg.RetryPolicy(); p.Attempts != 5 || p.Delay != 250*time.Millisecond {
		t.Fatalf("retry policy = %+v", p)
	}
	if cfg.StatusTables().Unpaid != "Unpaid Invoices" {
		t.Fatalf("status tables = %+v", cfg.StatusTables())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"sheets without url", map[string]string{"STORE_BACKEND": "sheets"}, "GOOGLE_SHEET_URL"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "postgres"}, "unknown STORE_BACKEND"},
		{"bad separator", map[string]string{"STORE_BACKEND": "memory", "DECIMAL_SEPARATOR": ";"}, "DECIMAL_SEPARATOR"},
		{"zero attempts", map[string]string{"STORE_BACKEND": "memory", "STORE_RETRY_ATTEMPTS": "0"}, "STORE_RETRY_ATTEMPTS"},
		{"bad delay", map[string]string{"STORE_BACKEND": "memory", "STORE_RETRY_DELAY": "soon"}, "STORE_RETRY_DELAY"},
		{"same status tables", map[string]string{"STORE_BACKEND": "memory", "PAID_TABLE": "Unpaid Invoices"}, "PAID_TABLE"},
		{"category clashes with status", map[string]string{"STORE_BACKEND": "memory", "TABLE_OTHER": "Paid Invoices"}, "TABLE_OTHER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOOGLE_SHEET_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
