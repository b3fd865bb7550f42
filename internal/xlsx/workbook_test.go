package xlsx

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"pricewatch/internal/store"
)

var header = []string{"invoice_date", "ingredient_name", "unit"}

func openTemp(t *testing.T) (*Workbook, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestWorkbookPersistsRows(t *testing.T) {
	ctx := context.Background()
	w, path := openTemp(t)

	if err := w.EnsureTable(ctx, "FOOD", header); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := w.AppendRow(ctx, "FOOD", []string{"10.04.2025", "Rice", "kg"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.AppendRow(ctx, "FOOD", []string{"10.04.2025", "Flour", "kg"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.UpdateRow(ctx, "FOOD", 1, []string{"11.04.2025", "Rice", "pack"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.ReadRows(ctx, "FOOD")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := [][]string{
		header,
		{"11.04.2025", "Rice", "pack"},
		{"10.04.2025", "Flour", "kg"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}

	if ok, _ := reopened.exists(defaultSheet); ok {
		t.Fatalf("default sheet must be removed from a new workbook")
	}
}

func TestWorkbookEnsureTableKeepsData(t *testing.T) {
	ctx := context.Background()
	w, _ := openTemp(t)

	_ = w.EnsureTable(ctx, "FOOD", header)
	_ = w.AppendRow(ctx, "FOOD", []string{"10.04.2025", "Rice", "kg"})
	if err := w.EnsureTable(ctx, "FOOD", []string{"other"}); err != nil {
		t.Fatalf("ensure existing: %v", err)
	}

	rows, _ := w.ReadRows(ctx, "FOOD")
	if len(rows) != 2 || rows[0][0] != "invoice_date" {
		t.Fatalf("existing table modified: %v", rows)
	}
}

func TestWorkbookDeleteAndReplace(t *testing.T) {
	ctx := context.Background()
	w, _ := openTemp(t)

	_ = w.EnsureTable(ctx, "Unpaid", header)
	for _, name := range []string{"A", "B", "C"} {
		_ = w.AppendRow(ctx, "Unpaid", []string{"01.04.2025", name, "kg"})
	}

	if err := w.DeleteRow(ctx, "Unpaid", 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, _ := w.ReadRows(ctx, "Unpaid")
	if len(rows) != 3 || rows[1][1] != "A" || rows[2][1] != "C" {
		t.Fatalf("after delete: %v", rows)
	}

	replacement := [][]string{header, {"02.04.2025", "Z", "l"}}
	if err := w.ReplaceRows(ctx, "Unpaid", replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, _ = w.ReadRows(ctx, "Unpaid")
	if !reflect.DeepEqual(rows, replacement) {
		t.Fatalf("after replace: %v", rows)
	}
}

func TestWorkbookNotFound(t *testing.T) {
	ctx := context.Background()
	w, _ := openTemp(t)

	if _, err := w.ReadRows(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("read missing: %v", err)
	}
	if err := w.AppendRow(ctx, "missing", []string{"x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("append missing: %v", err)
	}

	_ = w.EnsureTable(ctx, "FOOD", header)
	if err := w.UpdateRow(ctx, "FOOD", 5, []string{"x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update out of range: %v", err)
	}
	if err := w.DeleteRow(ctx, "FOOD", -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete out of range: %v", err)
	}
	if store.IsTransient(w.DeleteRow(ctx, "FOOD", 9)) {
		t.Fatalf("workbook errors are never transient")
	}
}
