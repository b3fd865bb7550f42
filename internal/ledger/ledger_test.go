package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pricewatch/internal/amount"
	"pricewatch/internal/store"
	"pricewatch/internal/store/memory"
	"pricewatch/internal/store/storetest"
	"pricewatch/pkg/models"
)

var invoiceDate = time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	mem := memory.New()
	l := New(mem, nil, amount.Comma)
	if err := l.EnsureTables(context.Background()); err != nil {
		t.Fatalf("ensure tables: %v", err)
	}
	return l, mem
}

func ingredient(name, net string) models.Ingredient {
	return models.Ingredient{
		Name:              name,
		Unit:              models.UnitKilogram,
		NetPricePerUnit:   decimal.RequireFromString(net),
		VATPercent:        decimal.NewFromInt(5),
		GrossPricePerUnit: decimal.RequireFromString(net).Mul(decimal.RequireFromString("1.05")).Round(2),
		Category:          models.CategoryFood,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	ing := ingredient("Corn cobs 2.5kg", "10.00")

	first, err := l.Upsert(ctx, models.CategoryFood, ing, invoiceDate, "ABC")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := l.Upsert(ctx, models.CategoryFood, ing, invoiceDate, "ABC")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first != Inserted || second != Unchanged {
		t.Fatalf("expected inserted then unchanged, got %s then %s", first, second)
	}

	rows, _ := mem.ReadRows(ctx, "FOOD")
	if len(rows) != 2 {
		t.Fatalf("expected exactly one record, got %d rows", len(rows)-1)
	}
	want := []string{"10.04.2025", "Corn cobs 2.5kg", "kg", "10,00", "5", "10,50", "ABC"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Fatalf("column %d = %q, want %q (row %v)", i, rows[1][i], v, rows[1])
		}
	}
}

func TestUpsertToleranceBoundary(t *testing.T) {
	tests := []struct {
		name string
		next string
		want Result
	}{
		{"delta 0.009 is unchanged", "10.009", Unchanged},
		{"delta -0.009 is unchanged", "9.991", Unchanged},
		{"delta 0.011 is updated", "10.011", Updated},
		{"delta 0.01 is updated", "10.01", Updated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l, _ := newTestLedger(t)

			if _, err := l.Upsert(ctx, models.CategoryFood, ingredient("Rice", "10.00"), invoiceDate, "ABC"); err != nil {
				t.Fatalf("seed: %v", err)
			}
			got, err := l.Upsert(ctx, models.CategoryFood, ingredient("Rice", tt.next), invoiceDate, "ABC")
			if err != nil {
				t.Fatalf("upsert: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUpsertOverwritesRecordInPlace(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)

	_, _ = l.Upsert(ctx, models.CategoryFood, ingredient("Rice", "4.00"), invoiceDate, "Old seller")
	_, _ = l.Upsert(ctx, models.CategoryFood, ingredient("Flour", "2.00"), invoiceDate, "Old seller")

	later := invoiceDate.AddDate(0, 0, 7)
	updated := ingredient("Rice", "4.50")
	updated.Unit = models.UnitPack
	res, err := l.Upsert(ctx, models.CategoryFood, updated, later, "New seller")
	if err != nil || res != Updated {
		t.Fatalf("expected update, got %s, %v", res, err)
	}

	rows, _ := mem.ReadRows(ctx, "FOOD")
	if len(rows) != 3 {
		t.Fatalf("expected two records, got %v", rows)
	}
	if rows[1][0] != "17.04.2025" || rows[1][2] != "pack" || rows[1][3] != "4,50" || rows[1][6] != "New seller" {
		t.Fatalf("record not overwritten: %v", rows[1])
	}
	if rows[2][1] != "Flour" {
		t.Fatalf("other record moved: %v", rows[2])
	}
}

func TestUpsertKeepsExistingSeparator(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.EnsureTable(ctx, "DRINK", Header)
	_ = mem.AppendRow(ctx, "DRINK", []string{"01.04.2025", "Water 1.5L", "l", "2.00", "8", "2.16", "ABC"})

	l := New(mem, nil, amount.Comma)
	ing := ingredient("Juice", "3.5")
	ing.Category = models.CategoryDrink
	if _, err := l.Upsert(ctx, models.CategoryDrink, ing, invoiceDate, "ABC"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, _ := mem.ReadRows(ctx, "DRINK")
	if got := rows[2][3]; got != "3.50" {
		t.Fatalf("expected dot separator to be kept, got %q", got)
	}

	// stored amounts compare numerically, not as text
	same := ingredient("Water 1.5L", "2.00")
	res, err := l.Upsert(ctx, models.CategoryDrink, same, invoiceDate, "ABC")
	if err != nil || res != Unchanged {
		t.Fatalf("expected unchanged, got %s, %v", res, err)
	}
}

func TestRecordsSkipsInvalidRows(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.EnsureTable(ctx, "FOOD", Header)
	_ = mem.AppendRow(ctx, "FOOD", []string{"01.04.2025", "Rice", "kg", "4,00", "5", "4,20", "ABC"})
	_ = mem.AppendRow(ctx, "FOOD", []string{"01.04.2025", "Broken", "kg", "n/a", "5", "", "ABC"})
	_ = mem.AppendRow(ctx, "FOOD", []string{"01.04.2025", "", "kg", "1,00"})

	l := New(mem, nil, amount.Comma)
	recs, err := l.Records(ctx, models.CategoryFood)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "Rice" || recs[0].Row != 1 {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if !recs[0].NetPricePerUnit.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("net price = %s", recs[0].NetPricePerUnit)
	}
}

func TestUpsertOverwritesUnreadablePrice(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.EnsureTable(ctx, "FOOD", Header)
	_ = mem.AppendRow(ctx, "FOOD", []string{"01.04.2025", "Rice", "kg", "n/a", "5", "", "ABC"})

	l := New(mem, nil, amount.Comma)
	res, err := l.Upsert(ctx, models.CategoryFood, ingredient("Rice", "4.00"), invoiceDate, "ABC")
	if err != nil || res != Updated {
		t.Fatalf("expected update, got %s, %v", res, err)
	}
}

func TestUpsertSurfacesStoreErrors(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	faulty := storetest.NewFaulty(mem)
	l := New(faulty, nil, amount.Comma)
	_ = l.EnsureTables(ctx)

	boom := errors.New("quota exceeded")
	faulty.FailNext("AppendRow", boom)
	if _, err := l.Upsert(ctx, models.CategoryFood, ingredient("Rice", "1"), invoiceDate, "ABC"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	if _, err := New(mem, Tables{}, amount.Comma).Records(ctx, models.CategoryFood); err == nil {
		t.Fatalf("expected error for unconfigured category")
	}

	missing := New(memory.New(), nil, amount.Comma)
	if _, err := missing.Records(ctx, models.CategoryFood); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
