package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pricewatch/internal/store"
)

func TestStoreRowLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.EnsureTable(ctx, "T", []string{"a", "b"}); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	// second call must not duplicate the header
	if err := s.EnsureTable(ctx, "T", []string{"a", "b"}); err != nil {
		t.Fatalf("ensure table again: %v", err)
	}

	for _, row := range [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}} {
		if err := s.AppendRow(ctx, "T", row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.UpdateRow(ctx, "T", 2, []string{"2", "Y"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteRow(ctx, "T", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := s.ReadRows(ctx, "T")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := [][]string{{"a", "b"}, {"2", "Y"}, {"3", "z"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}

	if err := s.ReplaceRows(ctx, "T", [][]string{{"a", "b"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, _ = s.ReadRows(ctx, "T")
	if len(rows) != 1 {
		t.Fatalf("expected only header after replace, got %v", rows)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.ReadRows(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.EnsureTable(ctx, "T", []string{"h"})
	if err := s.DeleteRow(ctx, "T", 5); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad index, got %v", err)
	}
	if store.IsTransient(s.UpdateRow(ctx, "T", 9, nil)) {
		t.Fatalf("not-found must not be transient")
	}
}

func TestReadRowsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.EnsureTable(ctx, "T", []string{"h"})

	rows, _ := s.ReadRows(ctx, "T")
	rows[0][0] = "mutated"

	again, _ := s.ReadRows(ctx, "T")
	if again[0][0] != "h" {
		t.Fatalf("store state leaked through ReadRows")
	}
}
