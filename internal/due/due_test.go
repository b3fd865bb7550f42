package due

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var now = time.Date(2025, time.April, 10, 17, 45, 0, 0, time.UTC)

func TestDaysToDue(t *testing.T) {
	tests := []struct {
		due       string
		wantDays  int
		wantAlert string
	}{
		{"10.04.2025", 0, AlertSoon},
		{"11.04.2025", 1, AlertSoon},
		{"12.04.2025", 2, AlertSoon},
		{"13.04.2025", 3, ""},
		{"20.04.2025", 10, ""},
		{"09.04.2025", -1, ""},
		{"01.03.2025", -40, ""},
	}

	for _, tt := range tests {
		got := DaysToDue(tt.due, now)
		if !got.Valid() {
			t.Fatalf("DaysToDue(%q) unexpected error: %v", tt.due, got.Err)
		}
		if got.DaysLeft != tt.wantDays || got.Alert != tt.wantAlert {
			t.Fatalf("DaysToDue(%q) = (%d, %q), want (%d, %q)", tt.due, got.DaysLeft, got.Alert, tt.wantDays, tt.wantAlert)
		}
	}
}

func TestDaysToDueIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2025, time.April, 10, 23, 59, 59, 0, time.FixedZone("CEST", 2*3600))
	early := time.Date(2025, time.April, 10, 0, 0, 1, 0, time.UTC)

	if a, b := DaysToDue("12.04.2025", late), DaysToDue("12.04.2025", early); a.DaysLeft != 2 || b.DaysLeft != 2 {
		t.Fatalf("expected 2 days for both, got %d and %d", a.DaysLeft, b.DaysLeft)
	}
}

func TestDaysToDueBadDate(t *testing.T) {
	for _, in := range []string{"", "2025-04-12", "1.4.2025", "31.02.2025", "garbage"} {
		got := DaysToDue(in, now)
		if got.Valid() {
			t.Fatalf("DaysToDue(%q) expected invalid status", in)
		}
		if !errors.Is(got.Err, ErrBadDate) {
			t.Fatalf("DaysToDue(%q) expected ErrBadDate, got %v", in, got.Err)
		}
		if got.Display() != InvalidDateText {
			t.Fatalf("DaysToDue(%q) display = %q", in, got.Display())
		}
	}

	// due today is a valid zero, not an error
	today := DaysToDue("10.04.2025", now)
	if !today.Valid() || today.DaysLeft != 0 {
		t.Fatalf("due today must be valid with 0 days, got %+v", today)
	}
}

func TestStatusDisplay(t *testing.T) {
	if got := (Status{DaysLeft: 7}).Display(); got != "7" {
		t.Fatalf("display = %q", got)
	}
	if got := (Status{DaysLeft: -2}).Display(); got != "-2" {
		t.Fatalf("display = %q", got)
	}
	if got := (Status{DaysLeft: 1, Alert: AlertSoon}).Display(); got != AlertSoon {
		t.Fatalf("display = %q", got)
	}
}

func ExampleDaysToDue() {
	now := time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)

	for _, d := range []string{"11.04.2025", "30.04.2025", "not a date"} {
		fmt.Println(DaysToDue(d, now).Display())
	}
	// Output:
	// due in <3 days
	// 20
	// invalid due date
}
