// Package due computes days until an invoice is due and whether it needs an alert.
package due

import (
	"errors"
	"strconv"
	"time"

	"pricewatch/pkg/models"
)

// AlertSoon is the alert text for invoices due within AlertWindowDays.
const AlertSoon = "due in <3 days"

// InvalidDateText is displayed instead of a day count when the due date is unparsable.
const InvalidDateText = "invalid due date"

// AlertWindowDays is the number of days, starting today, that trigger AlertSoon.
const AlertWindowDays = 3

// ErrBadDate is carried in Status.Err when the due date cannot be parsed.
var ErrBadDate = errors.New("unparsable due date")

// Status is the result of DaysToDue. When Err is set DaysLeft is meaningless,
// so "due today" and "bad date" can never be confused.
type Status struct {
	DaysLeft int
	Alert    string
	Err      error
}

// Valid reports whether the due date parsed.
func (s Status) Valid() bool {
	return s.Err == nil
}

// Display is the days_display cell: the alert, the signed day count, or InvalidDateText.
func (s Status) Display() string {
	switch {
	case !s.Valid():
		return InvalidDateText
	case s.Alert != "":
		return s.Alert
	default:
		return strconv.Itoa(s.DaysLeft)
	}
}

// DaysToDue parses dueDate and compares it with now at day precision.
// Overdue invoices (negative DaysLeft) carry no alert text.
func DaysToDue(dueDate string, now time.Time) Status {
	t, err := models.ParseDate(dueDate)
	if err != nil {
		return Status{Err: errors.Join(ErrBadDate, err)}
	}
	return ForDate(t, now)
}

// ForDate is DaysToDue for an already parsed due date.
func ForDate(dueDate, now time.Time) Status {
	days := DaysBetween(now, dueDate)
	status := Status{DaysLeft: days}
	if days >= 0 && days < AlertWindowDays {
		status.Alert = AlertSoon
	}
	return status
}

// DaysBetween returns the whole days from the calendar date of from to that of to.
// Time of day and location offsets are ignored.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
