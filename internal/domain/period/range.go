// Package period provides whole-day date ranges used for delegation windows.
package period

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on the wire and in storage
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a range starts after it ends
var ErrInvalidRange = errors.New("invalid range")

// Range is a closed interval of calendar days [Start, End]
type Range struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// New builds a Range from two instants, truncating both to their UTC calendar date
func New(start, end time.Time) (Range, error) {
	r := Range{Start: Date(start), End: Date(end)}
	if r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// Parse builds a Range from two YYYY-MM-DD strings
func Parse(start, end string) (Range, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start date %q", ErrInvalidRange, start)
	}
	e, err := ParseDate(end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end date %q", ErrInvalidRange, end)
	}
	return New(s, e)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Date returns midnight UTC of the calendar date t has in its own location
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps reports whether the two closed ranges share at least one day
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// Contains reports whether the calendar date of now falls within the range
func (r Range) Contains(now time.Time) bool {
	day := Date(now)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days returns the number of calendar days covered, inclusive
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// String returns "YYYY-MM-DD..YYYY-MM-DD"
func (r Range) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
