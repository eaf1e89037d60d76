package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout calendar date format used by range settings
const DateLayout = "2006-01-02"

// DateRange inclusive calendar-day range. Empty bounds are open.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks both bounds parse and Start is not after End.
func (r DateRange) Validate() error {
	start, end, err := r.Bounds(time.UTC)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return fmt.Errorf("%w: range start %s is after end %s", ErrValidation, r.Start, r.End)
	}
	return nil
}

// IsZero reports an unbounded range.
func (r DateRange) IsZero() bool {
	return strings.TrimSpace(r.Start) == "" && strings.TrimSpace(r.End) == ""
}

// Contains reports whether t falls in the range. Days are UTC calendar days,
// the same bounds the Postgres store filters on. The end bound covers the
// whole end day: t < end+24h.
func (r DateRange) Contains(t time.Time) bool {
	start, end, err := r.Bounds(time.UTC)
	if err != nil {
		return false
	}
	t = t.UTC()
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && !t.Before(end) {
		return false
	}
	return true
}

// Label human readable form used in export headers.
func (r DateRange) Label() string {
	if r.IsZero() {
		return "All"
	}
	start, end := r.Start, r.End
	if start == "" {
		start = "..."
	}
	if end == "" {
		end = "..."
	}
	return start + " to " + end
}

// Bounds returns [start, endExclusive) in loc; zero times mean open.
func (r DateRange) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	var start, end time.Time
	if s := strings.TrimSpace(r.Start); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, loc)
		if err != nil {
			return start, end, fmt.Errorf("%w: invalid start date %q", ErrValidation, s)
		}
		start = t
	}
	if s := strings.TrimSpace(r.End); s != "" {
		t, err := time.ParseInLocation(DateLayout, s, loc)
		if err != nil {
			return start, end, fmt.Errorf("%w: invalid end date %q", ErrValidation, s)
		}
		end = t.AddDate(0, 0, 1)
	}
	return start, end, nil
}
