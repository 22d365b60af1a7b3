package timeline

import (
	"fmt"
	"time"
)

// RangeOption names one of the preset date range filters.
type RangeOption string

const (
	RangeLast30Days   RangeOption = "30d"
	RangeLast90Days   RangeOption = "90d"
	RangeLast365Days  RangeOption = "365d"
	RangeLast12Months RangeOption = "12m"
	RangeAll          RangeOption = "all"
)

var rangeLabels = map[RangeOption]string{
	RangeLast30Days:   "Last 30 days",
	RangeLast90Days:   "Last 90 days",
	RangeLast365Days:  "Last 365 days",
	RangeLast12Months: "Last 12 months",
	RangeAll:          "All time",
}

// Label returns the display text for the option.
func (o RangeOption) Label() string { return rangeLabels[o] }

// RangeOptions lists the presets in menu order.
func RangeOptions() []RangeOption {
	return []RangeOption{RangeLast30Days, RangeLast90Days, RangeLast365Days, RangeLast12Months, RangeAll}
}

// DateRange is an inclusive window. A nil bound is open.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// ParseRange resolves a preset relative to now. Bounded presets run from the
// start of the first day to the end of today.
func ParseRange(option string, now time.Time) (DateRange, error) {
	opt := RangeOption(option)
	today := startOfDay(now)
	end := today.AddDate(0, 0, 1).Add(-time.Nanosecond)

	var from time.Time
	switch opt {
	case RangeAll:
		return DateRange{}, nil
	case RangeLast30Days:
		from = today.AddDate(0, 0, -30)
	case RangeLast90Days:
		from = today.AddDate(0, 0, -90)
	case RangeLast365Days:
		from = today.AddDate(0, 0, -365)
	case RangeLast12Months:
		from = today.AddDate(0, -12, 0)
	default:
		return DateRange{}, fmt.Errorf("%w: %q", ErrInvalidDateRange, option)
	}
	return DateRange{From: &from, To: &end}, nil
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool { return r.From == nil && r.To == nil }

// Contains reports whether t falls inside the range, bounds included.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Intersects reports whether the interval [from, to] overlaps the range.
// A nil to means the interval is still open.
func (r DateRange) Intersects(from time.Time, to *time.Time) bool {
	if r.To != nil && from.After(*r.To) {
		return false
	}
	if r.From != nil && to != nil && to.Before(*r.From) {
		return false
	}
	return true
}

// openEnded drops the upper bound; used when fetching point events so that
// upcoming events are always returned.
func (r DateRange) openEnded() DateRange {
	return DateRange{From: r.From}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
