// Package period resolves dashboard timeframes and buckets dates for charts.
//
// All ranges are half-open: Start is included, End is excluded. Dates are
// calendar days, so callers normalise to midnight in a single location
// (records use UTC midnight).
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownPreset is returned by Resolve for an unrecognised preset name.
var ErrUnknownPreset = errors.New("unknown timeframe preset")

// Range is a half-open [Start, End) span of time.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unbounded.
func (r Range) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t falls in the range. A zero range contains everything.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// Days returns the number of calendar days covered.
func (r Range) Days() int {
	if r.Start.IsZero() || r.End.IsZero() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24 + 0.5)
}

func (r Range) String() string {
	if r.IsZero() {
		return "all time"
	}
	if r.End.IsZero() {
		return r.Start.Format(time.DateOnly) + " onwards"
	}
	last := r.End.AddDate(0, 0, -1)
	return r.Start.Format(time.DateOnly) + " to " + last.Format(time.DateOnly)
}

// Preset names a dashboard timeframe.
type Preset string

const (
	ThisMonth Preset = "this-month"
	LastMonth Preset = "last-month"
	OneMonth  Preset = "1m"
	ThreeMo   Preset = "3m"
	SixMo     Preset = "6m"
	YTD       Preset = "ytd"
	OneYear   Preset = "1y"
	All       Preset = "all"
)

// Presets lists the presets in the order the dashboard cycles through them.
var Presets = []Preset{ThisMonth, LastMonth, OneMonth, ThreeMo, SixMo, YTD, OneYear, All}

var presetLabels = map[Preset]string{
	ThisMonth: "This Month",
	LastMonth: "Last Month",
	OneMonth:  "1M",
	ThreeMo:   "3M",
	SixMo:     "6M",
	YTD:       "YTD",
	OneYear:   "1Y",
	All:       "All",
}

// Label returns the short display name for p.
func (p Preset) Label() string {
	if l, ok := presetLabels[p]; ok {
		return l
	}
	return string(p)
}

// ParsePreset normalises a user-supplied preset name.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presetLabels[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
	return p, nil
}

// Resolve turns a preset into a concrete range relative to now. Rolling
// presets include today, so they end at tomorrow's midnight.
func Resolve(p Preset, now time.Time) (Range, error) {
	loc := now.Location()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := dayStart.AddDate(0, 0, 1)
	switch p {
	case ThisMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return Range{Start: start, End: start.AddDate(0, 1, 0)}, nil
	case LastMonth:
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return Range{Start: end.AddDate(0, -1, 0), End: end}, nil
	case OneMonth:
		return Range{Start: dayStart.AddDate(0, -1, 0), End: tomorrow}, nil
	case ThreeMo:
		return Range{Start: dayStart.AddDate(0, -3, 0), End: tomorrow}, nil
	case SixMo:
		return Range{Start: dayStart.AddDate(0, -6, 0), End: tomorrow}, nil
	case YTD:
		return Range{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc), End: tomorrow}, nil
	case OneYear:
		return Range{Start: dayStart.AddDate(-1, 0, 0), End: tomorrow}, nil
	case All:
		return Range{}, nil
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownPreset, p)
	}
}

// Custom builds a range from an inclusive end date.
func Custom(start, endInclusive time.Time) (Range, error) {
	if endInclusive.Before(start) {
		return Range{}, fmt.Errorf("custom range: end %s before start %s",
			endInclusive.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return Range{Start: start, End: endInclusive.AddDate(0, 0, 1)}, nil
}

// UTC re-expresses the range bounds as UTC midnights of the same calendar
// days. Record dates are stored that way.
func (r Range) UTC() Range {
	conv := func(t time.Time) time.Time {
		if t.IsZero() {
			return t
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return Range{Start: conv(r.Start), End: conv(r.End)}
}
