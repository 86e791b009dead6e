package period

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLayouts are tried after any caller-supplied layouts. Slash dates
// are day-first.
var DefaultLayouts = []string{
	time.DateOnly,
	"2/01/2006",
	"02/01/2006",
	"2006/01/02",
	"2 Jan 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseDate parses s as a calendar day and returns UTC midnight of that day.
func ParseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, set := range [][]string{layouts, DefaultLayouts} {
		for _, layout := range set {
			if layout == "" {
				continue
			}
			t, err := time.Parse(layout, s)
			if err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// DayIn returns UTC midnight of t's calendar day in loc. A nil loc means
// time.Local.
func DayIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
