package period

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the width of a chart bucket.
type Granularity string

const (
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// Granularities in cycling order.
var Granularities = []Granularity{Day, Week, Month, Quarter, Year}

// ParseGranularity accepts the names above, case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Granularities {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Truncate returns the start of the bucket containing t. Weeks start on Monday.
func Truncate(t time.Time, g Granularity) time.Time {
	loc := t.Location()
	switch g {
	case Week:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case Quarter:
		m := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), m, 1, 0, 0, 0, 0, loc)
	case Year:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}

// Next returns the start of the bucket after the one starting at start.
func Next(start time.Time, g Granularity) time.Time {
	switch g {
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Quarter:
		return start.AddDate(0, 3, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Label formats the bucket containing t.
func Label(t time.Time, g Granularity) string {
	switch g {
	case Week:
		y, w := Truncate(t, Week).ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case Month:
		return t.Format("2006-01")
	case Quarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case Year:
		return t.Format("2006")
	default:
		return t.Format(time.DateOnly)
	}
}

// Buckets lists the bucket starts that cover r. An open-ended range yields nil.
func Buckets(r Range, g Granularity) []time.Time {
	if r.Start.IsZero() || r.End.IsZero() || !r.Start.Before(r.End) {
		return nil
	}
	var out []time.Time
	for b := Truncate(r.Start, g); b.Before(r.End); b = Next(b, g) {
		out = append(out, b)
	}
	return out
}
