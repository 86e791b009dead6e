package frame

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the element type of a Series.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Series is a named, typed column. Exactly one backing slice is populated,
// matching Kind.
type Series struct {
	Name string
	Kind Kind

	strs   []string
	ints   []int64
	floats []float64
	times  []time.Time
}

func Strings(name string, v []string) *Series { return &Series{Name: name, Kind: KindString, strs: v} }
func Ints(name string, v []int64) *Series     { return &Series{Name: name, Kind: KindInt, ints: v} }
func Floats(name string, v []float64) *Series { return &Series{Name: name, Kind: KindFloat, floats: v} }
func Times(name string, v []time.Time) *Series {
	return &Series{Name: name, Kind: KindTime, times: v}
}

// Len returns the number of elements.
func (s *Series) Len() int {
	switch s.Kind {
	case KindInt:
		return len(s.ints)
	case KindFloat:
		return len(s.floats)
	case KindTime:
		return len(s.times)
	default:
		return len(s.strs)
	}
}

// Numeric reports whether the series can be summed.
func (s *Series) Numeric() bool { return s.Kind == KindInt || s.Kind == KindFloat }

// String formats element i.
func (s *Series) String(i int) string {
	switch s.Kind {
	case KindInt:
		return strconv.FormatInt(s.ints[i], 10)
	case KindFloat:
		return strconv.FormatFloat(s.floats[i], 'f', 2, 64)
	case KindTime:
		return s.times[i].Format(time.DateOnly)
	default:
		return s.strs[i]
	}
}

// Float returns element i as float64. Non-numeric series return 0.
func (s *Series) Float(i int) float64 {
	switch s.Kind {
	case KindInt:
		return float64(s.ints[i])
	case KindFloat:
		return s.floats[i]
	default:
		return 0
	}
}

// Int returns element i as int64, truncating floats.
func (s *Series) Int(i int) int64 {
	switch s.Kind {
	case KindInt:
		return s.ints[i]
	case KindFloat:
		return int64(s.floats[i])
	default:
		return 0
	}
}

// Time returns element i for time series, zero time otherwise.
func (s *Series) Time(i int) time.Time {
	if s.Kind != KindTime {
		return time.Time{}
	}
	return s.times[i]
}

// StringValues returns the backing slice of a string series.
func (s *Series) StringValues() []string { return s.strs }

// IntValues returns the backing slice of an int series.
func (s *Series) IntValues() []int64 { return s.ints }

// FloatValues returns the backing slice of a float series.
func (s *Series) FloatValues() []float64 { return s.floats }

// take builds a new series holding the elements at idx, in order.
func (s *Series) take(idx []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	switch s.Kind {
	case KindInt:
		out.ints = make([]int64, len(idx))
		for j, i := range idx {
			out.ints[j] = s.ints[i]
		}
	case KindFloat:
		out.floats = make([]float64, len(idx))
		for j, i := range idx {
			out.floats[j] = s.floats[i]
		}
	case KindTime:
		out.times = make([]time.Time, len(idx))
		for j, i := range idx {
			out.times[j] = s.times[i]
		}
	default:
		out.strs = make([]string, len(idx))
		for j, i := range idx {
			out.strs[j] = s.strs[i]
		}
	}
	return out
}

// less compares elements i and j.
func (s *Series) less(i, j int) bool {
	switch s.Kind {
	case KindInt:
		return s.ints[i] < s.ints[j]
	case KindFloat:
		return s.floats[i] < s.floats[j]
	case KindTime:
		return s.times[i].Before(s.times[j])
	default:
		return s.strs[i] < s.strs[j]
	}
}

// appendValue adds v, which must match Kind.
func (s *Series) appendValue(v any) error {
	switch s.Kind {
	case KindInt:
		switch n := v.(type) {
		case int64:
			s.ints = append(s.ints, n)
		case int:
			s.ints = append(s.ints, int64(n))
		default:
			return fmt.Errorf("%w: column %q wants int, got %T", ErrKind, s.Name, v)
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			s.floats = append(s.floats, n)
		case int64:
			s.floats = append(s.floats, float64(n))
		case int:
			s.floats = append(s.floats, float64(n))
		default:
			return fmt.Errorf("%w: column %q wants float, got %T", ErrKind, s.Name, v)
		}
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("%w: column %q wants time, got %T", ErrKind, s.Name, v)
		}
		s.times = append(s.times, t)
	default:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: column %q wants string, got %T", ErrKind, s.Name, v)
		}
		s.strs = append(s.strs, str)
	}
	return nil
}
