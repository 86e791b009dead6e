// Package frame is a small column-oriented table used to aggregate records
// for the dashboard and the summary command.
//
// Frames are immutable: every operation returns a new Frame and leaves the
// receiver untouched. Series backing slices may be shared between frames,
// so callers must not mutate slices passed to the constructors afterwards.
package frame

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNoColumn        = errors.New("no such column")
	ErrLength          = errors.New("column length mismatch")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrKind            = errors.New("wrong column kind")
)

// Frame is an ordered set of equal-length series.
type Frame struct {
	cols  []*Series
	index map[string]int
	rows  int
}

// New builds a frame from series of equal length.
func New(series ...*Series) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(series))}
	for i, s := range series {
		if _, dup := f.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, s.Name)
		}
		if i == 0 {
			f.rows = s.Len()
		} else if s.Len() != f.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLength, s.Name, s.Len(), f.rows)
		}
		f.index[s.Name] = i
		f.cols = append(f.cols, s)
	}
	return f, nil
}

// Len returns the row count.
func (f *Frame) Len() int { return f.rows }

// Columns returns column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Col looks up a column by name.
func (f *Frame) Col(name string) (*Series, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return f.cols[i], nil
}

// Row is a cursor over one row of a frame.
type Row struct {
	f *Frame
	i int
}

// Row returns row i.
func (f *Frame) Row(i int) Row { return Row{f: f, i: i} }

// Index returns the row position.
func (r Row) Index() int { return r.i }

// String returns the named cell formatted as text, "" for unknown columns.
func (r Row) String(col string) string {
	s, err := r.f.Col(col)
	if err != nil {
		return ""
	}
	return s.String(r.i)
}

// Float returns the named numeric cell, 0 for unknown or non-numeric columns.
func (r Row) Float(col string) float64 {
	s, err := r.f.Col(col)
	if err != nil {
		return 0
	}
	return s.Float(r.i)
}

// Int returns the named numeric cell as int64.
func (r Row) Int(col string) int64 {
	s, err := r.f.Col(col)
	if err != nil {
		return 0
	}
	return s.Int(r.i)
}

// Time returns the named time cell.
func (r Row) Time(col string) time.Time {
	s, err := r.f.Col(col)
	if err != nil {
		return time.Time{}
	}
	return s.Time(r.i)
}

func (f *Frame) take(idx []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), rows: len(idx)}
	for i, c := range f.cols {
		out.cols = append(out.cols, c.take(idx))
		out.index[c.Name] = i
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	idx := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if keep(f.Row(i)) {
			idx = append(idx, i)
		}
	}
	return f.take(idx)
}

// Derive appends a computed column. fn must return values of kind.
func (f *Frame) Derive(name string, kind Kind, fn func(Row) any) (*Frame, error) {
	if _, exists := f.index[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	s := &Series{Name: name, Kind: kind}
	for i := 0; i < f.rows; i++ {
		if err := s.appendValue(fn(f.Row(i))); err != nil {
			return nil, err
		}
	}
	cols := append(append([]*Series(nil), f.cols...), s)
	return New(cols...)
}

// SortBy orders rows by col. The sort is stable.
func (f *Frame) SortBy(col string, desc bool) (*Frame, error) {
	s, err := f.Col(col)
	if err != nil {
		return nil, err
	}
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if desc {
			return s.less(idx[b], idx[a])
		}
		return s.less(idx[a], idx[b])
	})
	return f.take(idx), nil
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > f.rows {
		n = f.rows
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.take(idx)
}
