package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Op is an aggregation.
type Op string

const (
	Sum   Op = "sum"
	Mean  Op = "mean"
	Count Op = "count"
	Min   Op = "min"
	Max   Op = "max"
)

// Agg describes one output column of Grouped.Agg. As defaults to "<col>_<op>".
type Agg struct {
	Col string
	Op  Op
	As  string
}

func (a Agg) name() string {
	if a.As != "" {
		return a.As
	}
	return a.Col + "_" + string(a.Op)
}

// Grouped is a frame partitioned by key columns.
type Grouped struct {
	f      *Frame
	keys   []string
	err    error
	order  []string
	groups map[string][]int
}

const keySep = "\x1f"

// GroupBy partitions rows by the string form of the key columns. Groups
// keep the order in which their first row appears.
func (f *Frame) GroupBy(keys ...string) *Grouped {
	g := &Grouped{f: f, keys: keys, groups: make(map[string][]int)}
	cols := make([]*Series, len(keys))
	for i, k := range keys {
		s, err := f.Col(k)
		if err != nil {
			g.err = err
			return g
		}
		cols[i] = s
	}
	parts := make([]string, len(cols))
	for i := 0; i < f.rows; i++ {
		for j, c := range cols {
			parts[j] = c.String(i)
		}
		key := strings.Join(parts, keySep)
		if _, seen := g.groups[key]; !seen {
			g.order = append(g.order, key)
		}
		g.groups[key] = append(g.groups[key], i)
	}
	return g
}

// Len returns the number of groups.
func (g *Grouped) Len() int { return len(g.order) }

// Agg produces one row per group: the key columns (as strings) followed by
// one float column per aggregation.
func (g *Grouped) Agg(aggs ...Agg) (*Frame, error) {
	if g.err != nil {
		return nil, g.err
	}
	sources := make([]*Series, len(aggs))
	for i, a := range aggs {
		s, err := g.f.Col(a.Col)
		if err != nil {
			return nil, err
		}
		if a.Op != Count && !s.Numeric() {
			return nil, fmt.Errorf("%w: %s of %s column %q", ErrKind, a.Op, s.Kind, a.Col)
		}
		sources[i] = s
	}

	keyVals := make([][]string, len(g.keys))
	aggVals := make([][]float64, len(aggs))
	for _, key := range g.order {
		parts := strings.Split(key, keySep)
		for j := range g.keys {
			keyVals[j] = append(keyVals[j], parts[j])
		}
		rows := g.groups[key]
		for i, a := range aggs {
			v, err := reduce(sources[i], rows, a.Op)
			if err != nil {
				return nil, err
			}
			aggVals[i] = append(aggVals[i], v)
		}
	}

	series := make([]*Series, 0, len(g.keys)+len(aggs))
	for j, k := range g.keys {
		series = append(series, Strings(k, nonNil(keyVals[j])))
	}
	for i, a := range aggs {
		vals := aggVals[i]
		if vals == nil {
			vals = []float64{}
		}
		series = append(series, Floats(a.name(), vals))
	}
	return New(series...)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func reduce(s *Series, rows []int, op Op) (float64, error) {
	switch op {
	case Count:
		return float64(len(rows)), nil
	case Sum, Mean:
		var total float64
		for _, r := range rows {
			total += s.Float(r)
		}
		if op == Mean {
			if len(rows) == 0 {
				return 0, nil
			}
			return total / float64(len(rows)), nil
		}
		return total, nil
	case Min, Max:
		if len(rows) == 0 {
			return 0, nil
		}
		best := s.Float(rows[0])
		for _, r := range rows[1:] {
			v := s.Float(r)
			if (op == Min && v < best) || (op == Max && v > best) {
				best = v
			}
		}
		return best, nil
	default:
		return 0, fmt.Errorf("unknown aggregation %q", op)
	}
}

// Pivot reshapes the frame: one row per distinct index value (first-seen
// order), one float column per distinct columns value (sorted), each cell
// the op over values. Missing cells are 0. A columns value equal to the
// index name is renamed <value>_<columns>, numbered if that is taken too.
func (f *Frame) Pivot(index, columns, values string, op Op) (*Frame, error) {
	idxCol, err := f.Col(index)
	if err != nil {
		return nil, err
	}
	colCol, err := f.Col(columns)
	if err != nil {
		return nil, err
	}
	valCol, err := f.Col(values)
	if err != nil {
		return nil, err
	}
	if op != Count && !valCol.Numeric() {
		return nil, fmt.Errorf("%w: pivot %s of %s column %q", ErrKind, op, valCol.Kind, values)
	}

	var rowKeys []string
	rowSeen := map[string]bool{}
	colSeen := map[string]bool{}
	var colKeys []string
	cells := map[[2]string][]int{}
	for i := 0; i < f.rows; i++ {
		rk, ck := idxCol.String(i), colCol.String(i)
		if !rowSeen[rk] {
			rowSeen[rk] = true
			rowKeys = append(rowKeys, rk)
		}
		if !colSeen[ck] {
			colSeen[ck] = true
			colKeys = append(colKeys, ck)
		}
		cells[[2]string{rk, ck}] = append(cells[[2]string{rk, ck}], i)
	}
	sort.Strings(colKeys)

	series := []*Series{Strings(index, nonNil(rowKeys))}
	taken := map[string]bool{index: true}
	for _, ck := range colKeys {
		taken[ck] = true
	}
	for _, ck := range colKeys {
		name := ck
		if ck == index {
			name = uniqueName(ck+"_"+columns, taken)
			taken[name] = true
		}
		vals := make([]float64, len(rowKeys))
		for r, rk := range rowKeys {
			v, err := reduce(valCol, cells[[2]string{rk, ck}], op)
			if err != nil {
				return nil, err
			}
			vals[r] = v
		}
		series = append(series, Floats(name, vals))
	}
	return New(series...)
}

// uniqueName returns name, or name with the smallest numeric suffix not in
// taken.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s_%d", name, n)
		if !taken[cand] {
			return cand
		}
	}
}

// Stats summarises a numeric column.
type Stats struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
	Std   float64
}

// Describe computes summary statistics for a numeric column. Std is the
// population standard deviation.
func (f *Frame) Describe(col string) (Stats, error) {
	s, err := f.Col(col)
	if err != nil {
		return Stats{}, err
	}
	if !s.Numeric() {
		return Stats{}, fmt.Errorf("%w: describe %s column %q", ErrKind, s.Kind, col)
	}
	st := Stats{Count: f.rows}
	if f.rows == 0 {
		return st, nil
	}
	st.Min, st.Max = s.Float(0), s.Float(0)
	for i := 0; i < f.rows; i++ {
		v := s.Float(i)
		st.Sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = st.Sum / float64(f.rows)
	var sq float64
	for i := 0; i < f.rows; i++ {
		d := s.Float(i) - st.Mean
		sq += d * d
	}
	st.Std = math.Sqrt(sq / float64(f.rows))
	return st, nil
}
