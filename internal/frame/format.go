package frame

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// FormatOptions controls Format output.
type FormatOptions struct {
	// MaxRows truncates output; 0 prints everything.
	MaxRows int
	// Cell overrides how a cell is rendered. Returning ok=false falls back
	// to the series default.
	Cell func(col string, s *Series, i int) (text string, ok bool)
}

// Format writes an aligned text table. Numeric columns are right-aligned.
func (f *Frame) Format(w io.Writer, opts FormatOptions) error {
	n := f.rows
	if opts.MaxRows > 0 && n > opts.MaxRows {
		n = opts.MaxRows
	}
	cells := make([][]string, len(f.cols))
	widths := make([]int, len(f.cols))
	for c, s := range f.cols {
		widths[c] = utf8.RuneCountInString(s.Name)
		cells[c] = make([]string, n)
		for i := 0; i < n; i++ {
			text, ok := "", false
			if opts.Cell != nil {
				text, ok = opts.Cell(s.Name, s, i)
			}
			if !ok {
				text = s.String(i)
			}
			cells[c][i] = text
			if l := utf8.RuneCountInString(text); l > widths[c] {
				widths[c] = l
			}
		}
	}

	pad := func(s string, width int, right bool) string {
		gap := width - utf8.RuneCountInString(s)
		if gap <= 0 {
			return s
		}
		if right {
			return strings.Repeat(" ", gap) + s
		}
		return s + strings.Repeat(" ", gap)
	}

	var b strings.Builder
	for c, s := range f.cols {
		if c > 0 {
			b.WriteString("  ")
		}
		b.WriteString(pad(s.Name, widths[c], s.Numeric()))
	}
	b.WriteString("\n")
	for i := 0; i < n; i++ {
		for c, s := range f.cols {
			if c > 0 {
				b.WriteString("  ")
			}
			b.WriteString(pad(cells[c][i], widths[c], s.Numeric()))
		}
		b.WriteString("\n")
	}
	if n < f.rows {
		fmt.Fprintf(&b, "... %d more rows\n", f.rows-n)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
