package columns

import (
	"github.com/mattn/go-runewidth"
)

// Separators inserted between a source column and a destination column of
// the same address class (and the reverse order).
const (
	arrowRight = " -> "
	arrowLeft  = " <- "
)

// Formatter renders rows of column text into fixed-width summary lines.
//
// The line buffer is reused between calls and grows geometrically, so
// formatting N frames performs O(log max-line) allocations overall. A
// Formatter is single-writer: rendering is strictly sequential, one frame
// at a time, so no locking is needed.
type Formatter struct {
	buf []byte
}

// NewFormatter returns a Formatter with a small initial line buffer.
func NewFormatter() *Formatter {
	return &Formatter{buf: make([]byte, 0, 128)}
}

// joinKind classifies the separator between two adjacent visible columns.
func joinKind(cur, next Column) string {
	if cur.Class == ClassNone || cur.Class != next.Class {
		return " "
	}
	if cur.Kind == Source && next.Kind == Destination {
		return arrowRight
	}
	if cur.Kind == Destination && next.Kind == Source {
		return arrowLeft
	}
	return " "
}

// FormatRow renders one summary line from the row's visible columns.
//
// Alignment rules: number, time and source columns are right-aligned to
// their kind's minimum width; destination columns are left-aligned. A
// source/destination pair of the same address class is joined with " -> "
// (or " <- " when reversed) and neither side of the join is padded. The
// last visible column is never right-padded. Invisible columns are skipped
// entirely, including for adjacency purposes.
//
// The returned string is built fresh on each call, so re-rendering the same
// row yields byte-identical output.
func (f *Formatter) FormatRow(row *Row) string {
	type cell struct {
		col  Column
		text string
	}
	var visible []cell
	for i, c := range row.Cols {
		if !c.Visible {
			continue
		}
		visible = append(visible, cell{col: c, text: row.Text[i]})
	}

	f.buf = f.buf[:0]
	// Columns adjacent to a direction join render unpadded.
	unpadded := make([]bool, len(visible))
	seps := make([]string, len(visible))
	for i := 0; i < len(visible)-1; i++ {
		sep := joinKind(visible[i].col, visible[i+1].col)
		seps[i] = sep
		if sep != " " {
			unpadded[i] = true
			unpadded[i+1] = true
		}
	}

	for i, c := range visible {
		last := i == len(visible)-1
		width := runewidth.StringWidth(c.text)
		min := minWidth(c.col.Kind)
		pad := 0
		if !unpadded[i] && width < min {
			pad = min - width
		}
		switch c.col.Kind {
		case Destination:
			f.appendString(c.text)
			if !last {
				f.appendSpaces(pad)
			}
		case Other:
			f.appendString(c.text)
		default: // Number, Time, Source right-align
			f.appendSpaces(pad)
			f.appendString(c.text)
		}
		if !last {
			f.appendString(seps[i])
		}
	}
	return string(f.buf)
}

// appendString grows the buffer geometrically before appending, so the
// buffer never shrinks and rarely reallocates.
func (f *Formatter) appendString(s string) {
	f.grow(len(s))
	f.buf = append(f.buf, s...)
}

func (f *Formatter) appendSpaces(n int) {
	f.grow(n)
	for i := 0; i < n; i++ {
		f.buf = append(f.buf, ' ')
	}
}

func (f *Formatter) grow(n int) {
	need := len(f.buf) + n
	if need <= cap(f.buf) {
		return
	}
	newCap := cap(f.buf) * 2
	if newCap < need {
		newCap = need
	}
	nb := make([]byte, len(f.buf), newCap)
	copy(nb, f.buf)
	f.buf = nb
}
