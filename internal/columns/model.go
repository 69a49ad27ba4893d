// Package columns owns the summary-column model and the fixed-width
// formatter that turns engine-supplied column text into one report line.
//
// A column carries a kind (number, time, address, other) and, for address
// columns, an address class. The formatter uses kind and class to decide
// alignment and the " -> " / " <- " direction joins between matching
// source/destination pairs.
package columns

// Kind identifies how a column's text is aligned and padded.
type Kind uint8

const (
	// Number is a numeric index column (frame number), right-aligned.
	Number Kind = iota
	// Time is a timestamp or elapsed-time column, right-aligned.
	Time
	// Source is an address column naming the sending endpoint, right-aligned.
	Source
	// Destination is an address column naming the receiving endpoint, left-aligned.
	Destination
	// Other is free text rendered at its exact width.
	Other
)

// AddrClass distinguishes address columns so that only matching
// source/destination pairs are joined with a direction arrow.
type AddrClass uint8

const (
	// ClassNone marks non-address columns.
	ClassNone AddrClass = iota
	// ClassDataLink is a hardware (e.g. MAC) address column.
	ClassDataLink
	// ClassNetwork is a network-layer (e.g. IP) address column.
	ClassNetwork
	// ClassGeneric is a best-available address column.
	ClassGeneric
)

// Minimum display widths per kind, in terminal cells. Other columns render
// at their exact width.
const (
	minNumberWidth  = 3
	minTimeWidth    = 10
	minAddressWidth = 12
)

// Column describes one summary column of the report.
type Column struct {
	Title   string
	Kind    Kind
	Class   AddrClass
	Visible bool
}

// DefaultSet is the conventional packet-summary column layout: frame number,
// elapsed time, network source and destination, protocol, length and info.
func DefaultSet() []Column {
	return []Column{
		{Title: "No.", Kind: Number, Visible: true},
		{Title: "Time", Kind: Time, Visible: true},
		{Title: "Source", Kind: Source, Class: ClassNetwork, Visible: true},
		{Title: "Destination", Kind: Destination, Class: ClassNetwork, Visible: true},
		{Title: "Protocol", Kind: Other, Visible: true},
		{Title: "Length", Kind: Other, Visible: true},
		{Title: "Info", Kind: Other, Visible: true},
	}
}

// Row pairs a column layout with the per-frame text the dissection engine
// fills in. The engine writes by index; Reset clears text between frames so
// a Row can be reused across the whole run.
type Row struct {
	Cols []Column
	Text []string
}

// NewRow creates a Row for the given layout with empty text cells.
func NewRow(cols []Column) *Row {
	return &Row{Cols: cols, Text: make([]string, len(cols))}
}

// Set stores text for column i. Out-of-range indexes are ignored.
func (r *Row) Set(i int, text string) {
	if i < 0 || i >= len(r.Text) {
		return
	}
	r.Text[i] = text
}

// Reset clears all text cells for reuse on the next frame.
func (r *Row) Reset() {
	for i := range r.Text {
		r.Text[i] = ""
	}
}

func minWidth(k Kind) int {
	switch k {
	case Number:
		return minNumberWidth
	case Time:
		return minTimeWidth
	case Source, Destination:
		return minAddressWidth
	default:
		return 0
	}
}
