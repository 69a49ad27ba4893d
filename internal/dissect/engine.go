// Package dissect defines the dissection-engine contract consumed by the
// pipeline and provides a gopacket-backed engine implementing it.
//
// An Engine turns one raw record plus its frame metadata into a Result:
// the set of protocols seen, a flat field map, optionally a structured
// field tree, and the frame numbers this record's interpretation depended
// on (e.g. earlier IP fragments).
package dissect

import (
	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/source"
)

// Request primes an engine before dissection so it can skip work: whether a
// structured field tree is required, and which protocols and fields the
// active filter or output will look at.
type Request struct {
	NeedTree  bool
	Protocols []string
	Fields    []string
}

// Engine is the dissection engine contract.
type Engine interface {
	// Prime registers field/protocol interest for subsequent Dissect
	// calls so the engine can short-circuit unnecessary work. Called
	// before dissection whenever the interest set changes.
	Prime(req Request)

	// Dissect decodes one record. When row is non-nil the engine fills
	// the summary column text. The returned Result reports the record's
	// declared dependency set.
	Dissect(rec *source.Record, f *frames.Frame, row *columns.Row) (*Result, error)

	// Reset releases per-frame scratch state. Must be called after every
	// frame regardless of outcome.
	Reset()
}

// SequentialCacheFlusher is implemented by engines that keep caches only
// needed during a forward scan (fragment tables and the like). The pipeline
// flushes them between pass 1 and pass 2.
type SequentialCacheFlusher interface {
	FlushSequentialCaches()
}

// FrameRetractor is implemented by engines whose sequential caches key on
// frame numbers. The pipeline retracts a frame when a filter drops it and
// its provisional number will be reused, so cached references cannot point
// at the wrong frame.
type FrameRetractor interface {
	RetractFrame(num uint32)
}

// Result is one dissected frame.
type Result struct {
	Frame     *frames.Frame
	Tree      *Node // nil unless a tree was requested
	Protocols []string
	Fields    map[string][]string

	// DependsOn lists frame numbers this record's dissection relied on;
	// Dependent is set when that list is non-empty.
	DependsOn []uint32
	Dependent bool
}

// HasProtocol reports whether the named protocol was seen.
func (r *Result) HasProtocol(name string) bool {
	for _, p := range r.Protocols {
		if p == name {
			return true
		}
	}
	return false
}

// FieldValues returns all values recorded for a field name.
func (r *Result) FieldValues(name string) []string {
	return r.Fields[name]
}

// FirstField returns the first value for a field name, or "".
func (r *Result) FirstField(name string) string {
	if vs := r.Fields[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Node is one entry in the structured field tree: a protocol node or a
// name/value leaf beneath it.
type Node struct {
	Name     string // short name, e.g. "ip"
	Show     string // display text
	Children []*Node
}

// Add appends a child node and returns it.
func (n *Node) Add(name, show string) *Node {
	child := &Node{Name: name, Show: show}
	n.Children = append(n.Children, child)
	return child
}
