package filter

import (
	"fmt"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/source"
)

// Slot names the two independent filter positions: the read filter applies
// during the first pass of two-pass analysis, the display filter during the
// second pass or the single combined pass.
type Slot int

const (
	SlotRead Slot = iota
	SlotDisplay
)

func (s Slot) String() string {
	if s == SlotRead {
		return "read"
	}
	return "display"
}

// Chain holds the run's compiled filters. Both slots are optional; a frame
// unconditionally passes an empty slot. Filters are compiled once, before
// any frame is processed, and shared read-only afterwards.
type Chain struct {
	Read    Predicate
	Display Predicate
}

// NewChain compiles both filter expressions. A filter that cannot be
// compiled is a configuration error, surfaced here and never per-frame.
func NewChain(readExpr, displayExpr string) (*Chain, error) {
	c := &Chain{}
	if readExpr != "" {
		p, err := Compile(readExpr)
		if err != nil {
			return nil, fmt.Errorf("read filter: %w", err)
		}
		c.Read = p
	}
	if displayExpr != "" {
		p, err := Compile(displayExpr)
		if err != nil {
			return nil, fmt.Errorf("display filter: %w", err)
		}
		c.Display = p
	}
	return c, nil
}

// Active returns the predicate for a slot, or nil when the slot is empty.
func (c *Chain) Active(slot Slot) Predicate {
	if slot == SlotRead {
		return c.Read
	}
	return c.Display
}

// Check runs the per-frame filter protocol for a slot: prime the engine
// with the active filter's requirements, dissect, evaluate. A frame passes
// unconditionally when the slot has no filter. The engine's per-frame
// scratch is reset before returning, regardless of outcome.
func (c *Chain) Check(eng dissect.Engine, slot Slot, needTree bool, rec *source.Record, f *frames.Frame, row *columns.Row) (res *dissect.Result, passed bool, err error) {
	defer eng.Reset()

	p := c.Active(slot)
	req := dissect.Request{NeedTree: needTree}
	if p != nil {
		pr := p.Requirements()
		req.Protocols = pr.Protocols
		req.Fields = pr.Fields
	}
	eng.Prime(req)

	res, err = eng.Dissect(rec, f, row)
	if err != nil {
		return nil, false, fmt.Errorf("dissect frame %d: %w", f.Num, err)
	}
	return res, p == nil || p.Match(res), nil
}
