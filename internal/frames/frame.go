// Package frames owns per-record metadata tracked across processing passes:
// the Frame record, the append-only Registry keyed by frame number, the
// depended-upon marking used to retain filtered-out frames, and the RunContext
// holding the cumulative state one analysis run mutates between frames.
package frames

import "time"

// Frame is the metadata kept for one record. Offset and length fields are
// fixed at creation; cumulative-byte and cross-frame fields are finalised by
// RunContext.SetAfterDissect and never mutated afterwards.
type Frame struct {
	// Num is the 1-based frame number. Numbers are dense and strictly
	// increasing within a registry and are never reused.
	Num uint32

	// Offset is the record's byte offset in the source.
	Offset int64

	// CapLen is the number of record bytes actually present; Len is the
	// original record length.
	CapLen int
	Len    int

	// CumBytes is the running byte total up to and including this frame.
	CumBytes int64

	// Time is the record's capture timestamp; Elapsed is the time since
	// the first retained frame of the run.
	Time    time.Time
	Elapsed time.Duration

	// PrevDisplayed and PrevCaptured are the numbers of the previous
	// displayed and previous captured frames at the time this frame was
	// processed (0 = none). They are plain numeric references, resolved
	// through the registry, never direct pointers.
	PrevDisplayed uint32
	PrevCaptured  uint32

	// RefFrame is the time-reference frame's number, if one is set.
	RefFrame uint32

	// DependedUpon is set when a later frame's dissection referenced this
	// frame. It overrides a pending filter drop.
	DependedUpon bool

	// Dependent is set when this frame's own dissection relied on an
	// earlier frame.
	Dependent bool

	// Passed records the active filter's verdict for this frame.
	Passed bool
}

// NewFrame builds a Frame for a record with the fields that are fixed at
// creation time.
func NewFrame(num uint32, offset int64, capLen, length int, ts time.Time) *Frame {
	return &Frame{
		Num:    num,
		Offset: offset,
		CapLen: capLen,
		Len:    length,
		Time:   ts,
	}
}
