package frames

import "time"

// RunContext carries the cumulative state of one analysis run: the running
// byte total, the time-reference frame, and the previous-displayed /
// previous-captured trackers. It is owned exclusively by the pipeline
// controller and mutated only between frames, never concurrently. A fresh
// RunContext per run keeps multiple runs (e.g. under test) independent.
type RunContext struct {
	CumBytes int64

	firstTime time.Time
	haveFirst bool

	// Ref is the current time-reference frame; PrevDisplayed and
	// PrevCaptured track the most recent displayed / captured frames.
	Ref           *Frame
	PrevDisplayed *Frame
	PrevCaptured  *Frame
}

// NewRunContext returns an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{}
}

// SetBeforeDissect fills f's cross-frame fields from the state as of this
// frame: a provisional cumulative byte count, the reference frame, the
// previous-displayed/captured numbers, and the elapsed time since the first
// retained frame.
func (rc *RunContext) SetBeforeDissect(f *Frame) {
	f.CumBytes = rc.CumBytes + int64(f.Len)
	if rc.Ref != nil {
		f.RefFrame = rc.Ref.Num
	}
	if rc.PrevDisplayed != nil {
		f.PrevDisplayed = rc.PrevDisplayed.Num
	}
	if rc.PrevCaptured != nil {
		f.PrevCaptured = rc.PrevCaptured.Num
	}
	if rc.haveFirst {
		f.Elapsed = f.Time.Sub(rc.firstTime)
	}
}

// SetAfterDissect finalises f's bookkeeping once the filter verdict is known.
// Only passing frames advance the running byte total and establish the run's
// first-retained timestamp; after this call the frame's cumulative-byte field
// is never mutated again.
func (rc *RunContext) SetAfterDissect(f *Frame, passed bool) {
	f.Passed = passed
	if !passed {
		return
	}
	if !rc.haveFirst {
		rc.firstTime = f.Time
		rc.haveFirst = true
		f.Elapsed = 0
	}
	if rc.Ref == nil {
		rc.Ref = f
		f.RefFrame = f.Num
	}
	rc.CumBytes += int64(f.Len)
	f.CumBytes = rc.CumBytes
}

// UpdateCaptured advances the previous-captured tracker. Called for every
// processed frame, including those that fail the active filter, so relative
// displacement columns on later frames stay correct.
func (rc *RunContext) UpdateCaptured(f *Frame) {
	rc.PrevCaptured = f
}

// UpdateDisplayed advances the previous-displayed tracker. Called only for
// frames that pass and are rendered.
func (rc *RunContext) UpdateDisplayed(f *Frame) {
	rc.PrevDisplayed = f
}

// Reset returns the context to its start-of-run state.
func (rc *RunContext) Reset() {
	*rc = RunContext{}
}
