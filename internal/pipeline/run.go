// Package pipeline drives one analysis run: it pulls records from the
// source, routes each through the filter chain and the dissection engine,
// maintains the frame registry and the cumulative run context, and hands
// accepted frames to the output dispatcher.
//
// Processing is strictly sequential. A run is either a single combined pass
// or two passes: pass 1 applies the read filter and populates the registry,
// pass 2 re-reads the source, applies the display filter and renders.
package pipeline

import (
	"time"

	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/output"
	"github.com/banshee-data/dissect.report/internal/source"
)

// SourceOpener opens a fresh sequential scan of the record source. Two-pass
// runs open it twice, once per pass.
type SourceOpener func() (source.Source, error)

// Tap is a registered post-processing consumer. Taps see every frame that
// passes the display filter on the rendering pass, in frame-number order.
type Tap interface {
	// Record consumes one passing frame. res is nil when the run performs
	// no dissection at all.
	Record(f *frames.Frame, res *dissect.Result)

	// NeedsTree reports whether the tap reads the structured field tree.
	NeedsTree() bool
}

// Config fixes a run's behavior. All choices here are made once, before the
// first record; nothing is re-decided per frame.
type Config struct {
	// TwoPass selects two-pass analysis: read filter in pass 1, display
	// filter and rendering in pass 2.
	TwoPass bool

	// ReadFilter applies in pass 1 and is only meaningful with TwoPass.
	// DisplayFilter applies in pass 2 or in the single combined pass.
	ReadFilter    string
	DisplayFilter string

	// Output selects and parameterises the run's output action.
	Output output.Config

	// Limit stops the run after this many accepted frames (0 = no limit).
	Limit int
}

// Summary is the run's final bookkeeping.
type Summary struct {
	SourceSize  int64
	RecordsRead int
	Accepted    int
	Rendered    int
	Bytes       int64
	Elapsed     time.Duration
}
