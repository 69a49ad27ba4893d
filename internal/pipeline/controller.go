package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/filter"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/monitoring"
	"github.com/banshee-data/dissect.report/internal/output"
	"github.com/banshee-data/dissect.report/internal/source"
	"github.com/banshee-data/dissect.report/internal/timeutil"
)

// Controller runs one analysis. It owns the registry, the run context and
// the output dispatcher for the duration of the run; none of its state is
// shared across runs.
type Controller struct {
	cfg   Config
	open  SourceOpener
	eng   dissect.Engine
	chain *filter.Chain
	disp  *output.Dispatcher
	taps  []Tap

	reg *frames.Registry
	rc  *frames.RunContext
	row *columns.Row

	// Static per-run decisions, fixed in New and never re-evaluated.
	needDissectScan   bool // pass 1
	needDissectRender bool // pass 2 / single pass
	needTreeRender    bool

	clock timeutil.Clock
	sum   Summary
}

// New validates the configuration and builds a run controller. All
// configuration failures surface here, before any frame is processed.
func New(open SourceOpener, eng dissect.Engine, w io.Writer, cfg Config, taps ...Tap) (*Controller, error) {
	if !cfg.TwoPass && cfg.ReadFilter != "" {
		return nil, failf(FailureConfig, nil, "read filter requires two-pass analysis")
	}

	chain, err := filter.NewChain(cfg.ReadFilter, cfg.DisplayFilter)
	if err != nil {
		return nil, failf(FailureConfig, err, "compile filters")
	}

	if cfg.Output.Cols == nil {
		cfg.Output.Cols = columns.DefaultSet()
	}
	disp, err := output.NewDispatcher(w, cfg.Output)
	if err != nil {
		return nil, failf(FailureConfig, err, "configure output")
	}

	c := &Controller{
		cfg:   cfg,
		open:  open,
		eng:   eng,
		chain: chain,
		disp:  disp,
		taps:  taps,
		clock: timeutil.RealClock{},
	}

	c.needTreeRender = cfg.Output.NeedsTree()
	for _, t := range taps {
		if t.NeedsTree() {
			c.needTreeRender = true
		}
	}
	c.needDissectRender = chain.Display != nil || cfg.Output.NeedsDissection() ||
		c.needTreeRender || len(taps) > 0
	c.needDissectScan = chain.Read != nil

	if cfg.Output.NeedsColumns() {
		c.row = columns.NewRow(cfg.Output.Cols)
	}
	return c, nil
}

// Run executes the configured passes and returns the run summary. On
// success the output finale has run; on source or sink failure it is
// skipped and output already written is preserved.
func (c *Controller) Run() (*Summary, error) {
	start := c.clock.Now()
	c.reg = frames.NewRegistry()
	c.rc = frames.NewRunContext()
	defer c.reg.Destroy()

	var err error
	if c.cfg.TwoPass {
		err = c.passOne()
		if err == nil {
			if fl, ok := c.eng.(dissect.SequentialCacheFlusher); ok {
				fl.FlushSequentialCaches()
			}
			err = c.passTwo()
		}
	} else {
		err = c.singlePass()
	}

	if err == nil {
		if ferr := c.disp.Finale(); ferr != nil {
			err = failf(FailureSink, ferr, "finalise output")
		}
	}

	c.sum.Rendered = c.disp.Rendered()
	c.sum.Bytes = c.rc.CumBytes
	c.sum.Elapsed = c.clock.Since(start)
	sum := c.sum
	if err != nil {
		monitoring.Logf("run failed (%s): %v", Classify(err), err)
	}
	return &sum, err
}

// openSource opens a scan and validates the reported size. A size the
// source cannot report, or one exceeding the addressable maximum, fails the
// run before any record is processed.
func (c *Controller) openSource() (source.Source, error) {
	src, err := c.open()
	if err != nil {
		return nil, failf(FailureConfig, err, "open record source")
	}
	size, err := src.Size()
	if err != nil {
		src.Close()
		return nil, failf(FailureConfig, err, "query record source size")
	}
	c.sum.SourceSize = size
	return src, nil
}

// singlePass reads, filters with the display filter, and renders in one
// sequential scan. Frames failing the filter still advance the
// previous-captured tracker; only rendered frames advance previous-displayed.
func (c *Controller) singlePass() error {
	src, err := c.openSource()
	if err != nil {
		return err
	}
	defer src.Close()
	return c.scan(src, filter.SlotDisplay, c.needDissectRender, true)
}

// passOne reads, filters with the read filter, and populates the registry.
// Nothing is rendered.
func (c *Controller) passOne() error {
	src, err := c.openSource()
	if err != nil {
		return err
	}
	defer src.Close()
	return c.scan(src, filter.SlotRead, c.needDissectScan, false)
}

// scan is the shared forward pass over the source. Accepted frames are
// appended to the registry with dense numbers; a dropped frame's
// provisional number is retracted from the engine's sequential caches so
// its reuse cannot alias a different frame.
func (c *Controller) scan(src source.Source, slot filter.Slot, needDissect, render bool) error {
	var rec source.Record
	for {
		if c.cfg.Limit > 0 && c.sum.Accepted >= c.cfg.Limit {
			return nil
		}
		_, rerr := src.ReadNext(&rec)
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return failf(FailureSource, rerr, "read record %d", c.sum.RecordsRead+1)
		}
		c.sum.RecordsRead++

		num := uint32(c.reg.Count()) + 1
		f := frames.NewFrame(num, rec.Offset, rec.CapLen, rec.Len, rec.Time)
		c.rc.SetBeforeDissect(f)

		var res *dissect.Result
		passed := true
		if needDissect {
			var row *columns.Row
			var needTree bool
			if render {
				row = c.row
				needTree = c.needTreeRender
			}
			var cerr error
			res, passed, cerr = c.chain.Check(c.eng, slot, needTree, &rec, f, row)
			if cerr != nil {
				return failf(FailureSource, cerr, "dissect record %d", c.sum.RecordsRead)
			}
		}
		c.rc.SetAfterDissect(f, passed)

		if passed {
			c.reg.Append(f)
			c.sum.Accepted++
			if res != nil {
				f.Dependent = res.Dependent
				c.reg.MarkDepended(res.DependsOn)
			}
			if render {
				item := &output.Item{Frame: f, Result: res, Row: c.row, Data: rec.Data}
				if werr := c.disp.Render(item); werr != nil {
					return failf(FailureSink, werr, "render frame %d", f.Num)
				}
				for _, t := range c.taps {
					t.Record(f, res)
				}
				c.rc.UpdateDisplayed(f)
			}
		} else if r, ok := c.eng.(dissect.FrameRetractor); ok {
			r.RetractFrame(num)
		}
		c.rc.UpdateCaptured(f)
	}
}

// passTwo re-reads the source, visiting registry frames 1..N in order, and
// applies the display filter. The registry is read-only here apart from
// dependency flags; frames failing the display filter stay registered but
// are never rendered.
func (c *Controller) passTwo() error {
	src, err := c.open()
	if err != nil {
		return failf(FailureSource, err, "reopen record source")
	}
	defer src.Close()

	rc2 := frames.NewRunContext()
	var rec source.Record
	for num := uint32(1); num <= uint32(c.reg.Count()); num++ {
		f, ok := c.reg.Find(num)
		if !ok {
			return failf(FailureSource, nil, "frame %d missing from registry", num)
		}
		if err := advanceTo(src, &rec, f.Offset); err != nil {
			return failf(FailureSource, err, "reread record for frame %d", num)
		}

		// The second pass re-derives cross-frame references from its own
		// trackers; pass-1 values reflect read-filter context only.
		f.PrevCaptured = 0
		if rc2.PrevCaptured != nil {
			f.PrevCaptured = rc2.PrevCaptured.Num
		}
		f.PrevDisplayed = 0
		if rc2.PrevDisplayed != nil {
			f.PrevDisplayed = rc2.PrevDisplayed.Num
		}

		var res *dissect.Result
		passed := true
		if c.needDissectRender {
			var cerr error
			res, passed, cerr = c.chain.Check(c.eng, filter.SlotDisplay, c.needTreeRender, &rec, f, c.row)
			if cerr != nil {
				return failf(FailureSource, cerr, "dissect frame %d", num)
			}
			if res != nil {
				f.Dependent = res.Dependent
				c.reg.MarkDepended(res.DependsOn)
			}
		}

		if passed {
			item := &output.Item{Frame: f, Result: res, Row: c.row, Data: rec.Data}
			if werr := c.disp.Render(item); werr != nil {
				return failf(FailureSink, werr, "render frame %d", f.Num)
			}
			for _, t := range c.taps {
				t.Record(f, res)
			}
			rc2.UpdateDisplayed(f)
		}
		rc2.UpdateCaptured(f)
	}
	return nil
}

// advanceTo reads forward until the record at the wanted offset. Registry
// frames are in source order, so the scan never rewinds.
func advanceTo(src source.Source, rec *source.Record, offset int64) error {
	for {
		if _, err := src.ReadNext(rec); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("record at offset %d not found", offset)
			}
			return err
		}
		if rec.Offset == offset {
			return nil
		}
		if rec.Offset > offset {
			return fmt.Errorf("record at offset %d not found", offset)
		}
	}
}
