// Package output routes accepted frames to one of three mutually exclusive
// output actions — plain text, structured markup, or user-selected field
// lists — each with a preamble/render/finale lifecycle.
//
// The action is fixed for the whole run at configuration time; Render never
// re-selects. Byte-level serialization of production capture formats is out
// of scope; the renderers here are the report surfaces of the tool itself.
package output

import (
	"fmt"
	"io"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/frames"
)

// ActionKind selects the output action for a run.
type ActionKind int

const (
	// ActionText renders human-readable text: summary lines, optional
	// detail trees, optional hex dumps.
	ActionText ActionKind = iota
	// ActionMarkup renders XML, either detail-oriented (field tree) or
	// summary-oriented (column values).
	ActionMarkup
	// ActionFields renders user-selected field values in a configurable
	// layout. Never combined with summary lines or hex dumps.
	ActionFields
)

func (k ActionKind) String() string {
	switch k {
	case ActionText:
		return "text"
	case ActionMarkup:
		return "markup"
	case ActionFields:
		return "fields"
	default:
		return fmt.Sprintf("action(%d)", int(k))
	}
}

// FieldLayout configures ActionFields output.
type FieldLayout struct {
	Separator string // defaults to a tab
	Quote     string // optional quote character wrapped around each value
	Header    bool   // emit a header row naming the fields
}

// Config selects and parameterises the run's output action.
type Config struct {
	Kind ActionKind

	// Text options.
	Summary bool // emit a summary line per frame
	Detail  bool // emit the structured field tree
	Hex     bool // emit a hex/ASCII dump of the record bytes

	// Markup options: detail-oriented (field tree) when true, otherwise
	// summary-oriented (column values). The two variants are mutually
	// exclusive per run.
	MarkupDetail bool

	// Fields options.
	Fields      []string
	FieldLayout FieldLayout

	// Cols is the run's column layout, used by text summaries and
	// summary-oriented markup.
	Cols []columns.Column
}

// NeedsTree reports whether the configured action requires a structured
// field tree from dissection.
func (c Config) NeedsTree() bool {
	switch c.Kind {
	case ActionText:
		return c.Detail
	case ActionMarkup:
		return c.MarkupDetail
	}
	return false
}

// NeedsDissection reports whether the configured action reads any dissection
// output at all: a tree, summary columns, or the flat field map.
func (c Config) NeedsDissection() bool {
	return c.NeedsTree() || c.NeedsColumns() || c.Kind == ActionFields
}

// NeedsColumns reports whether the configured action consumes summary
// column values.
func (c Config) NeedsColumns() bool {
	switch c.Kind {
	case ActionText:
		return c.Summary
	case ActionMarkup:
		return !c.MarkupDetail
	}
	return false
}

// Item is one accepted, passing frame ready to render.
type Item struct {
	Frame  *frames.Frame
	Result *dissect.Result
	Row    *columns.Row
	Data   []byte
}

// Action is the three-phase renderer lifecycle: Preamble once before the
// first frame, Render once per accepted frame, Finale once after the last
// frame (skipped on earlier I/O failure).
type Action interface {
	Preamble() error
	Render(it *Item) error
	Finale() error
}

// SinkError marks a write failure on the output destination. Any SinkError
// aborts the remainder of the run; output already written stays valid.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("write output (%s): %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

func sinkErr(op string, err error) error {
	return &SinkError{Op: op, Err: err}
}

// Dispatcher owns the selected action and enforces the lifecycle order.
type Dispatcher struct {
	act      Action
	started  bool
	finished bool
	rendered int
}

// NewDispatcher validates the configuration and builds the dispatcher.
// Invalid combinations are configuration errors, detected before any frame
// is processed.
func NewDispatcher(w io.Writer, cfg Config) (*Dispatcher, error) {
	var act Action
	switch cfg.Kind {
	case ActionText:
		if !cfg.Summary && !cfg.Detail && !cfg.Hex {
			return nil, fmt.Errorf("text output selected but summary, detail and hex are all disabled")
		}
		act = &textAction{w: w, cfg: cfg, fmtr: columns.NewFormatter()}
	case ActionMarkup:
		act = &markupAction{w: w, cfg: cfg}
	case ActionFields:
		if len(cfg.Fields) == 0 {
			return nil, fmt.Errorf("field-list output selected but no fields given")
		}
		if cfg.Summary || cfg.Hex {
			return nil, fmt.Errorf("field-list output cannot include summary lines or hex dumps")
		}
		act = newFieldsAction(w, cfg)
	default:
		return nil, fmt.Errorf("unknown output action %v", cfg.Kind)
	}
	return &Dispatcher{act: act}, nil
}

// Preamble runs the action's preamble. Called once, before the first frame.
func (d *Dispatcher) Preamble() error {
	if d.started {
		return nil
	}
	d.started = true
	return d.act.Preamble()
}

// Render renders one frame. The preamble is issued lazily if the caller has
// not done so.
func (d *Dispatcher) Render(it *Item) error {
	if d.finished {
		return fmt.Errorf("render after finale")
	}
	if !d.started {
		if err := d.Preamble(); err != nil {
			return err
		}
	}
	if err := d.act.Render(it); err != nil {
		return err
	}
	d.rendered++
	return nil
}

// Finale runs the action's finale. Callers skip it after a source or sink
// error.
func (d *Dispatcher) Finale() error {
	if d.finished {
		return nil
	}
	d.finished = true
	if !d.started {
		// No frames rendered; still emit a well-formed document.
		d.started = true
		if err := d.act.Preamble(); err != nil {
			return err
		}
	}
	return d.act.Finale()
}

// Rendered reports how many frames have been rendered.
func (d *Dispatcher) Rendered() int { return d.rendered }
