package output

import (
	"bytes"
	"io"
	"strings"
)

// fieldsAction renders the values of user-selected fields, one line per
// frame. Fields with multiple occurrences in a frame are joined with commas;
// absent fields render as empty cells so the layout stays positional.
type fieldsAction struct {
	w      io.Writer
	fields []string
	sep    string
	quote  string
	header bool
	buf    bytes.Buffer
}

func newFieldsAction(w io.Writer, cfg Config) *fieldsAction {
	sep := cfg.FieldLayout.Separator
	if sep == "" {
		sep = "\t"
	}
	return &fieldsAction{
		w:      w,
		fields: cfg.Fields,
		sep:    sep,
		quote:  cfg.FieldLayout.Quote,
		header: cfg.FieldLayout.Header,
	}
}

func (a *fieldsAction) Preamble() error {
	if !a.header {
		return nil
	}
	line := strings.Join(a.fields, a.sep) + "\n"
	if _, err := io.WriteString(a.w, line); err != nil {
		return sinkErr("preamble", err)
	}
	return nil
}

func (a *fieldsAction) Render(it *Item) error {
	a.buf.Reset()
	for i, name := range a.fields {
		if i > 0 {
			a.buf.WriteString(a.sep)
		}
		var value string
		if it.Result != nil {
			value = strings.Join(it.Result.FieldValues(name), ",")
		}
		if a.quote != "" {
			a.buf.WriteString(a.quote)
			a.buf.WriteString(value)
			a.buf.WriteString(a.quote)
		} else {
			a.buf.WriteString(value)
		}
	}
	a.buf.WriteByte('\n')
	if _, err := a.w.Write(a.buf.Bytes()); err != nil {
		return sinkErr("render", err)
	}
	return nil
}

func (a *fieldsAction) Finale() error { return nil }
