package output

import (
	"bytes"
	"io"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/dissect"
)

// textAction renders human-readable text. Any combination of summary line,
// detail tree and hex dump may be enabled; detail and hex blocks are
// separated from the next frame by a blank line.
type textAction struct {
	w    io.Writer
	cfg  Config
	fmtr *columns.Formatter
	buf  bytes.Buffer
}

func (a *textAction) Preamble() error { return nil }

func (a *textAction) Render(it *Item) error {
	a.buf.Reset()
	if a.cfg.Summary && it.Row != nil {
		a.buf.WriteString(a.fmtr.FormatRow(it.Row))
		a.buf.WriteByte('\n')
	}
	if a.cfg.Detail && it.Result != nil && it.Result.Tree != nil {
		writeTree(&a.buf, it.Result.Tree, 0)
	}
	if a.cfg.Hex {
		if err := writeHexDump(&a.buf, it.Data); err != nil {
			return sinkErr("render", err)
		}
	}
	if a.cfg.Detail || a.cfg.Hex {
		a.buf.WriteByte('\n')
	}
	if _, err := a.w.Write(a.buf.Bytes()); err != nil {
		return sinkErr("render", err)
	}
	return nil
}

func (a *textAction) Finale() error { return nil }

// writeTree prints the field tree with two-space indentation per level. The
// root node is a container only and is not printed itself.
func writeTree(buf *bytes.Buffer, n *dissect.Node, depth int) {
	if depth > 0 {
		for i := 0; i < (depth-1)*2; i++ {
			buf.WriteByte(' ')
		}
		buf.WriteString(n.Show)
		buf.WriteByte('\n')
	}
	for _, child := range n.Children {
		writeTree(buf, child, depth+1)
	}
}
