package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/dissect.report/internal/dissect"
)

// markupAction renders XML. The detail variant emits the structured field
// tree per frame; the summary variant emits the column values, preceded by a
// structure block naming the columns. The document root is opened in the
// preamble and closed in the finale, so an aborted run leaves a truncated
// but locally well-formed prefix.
type markupAction struct {
	w   io.Writer
	cfg Config
	buf bytes.Buffer
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func (a *markupAction) Preamble() error {
	a.buf.Reset()
	a.buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	a.buf.WriteString("<report>\n")
	if !a.cfg.MarkupDetail {
		a.buf.WriteString("<structure>\n")
		for _, col := range a.cfg.Cols {
			if !col.Visible {
				continue
			}
			fmt.Fprintf(&a.buf, "<section>%s</section>\n", xmlEscaper.Replace(col.Title))
		}
		a.buf.WriteString("</structure>\n")
	}
	if _, err := a.w.Write(a.buf.Bytes()); err != nil {
		return sinkErr("preamble", err)
	}
	return nil
}

func (a *markupAction) Render(it *Item) error {
	a.buf.Reset()
	if a.cfg.MarkupDetail {
		a.renderDetail(it)
	} else {
		a.renderSummary(it)
	}
	if _, err := a.w.Write(a.buf.Bytes()); err != nil {
		return sinkErr("render", err)
	}
	return nil
}

func (a *markupAction) renderDetail(it *Item) {
	fmt.Fprintf(&a.buf, "<packet num=\"%d\">\n", it.Frame.Num)
	if it.Result != nil && it.Result.Tree != nil {
		for _, proto := range it.Result.Tree.Children {
			a.writeProto(proto)
		}
	}
	a.buf.WriteString("</packet>\n")
}

func (a *markupAction) writeProto(n *dissect.Node) {
	fmt.Fprintf(&a.buf, "  <proto name=\"%s\" showname=\"%s\">\n",
		xmlEscaper.Replace(n.Name), xmlEscaper.Replace(n.Show))
	for _, child := range n.Children {
		a.writeField(child, 2)
	}
	a.buf.WriteString("  </proto>\n")
}

func (a *markupAction) writeField(n *dissect.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if len(n.Children) == 0 {
		fmt.Fprintf(&a.buf, "%s<field name=\"%s\" showname=\"%s\"/>\n",
			indent, xmlEscaper.Replace(n.Name), xmlEscaper.Replace(n.Show))
		return
	}
	fmt.Fprintf(&a.buf, "%s<field name=\"%s\" showname=\"%s\">\n",
		indent, xmlEscaper.Replace(n.Name), xmlEscaper.Replace(n.Show))
	for _, child := range n.Children {
		a.writeField(child, depth+1)
	}
	fmt.Fprintf(&a.buf, "%s</field>\n", indent)
}

func (a *markupAction) renderSummary(it *Item) {
	a.buf.WriteString("<packet>\n")
	if it.Row != nil {
		for i, col := range it.Row.Cols {
			if !col.Visible {
				continue
			}
			fmt.Fprintf(&a.buf, "<section>%s</section>\n", xmlEscaper.Replace(it.Row.Text[i]))
		}
	}
	a.buf.WriteString("</packet>\n")
}

func (a *markupAction) Finale() error {
	if _, err := io.WriteString(a.w, "</report>\n"); err != nil {
		return sinkErr("finale", err)
	}
	return nil
}
