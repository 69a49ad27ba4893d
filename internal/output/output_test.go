package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/frames"
)

func sampleItem() *Item {
	cols := columns.DefaultSet()
	row := columns.NewRow(cols)
	row.Set(0, "1")
	row.Set(1, "0.000000")
	row.Set(2, "10.0.0.1")
	row.Set(3, "10.0.0.2")
	row.Set(4, "UDP")
	row.Set(5, "60")
	row.Set(6, "1234 -> 80 Len=4")

	tree := &dissect.Node{}
	ip := tree.Add("ip", "Internet Protocol Version 4")
	ip.Add("ip.src", "Source Address: 10.0.0.1")
	ip.Add("ip.dst", "Destination Address: 10.0.0.2")
	udp := tree.Add("udp", "User Datagram Protocol")
	udp.Add("udp.srcport", "Source Port: 1234")

	return &Item{
		Frame: frames.NewFrame(1, 24, 60, 60, time.Unix(1700000000, 0).UTC()),
		Result: &dissect.Result{
			Tree:      tree,
			Protocols: []string{"ethernet", "ipv4", "udp"},
			Fields: map[string][]string{
				"ip.src":      {"10.0.0.1"},
				"ip.dst":      {"10.0.0.2"},
				"udp.srcport": {"1234"},
			},
		},
		Row:  row,
		Data: []byte("GET / HTTP/1.0\r\n\r\n"),
	}
}

func TestNewDispatcher_ConfigErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	_, err := NewDispatcher(&buf, Config{Kind: ActionText})
	assert.Error(t, err, "all text components disabled")

	_, err = NewDispatcher(&buf, Config{Kind: ActionFields})
	assert.Error(t, err, "no fields selected")

	_, err = NewDispatcher(&buf, Config{
		Kind:    ActionFields,
		Fields:  []string{"ip.src"},
		Summary: true,
	})
	assert.Error(t, err, "fields plus summary")

	_, err = NewDispatcher(&buf, Config{
		Kind:   ActionFields,
		Fields: []string{"ip.src"},
		Hex:    true,
	})
	assert.Error(t, err, "fields plus hex")
}

func TestTextAction_SummaryOnly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionText, Summary: true, Cols: columns.DefaultSet()})
	require.NoError(t, err)

	require.NoError(t, d.Preamble())
	require.NoError(t, d.Render(sampleItem()))
	require.NoError(t, d.Finale())

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "10.0.0.1 -> 10.0.0.2")
	assert.Contains(t, out, "UDP")
	assert.Equal(t, 1, d.Rendered())
}

func TestTextAction_DetailAndHex(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionText, Detail: true, Hex: true})
	require.NoError(t, err)

	require.NoError(t, d.Render(sampleItem()))
	require.NoError(t, d.Finale())

	out := buf.String()
	assert.Contains(t, out, "Internet Protocol Version 4\n")
	assert.Contains(t, out, "  Source Address: 10.0.0.1\n")
	assert.Contains(t, out, "0000  47 45 54 20 2f 20 48 54  54 50 2f 31 2e 30 0d 0a  GET / HTTP/1.0..")
	assert.Contains(t, out, "0010  0d 0a")
	assert.True(t, strings.HasSuffix(out, "\n\n"), "frame block ends with a blank line")
}

func TestHexDump_Padding(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeHexDump(&buf, []byte{0x00, 0x41, 0xff}))
	want := "0000  00 41 ff" + strings.Repeat(" ", 42) + ".A.\n"
	assert.Equal(t, want, buf.String())
}

func TestMarkupAction_Detail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionMarkup, MarkupDetail: true})
	require.NoError(t, err)

	require.NoError(t, d.Preamble())
	require.NoError(t, d.Render(sampleItem()))
	require.NoError(t, d.Finale())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, out, "<report>\n")
	assert.Contains(t, out, `<packet num="1">`)
	assert.Contains(t, out, `<proto name="ip" showname="Internet Protocol Version 4">`)
	assert.Contains(t, out, `<field name="ip.src" showname="Source Address: 10.0.0.1"/>`)
	assert.True(t, strings.HasSuffix(out, "</report>\n"))
	assert.NotContains(t, out, "<structure>")
}

func TestMarkupAction_Summary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionMarkup, Cols: columns.DefaultSet()})
	require.NoError(t, err)

	require.NoError(t, d.Render(sampleItem()))
	require.NoError(t, d.Finale())

	out := buf.String()
	assert.Contains(t, out, "<structure>\n")
	assert.Contains(t, out, "<section>Source</section>")
	assert.Contains(t, out, "<section>10.0.0.1</section>")
	assert.Contains(t, out, "<section>1234 -&gt; 80 Len=4</section>")
}

func TestMarkupAction_EmptyRunStillWellFormed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionMarkup, MarkupDetail: true})
	require.NoError(t, err)

	require.NoError(t, d.Finale())

	out := buf.String()
	assert.Contains(t, out, "<report>\n")
	assert.True(t, strings.HasSuffix(out, "</report>\n"))
}

func TestFieldsAction_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{
		Kind:   ActionFields,
		Fields: []string{"ip.src", "udp.srcport", "tcp.seq"},
		FieldLayout: FieldLayout{
			Separator: ",",
			Quote:     `"`,
			Header:    true,
		},
	})
	require.NoError(t, err)

	require.NoError(t, d.Preamble())
	require.NoError(t, d.Render(sampleItem()))
	require.NoError(t, d.Finale())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ip.src,udp.srcport,tcp.seq", lines[0])
	assert.Equal(t, `"10.0.0.1","1234",""`, lines[1], "absent field renders as empty cell")
}

func TestFieldsAction_DefaultSeparatorIsTab(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionFields, Fields: []string{"ip.src", "ip.dst"}})
	require.NoError(t, err)

	require.NoError(t, d.Render(sampleItem()))
	assert.Equal(t, "10.0.0.1\t10.0.0.2\n", buf.String())
}

type failingWriter struct {
	failAfter int // successful writes allowed before failing
	writes    int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.writes > w.failAfter {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestSinkError_WrapsWriteFailure(t *testing.T) {
	t.Parallel()

	d, err := NewDispatcher(&failingWriter{}, Config{Kind: ActionText, Summary: true})
	require.NoError(t, err)

	err = d.Render(sampleItem())
	require.Error(t, err)

	var sinkErr *SinkError
	assert.True(t, errors.As(err, &sinkErr))
	assert.Contains(t, err.Error(), "disk full")
}

func TestDispatcher_LifecycleOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d, err := NewDispatcher(&buf, Config{Kind: ActionText, Summary: true})
	require.NoError(t, err)

	require.NoError(t, d.Finale())
	assert.Error(t, d.Render(sampleItem()), "render after finale")
	assert.NoError(t, d.Finale(), "finale is idempotent")
}
