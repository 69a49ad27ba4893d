package dissect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/source"
	"github.com/banshee-data/dissect.report/internal/testutil"
)

func dissectOne(t *testing.T, e *GoPacketEngine, num uint32, data []byte, row *columns.Row) *Result {
	t.Helper()
	rec := &source.Record{Data: data, CapLen: len(data), Len: len(data)}
	f := frames.NewFrame(num, 0, len(data), len(data), testutil.BaseTime)
	res, err := e.Dissect(rec, f, row)
	require.NoError(t, err)
	e.Reset()
	return res
}

func TestGoPacketEngine_UDPFieldsAndProtocols(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	pkt := testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("payload"))

	res := dissectOne(t, e, 1, pkt, nil)

	assert.True(t, res.HasProtocol("udp"))
	assert.True(t, res.HasProtocol("ip"))
	assert.True(t, res.HasProtocol("eth"))
	assert.Equal(t, "10.0.0.1", res.FirstField("ip.src"))
	assert.Equal(t, "10.0.0.2", res.FirstField("ip.dst"))
	assert.Equal(t, "1234", res.FirstField("udp.srcport"))
	assert.Equal(t, "80", res.FirstField("udp.dstport"))
	assert.Equal(t, "1", res.FirstField("frame.number"))
	assert.False(t, res.Dependent)
	assert.Nil(t, res.Tree, "tree must not be built unless primed")
}

func TestGoPacketEngine_ColumnsFilled(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	pkt := testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("x"))
	row := columns.NewRow(columns.DefaultSet())

	dissectOne(t, e, 7, pkt, row)

	assert.Equal(t, "7", row.Text[0])
	assert.Equal(t, "0.000000", row.Text[1])
	assert.Equal(t, "10.0.0.1", row.Text[2])
	assert.Equal(t, "10.0.0.2", row.Text[3])
	assert.Equal(t, "UDP", row.Text[4])
	assert.NotEmpty(t, row.Text[5])
	assert.Contains(t, row.Text[6], "1234 -> 80")
}

func TestGoPacketEngine_TreeWhenPrimed(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	e.Prime(Request{NeedTree: true})
	pkt := testutil.TCPPacket(t, "192.168.1.1", "192.168.1.2", 4000, 443)

	res := dissectOne(t, e, 1, pkt, nil)

	require.NotNil(t, res.Tree)
	names := make([]string, 0, len(res.Tree.Children))
	for _, n := range res.Tree.Children {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, "frame")
	assert.Contains(t, names, "eth")
	assert.Contains(t, names, "ip")
	assert.Contains(t, names, "tcp")
}

func TestGoPacketEngine_FragmentDependencies(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	payload := make([]byte, 64)

	first := testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 0xbeef, 0, true, payload)
	middle := testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 0xbeef, 8, true, payload)
	last := testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 0xbeef, 16, false, payload)

	r1 := dissectOne(t, e, 1, first, nil)
	assert.False(t, r1.Dependent)
	assert.Empty(t, r1.DependsOn)

	r2 := dissectOne(t, e, 2, middle, nil)
	assert.True(t, r2.Dependent)
	assert.Equal(t, []uint32{1}, r2.DependsOn)

	r3 := dissectOne(t, e, 3, last, nil)
	assert.True(t, r3.Dependent)
	assert.Equal(t, []uint32{1, 2}, r3.DependsOn)

	// The final fragment releases the datagram's key: a fresh fragment
	// sequence with the same tuple starts clean.
	again := testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 0xbeef, 8, true, payload)
	r4 := dissectOne(t, e, 4, again, nil)
	assert.False(t, r4.Dependent)
}

func TestGoPacketEngine_RetractFrame(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	payload := make([]byte, 64)

	dissectOne(t, e, 1, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 5, 0, true, payload), nil)
	dissectOne(t, e, 2, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 5, 8, true, payload), nil)
	e.RetractFrame(1)

	res := dissectOne(t, e, 3, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 5, 16, false, payload), nil)
	if diff := cmp.Diff([]uint32{2}, res.DependsOn); diff != "" {
		t.Errorf("DependsOn after retraction mismatch (-want +got):\n%s", diff)
	}

	// Retracting the last remaining fragment releases the key entirely.
	e2 := NewGoPacketEngine(layers.LinkTypeEthernet)
	dissectOne(t, e2, 1, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 6, 0, true, payload), nil)
	e2.RetractFrame(1)
	res = dissectOne(t, e2, 1, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 6, 8, true, payload), nil)
	assert.False(t, res.Dependent, "retracted frame must leave no dependency behind")
}

func TestGoPacketEngine_FlushSequentialCaches(t *testing.T) {
	t.Parallel()

	e := NewGoPacketEngine(layers.LinkTypeEthernet)
	payload := make([]byte, 64)

	dissectOne(t, e, 1, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 1, 0, true, payload), nil)
	e.FlushSequentialCaches()

	res := dissectOne(t, e, 2, testutil.FragmentPacket(t, "10.0.0.1", "10.0.0.2", 1, 8, true, payload), nil)
	assert.False(t, res.Dependent, "fragment table must be empty after flush")
}
