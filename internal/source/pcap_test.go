package source_test

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dissect.report/internal/source"
	"github.com/banshee-data/dissect.report/internal/testutil"
)

func writePcap(t *testing.T, path string, packets ...[]byte) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     testutil.BaseTime.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(p),
			Length:        len(p),
		}
		require.NoError(t, w.WritePacket(ci, p))
	}
}

func gzipFile(t *testing.T, src, dst string) {
	t.Helper()

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	out, err := os.Create(dst)
	require.NoError(t, err)
	defer out.Close()

	gz := gzip.NewWriter(out)
	_, err = gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
}

func TestOpenPcap_ReadsRecordsInOrder(t *testing.T) {
	t.Parallel()

	packets := [][]byte{
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("first")),
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1234, 80, []byte("second record")),
	}
	path := filepath.Join(t.TempDir(), "capture.pcap")
	writePcap(t, path, packets...)

	p, err := source.OpenPcap(path)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, layers.LinkTypeEthernet, p.LinkType())

	size, err := p.Size()
	require.NoError(t, err)
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), size)

	var rec source.Record
	var lastOffset int64 = -1
	for i, want := range packets {
		n, err := p.ReadNext(&rec)
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, len(want), n)
		assert.Equal(t, want, rec.Data)
		assert.Equal(t, len(want), rec.CapLen)
		assert.Equal(t, len(want), rec.Len)
		assert.Greater(t, rec.Offset, lastOffset, "offsets strictly increase")
		lastOffset = rec.Offset
		assert.Equal(t, testutil.BaseTime.Add(time.Duration(i)*time.Millisecond).Unix(), rec.Time.Unix())
	}

	_, err = p.ReadNext(&rec)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenPcap_Gzip(t *testing.T) {
	t.Parallel()

	packet := testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 53, 53, []byte("dns"))
	dir := t.TempDir()
	plain := filepath.Join(dir, "capture.pcap")
	writePcap(t, plain, packet)
	gzPath := filepath.Join(dir, "capture.pcap.gz")
	gzipFile(t, plain, gzPath)

	p, err := source.OpenPcap(gzPath)
	require.NoError(t, err)
	defer p.Close()

	// The gzip trailer reports the uncompressed size.
	size, err := p.Size()
	require.NoError(t, err)
	st, err := os.Stat(plain)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), size)

	var rec source.Record
	_, err = p.ReadNext(&rec)
	require.NoError(t, err)
	assert.Equal(t, packet, rec.Data)

	_, err = p.ReadNext(&rec)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenPcap_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := source.OpenPcap(filepath.Join(t.TempDir(), "absent.pcap"))
	assert.Error(t, err)
}

func TestMockSource(t *testing.T) {
	t.Parallel()

	recs := testutil.Records(
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, []byte("a")),
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 3, 4, []byte("b")),
	)
	m := &source.MockSource{Records: recs, SizeVal: 1024}

	size, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(1024), size)

	var rec source.Record
	for i := range recs {
		_, err := m.ReadNext(&rec)
		require.NoError(t, err, "record %d", i)
		assert.Equal(t, recs[i].Data, rec.Data)
		assert.Equal(t, recs[i].Offset, rec.Offset)
	}
	_, err = m.ReadNext(&rec)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestMockSource_FailAt(t *testing.T) {
	t.Parallel()

	recs := testutil.Records(
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, []byte("a")),
		testutil.UDPPacket(t, "10.0.0.1", "10.0.0.2", 3, 4, []byte("b")),
	)
	m := &source.MockSource{Records: recs, FailAt: 2}

	var rec source.Record
	_, err := m.ReadNext(&rec)
	require.NoError(t, err)

	_, err = m.ReadNext(&rec)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
