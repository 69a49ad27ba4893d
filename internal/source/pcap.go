package source

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// PcapFile reads records from a pcap capture file using the pure-Go
// pcapgo reader. Gzip-compressed captures (.gz) are decompressed on the
// fly, matching what capture tools conventionally accept.
type PcapFile struct {
	path     string
	file     *os.File
	count    *countingReader
	reader   *pcapgo.Reader
	compress bool
}

// OpenPcap opens a pcap file (optionally gzip-compressed) for sequential
// record reads.
func OpenPcap(path string) (*PcapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}

	p := &PcapFile{path: path, file: f, compress: strings.HasSuffix(path, ".gz")}

	var rd io.Reader = f
	if p.compress {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip capture %s: %w", path, err)
		}
		rd = gz
	}
	p.count = &countingReader{r: rd}

	p.reader, err = pcapgo.NewReader(p.count)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read pcap header %s: %w", path, err)
	}
	return p, nil
}

// LinkType reports the capture's data-link type.
func (p *PcapFile) LinkType() layers.LinkType {
	return p.reader.LinkType()
}

// Size returns the uncompressed source size. For gzip captures the size is
// taken from the trailer's ISIZE field (exact for single-member archives
// under 4 GiB).
func (p *PcapFile) Size() (int64, error) {
	st, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat capture %s: %w", p.path, err)
	}
	size := st.Size()
	if p.compress {
		size, err = gzipUncompressedSize(p.path, st.Size())
		if err != nil {
			return 0, err
		}
	}
	if size > MaxSourceBytes {
		return 0, fmt.Errorf("capture %s: %w", p.path, ErrSizeOverflow)
	}
	return size, nil
}

// ReadNext reads the next record into rec, reusing rec.Data.
func (p *PcapFile) ReadNext(rec *Record) (int, error) {
	offset := p.count.n
	data, ci, err := p.reader.ZeroCopyReadPacketData()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("read record at offset %d: %w", offset, err)
	}
	if ci.CaptureLength > MaxRecordBytes {
		return 0, fmt.Errorf("record at offset %d claims %d bytes: %w",
			offset, ci.CaptureLength, ErrSizeOverflow)
	}

	rec.Data = append(rec.Data[:0], data...)
	rec.Time = ci.Timestamp
	rec.CapLen = ci.CaptureLength
	rec.Len = ci.Length
	rec.Offset = offset
	return len(rec.Data), nil
}

// Close closes the underlying file.
func (p *PcapFile) Close() error {
	return p.file.Close()
}

// gzipUncompressedSize reads the ISIZE trailer of a gzip file. ISIZE stores
// the uncompressed size modulo 2^32, which is sufficient for the capture
// sizes this tool handles.
func gzipUncompressedSize(path string, compressedSize int64) (int64, error) {
	if compressedSize < 4 {
		return 0, fmt.Errorf("gzip capture %s: truncated trailer", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open gzip trailer %s: %w", path, err)
	}
	defer f.Close()

	var trailer [4]byte
	if _, err := f.ReadAt(trailer[:], compressedSize-4); err != nil {
		return 0, fmt.Errorf("read gzip trailer %s: %w", path, err)
	}
	return int64(binary.LittleEndian.Uint32(trailer[:])), nil
}

// countingReader tracks how many bytes have been consumed so records can be
// tagged with their source offset.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
