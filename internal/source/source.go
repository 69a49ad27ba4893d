// Package source supplies raw records to the processing pipeline.
//
// A Source hands out opaque byte records in file order together with their
// offset and capture metadata. File-format decoding beyond the pcap
// container lives here; interpreting record contents is the dissection
// engine's job.
package source

import (
	"errors"
	"time"
)

// MaxSourceBytes is the largest record-source size the pipeline will accept.
// A source reporting more than this fails the run before any record is
// processed.
const MaxSourceBytes = int64(1) << 56

// MaxRecordBytes bounds a single record. A record claiming a larger capture
// length is treated as a malformed source.
const MaxRecordBytes = 256 << 20

var (
	// ErrSizeOverflow reports a source whose (uncompressed) size exceeds
	// the addressable maximum.
	ErrSizeOverflow = errors.New("record source size exceeds addressable maximum")
)

// Record is one unit of input. Data aliases a caller-owned buffer that
// ReadNext refills, so a Record is only valid until the next ReadNext call.
type Record struct {
	Data   []byte
	Time   time.Time
	CapLen int   // bytes present in Data
	Len    int   // original length on the wire
	Offset int64 // byte offset of the record in the source
}

// Source is the record source contract consumed by the pipeline.
type Source interface {
	// Size returns the total source size in bytes. ErrSizeOverflow is
	// returned when the uncompressed size exceeds MaxSourceBytes.
	Size() (int64, error)

	// ReadNext fills rec with the next record, reusing rec.Data where
	// possible, and returns the number of bytes read. io.EOF signals
	// end of input.
	ReadNext(rec *Record) (int, error)

	// Close releases the underlying file or stream.
	Close() error
}
