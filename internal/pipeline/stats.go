package pipeline

import (
	"fmt"
	"io"
	"sort"

	"github.com/banshee-data/dissect.report/internal/dissect"
	"github.com/banshee-data/dissect.report/internal/frames"
)

// ProtoStats is a tap counting rendered frames and bytes per protocol. It
// reads only the protocol list, so it never forces tree dissection.
type ProtoStats struct {
	counts map[string]uint64
	bytes  map[string]uint64
	total  uint64
}

// NewProtoStats returns an empty protocol-statistics tap.
func NewProtoStats() *ProtoStats {
	return &ProtoStats{
		counts: make(map[string]uint64),
		bytes:  make(map[string]uint64),
	}
}

// NeedsTree reports false; protocol names come from the flat result.
func (s *ProtoStats) NeedsTree() bool { return false }

// Record counts one passing frame under each protocol it carries.
func (s *ProtoStats) Record(f *frames.Frame, res *dissect.Result) {
	s.total++
	if res == nil {
		return
	}
	seen := make(map[string]bool, len(res.Protocols))
	for _, p := range res.Protocols {
		if seen[p] {
			continue
		}
		seen[p] = true
		s.counts[p]++
		s.bytes[p] += uint64(f.Len)
	}
}

// Total returns the number of frames recorded.
func (s *ProtoStats) Total() uint64 { return s.total }

// Count returns the number of frames carrying a protocol.
func (s *ProtoStats) Count(proto string) uint64 { return s.counts[proto] }

// Bytes returns the byte total of frames carrying a protocol.
func (s *ProtoStats) Bytes(proto string) uint64 { return s.bytes[proto] }

// Counts returns a copy of the per-protocol frame counts.
func (s *ProtoStats) Counts() map[string]uint64 {
	out := make(map[string]uint64, len(s.counts))
	for name, n := range s.counts {
		out[name] = n
	}
	return out
}

// Report writes per-protocol frame and byte counts, sorted by name.
func (s *ProtoStats) Report(w io.Writer) error {
	names := make([]string, 0, len(s.counts))
	for name := range s.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintf(w, "Protocol statistics (%d frames)\n", s.total); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "  %-12s frames=%d bytes=%d\n", name, s.counts[name], s.bytes[name]); err != nil {
			return err
		}
	}
	return nil
}
