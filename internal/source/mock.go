package source

import "io"

// MockSource is an in-memory Source for tests. Records are served in order;
// SizeErr and FailAt allow exercising the pipeline's error taxonomy without
// touching the filesystem.
type MockSource struct {
	Records  []Record
	SizeVal  int64
	SizeErr  error
	FailAt   int   // 1-based record index at which ReadNext fails (0 = never)
	FailWith error // error returned at FailAt

	next   int
	closed bool
}

// Size returns the configured size or error.
func (m *MockSource) Size() (int64, error) {
	if m.SizeErr != nil {
		return 0, m.SizeErr
	}
	return m.SizeVal, nil
}

// ReadNext serves the next configured record, or the configured failure.
func (m *MockSource) ReadNext(rec *Record) (int, error) {
	if m.FailAt > 0 && m.next+1 == m.FailAt {
		m.next++
		if m.FailWith != nil {
			return 0, m.FailWith
		}
		return 0, io.ErrUnexpectedEOF
	}
	if m.next >= len(m.Records) {
		return 0, io.EOF
	}
	src := m.Records[m.next]
	m.next++

	rec.Data = append(rec.Data[:0], src.Data...)
	rec.Time = src.Time
	rec.CapLen = src.CapLen
	if rec.CapLen == 0 {
		rec.CapLen = len(src.Data)
	}
	rec.Len = src.Len
	if rec.Len == 0 {
		rec.Len = len(src.Data)
	}
	rec.Offset = src.Offset
	return len(rec.Data), nil
}

// Close marks the source closed.
func (m *MockSource) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockSource) Closed() bool { return m.closed }
