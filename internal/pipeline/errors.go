package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/dissect.report/internal/output"
)

// FailureClass buckets run failures by remedy and exit signal.
type FailureClass int

const (
	// FailureNone is a successful run.
	FailureNone FailureClass = iota
	// FailureConfig is an invalid configuration: bad filter expression,
	// incompatible output flags, unreadable source size. Detected before
	// any frame is processed; nothing partial is emitted.
	FailureConfig
	// FailureSource is a record-source failure mid-run. Output already
	// produced is preserved; the finale is skipped.
	FailureSource
	// FailureSink is an output-destination write failure. The remainder of
	// the run is aborted; previously rendered frames remain valid output.
	FailureSink
	// FailureResource is allocation exhaustion, terminated with a
	// dedicated exit signal after flushing what was already produced.
	FailureResource
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureConfig:
		return "config"
	case FailureSource:
		return "source"
	case FailureSink:
		return "sink"
	case FailureResource:
		return "resource"
	default:
		return fmt.Sprintf("failure(%d)", int(c))
	}
}

// ExitCode maps a failure class to the process exit signal: 0 success,
// 1 configuration, 2 source or sink failure mid-run, 3 resource exhaustion.
func (c FailureClass) ExitCode() int {
	switch c {
	case FailureNone:
		return 0
	case FailureConfig:
		return 1
	case FailureResource:
		return 3
	default:
		return 2
	}
}

// RunError is a classified pipeline failure naming the failing operation.
// Errors are never retried; there is no resume-from-offset capability.
type RunError struct {
	Class FailureClass
	Op    string
	Err   error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func failf(class FailureClass, err error, format string, args ...any) *RunError {
	return &RunError{Class: class, Op: fmt.Sprintf(format, args...), Err: err}
}

// Classify reports the failure class of an error returned by Run.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	var re *RunError
	if errors.As(err, &re) {
		return re.Class
	}
	var se *output.SinkError
	if errors.As(err, &se) {
		return FailureSink
	}
	return FailureSource
}
