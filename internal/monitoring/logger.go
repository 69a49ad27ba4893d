// Package monitoring holds the process-wide diagnostic logger indirection.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var debug bool

// SetDebug toggles debug diagnostics process-wide.
func SetDebug(on bool) {
	debug = on
}

// Debugf logs through Logf only when debug diagnostics are enabled.
func Debugf(format string, v ...interface{}) {
	if debug {
		Logf("debug: "+format, v...)
	}
}
