// Package logging provides leveled logging utilities for the vision3
// telnet engine and its consumers.
package logging

import "log"

// DebugEnabled controls whether Debug() produces output.
// cmd/telnetd sets it from its -debug flag.
var DebugEnabled bool

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Info logs an informational message unconditionally.
func Info(format string, args ...any) {
	log.Printf("INFO: "+format, args...)
}

// Warn logs a warning, such as an unhandled negotiation or an unsolicited
// reply from a peer.
func Warn(format string, args ...any) {
	log.Printf("WARN: "+format, args...)
}

// Error logs a structural failure, such as a buffer overflow.
func Error(format string, args ...any) {
	log.Printf("ERROR: "+format, args...)
}

// Adapter satisfies interfaces requiring Debugf/Infof/Warnf/Errorf,
// such as telnet.Logger, by delegating to the package-level functions.
type Adapter struct{}

// Default returns the package-level logger as a telnet.Logger-compatible
// adapter.
func Default() Adapter { return Adapter{} }

func (Adapter) Debugf(format string, args ...any) { Debug(format, args...) }
func (Adapter) Infof(format string, args ...any)  { Info(format, args...) }
func (Adapter) Warnf(format string, args ...any)  { Warn(format, args...) }
func (Adapter) Errorf(format string, args ...any) { Error(format, args...) }
