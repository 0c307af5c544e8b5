// Package dumplog provides the dumper's leveled logging, wrapping the
// standard library's log.Logger the same way the teacher repository gates
// its own log.Printf calls behind a verbose flag.
package dumplog

import (
	"fmt"
	"log"
	"os"
)

// Logger is a leveled wrapper around *log.Logger. Construct one with New;
// the zero value has no sink. A nil *Logger discards every call.
type Logger struct {
	out     *log.Logger
	verbose bool
}

// New returns a Logger writing to stderr. When verbose is false, Debugf
// calls are silently dropped.
func New(verbose bool) *Logger {
	return &Logger{
		out:     log.New(os.Stderr, "", log.LstdFlags),
		verbose: verbose,
	}
}

// Debugf logs a debug-level message, only when the logger is verbose.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.verbose {
		return
	}
	l.out.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

// Infof logs an info-level message.
func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.out.Output(2, "INFO  "+fmt.Sprintf(format, args...))
}

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.out.Output(2, "WARN  "+fmt.Sprintf(format, args...))
}

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.out.Output(2, "ERROR "+fmt.Sprintf(format, args...))
}
