// Package logger provides the leveled logging used by the mgindb binaries
// and the test server. The client library itself never logs.
package logger

import (
	"io"
	"log"
	"os"
)

var (
	InfoLog  = log.New(os.Stdout, "[INFO] ", log.LstdFlags)
	ErrLog   = log.New(os.Stderr, "[ERROR] ", log.LstdFlags)
	TraceLog *log.Logger
)

func Info(format string, args ...any) {
	InfoLog.Printf(format, args...)
}

func Err(format string, args ...any) {
	ErrLog.Printf(format, args...)
}

// Trace logs only after EnableTrace.
func Trace(format string, args ...any) {
	if TraceLog != nil {
		TraceLog.Printf(format, args...)
	}
}

func EnableTrace() {
	TraceLog = log.New(os.Stdout, "[TRACE] ", log.LstdFlags|log.Lshortfile)
}

// Fatal logs at error level and exits.
func Fatal(format string, args ...any) {
	ErrLog.Fatalf(format, args...)
}

// SetOutput redirects every level to w.
func SetOutput(w io.Writer) {
	InfoLog.SetOutput(w)
	ErrLog.SetOutput(w)
	if TraceLog != nil {
		TraceLog.SetOutput(w)
	}
}
