package logging

import (
	"fmt"
	"os"
)

// Logger defines the logging methods used across the core. Implementations
// should be cheap; the manager and adapters call them on hot paths.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FmtLogger is a minimal logger that prints messages with level prefixes.
// Debug/Info go to stdout; Warn/Error go to stderr.
type FmtLogger struct {
	// Verbose enables Debugf output
	Verbose bool
}

// NewFmtLogger creates a new FmtLogger.
func NewFmtLogger() *FmtLogger { return &FmtLogger{} }

func (l *FmtLogger) Debugf(format string, args ...any) {
	if l.Verbose {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	}
}
func (l *FmtLogger) Infof(format string, args ...any) { fmt.Printf("[INFO]  "+format+"\n", args...) }
func (l *FmtLogger) Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[WARN]  "+format+"\n", args...)
}
func (l *FmtLogger) Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}

// Nop discards everything. Used in tests.
type Nop struct{}

func (Nop) Debugf(format string, args ...any) {}
func (Nop) Infof(format string, args ...any)  {}
func (Nop) Warnf(format string, args ...any)  {}
func (Nop) Errorf(format string, args ...any) {}
