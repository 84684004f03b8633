// Package logging provides the leveled logging abstraction consumed by
// the store, the healing coordinator and the CLI commands. The file
// logger appends timestamped lines so failures can be inspected after
// the workflow session ends.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger is the minimal leveled interface the engine components log to.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// FileLogger appends timestamped lines to the project log file. With
// verbose enabled, warn and error lines are echoed to stderr.
type FileLogger struct {
	file    *os.File
	verbose bool
	now     func() time.Time
}

// New creates (or reuses) the log file at path.
func New(path string, verbose bool) (*FileLogger, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &FileLogger{file: f, verbose: verbose, now: time.Now}, nil
}

// Close releases the file handle.
func (l *FileLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *FileLogger) write(level, format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	stamp := l.now().Format(time.RFC3339)
	fmt.Fprintf(l.file, "[%s] %-5s %s\n", stamp, level, line)
	if l.verbose && (level == "WARN" || level == "ERROR") {
		fmt.Fprintf(os.Stderr, "%s: %s\n", level, line)
	}
}

func (l *FileLogger) Debug(format string, args ...any) { l.write("DEBUG", format, args...) }
func (l *FileLogger) Info(format string, args ...any)  { l.write("INFO", format, args...) }
func (l *FileLogger) Warn(format string, args ...any)  { l.write("WARN", format, args...) }
func (l *FileLogger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger { return nopLogger{} }
