// Package main - debug.go
//
// This file implements the logging used by every component.
//
// Logging System:
//   - Logger interface (Debug/Info/Warn/Error, printf style) injected into
//     each component constructor instead of a package-level global
//   - FileLogger: thread-safe file logging to Debug.log
//   - Four log levels: DEBUG, INFO, WARN, ERROR
//   - Microsecond timestamps for timing analysis
//   - File is truncated (cleared) on each startup
//   - Optional mirror to stderr for headless runs
//
// Logging Practices:
//   - DEBUG: Detailed operation info (pixel samples, step deltas, timing)
//   - INFO: Important events (startup, waypoint reached, kills, jumps)
//   - WARN: Recoverable problems (sensing fallback, waypoint skipped)
//   - ERROR: Serious problems (device failure, handler errors)
//
// Sensing and navigation failures must log the region and the expected vs
// observed value so an operator can recalibrate from Debug.log alone.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is the logging contract every component depends on.
type Logger interface {
	Debug(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// FileLogger provides thread-safe logging functionality to Debug.log file.
//
// File Behavior:
// Debug.log is truncated (O_TRUNC) on each startup to prevent log accumulation.
// This ensures the log file always contains only the current session's messages.
type FileLogger struct {
	file   *os.File
	logger *log.Logger
	debug  bool
	mu     sync.Mutex
}

// NewFileLogger opens path (truncating it) and returns a logger writing to it.
// When mirror is true every line is also written to stderr.
func NewFileLogger(path string, debug, mirror bool) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if mirror {
		out = io.MultiWriter(file, os.Stderr)
	}

	l := &FileLogger{
		file:   file,
		logger: log.New(out, "", log.LstdFlags|log.Lmicroseconds),
		debug:  debug,
	}
	l.Info("Logger initialized (log file cleared)")
	return l, nil
}

// NewWriterLogger logs to an arbitrary writer; used by tests and tools.
func NewWriterLogger(w io.Writer, debug bool) *FileLogger {
	return &FileLogger{
		logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		debug:  debug,
	}
}

// Close closes the log file
func (l *FileLogger) Close() {
	if l.file != nil {
		l.Info("Logger closing")
		l.file.Close()
	}
}

func (l *FileLogger) printf(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("["+level+"] "+format, v...)
}

// Debug logs debug level messages
func (l *FileLogger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.printf("DEBUG", format, v...)
}

// Info logs info level messages
func (l *FileLogger) Info(format string, v ...interface{}) {
	l.printf("INFO", format, v...)
}

// Warn logs warning level messages
func (l *FileLogger) Warn(format string, v ...interface{}) {
	l.printf("WARN", format, v...)
}

// Error logs error level messages
func (l *FileLogger) Error(format string, v ...interface{}) {
	l.printf("ERROR", format, v...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// orNop returns l, or a logger that discards everything when l is nil.
func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
