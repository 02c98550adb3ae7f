// Package logger provides the printf-style logging used across the crawler, with
// zerolog, log/slog and standard library backends.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New builds a logger by backend name: "console" and "json" use zerolog, "slog" and "std"
// the standard library. A nil w means standard error.
func New(format, level string, w io.Writer) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	switch strings.ToLower(format) {
	case "", "console":
		return NewZerologLoggerWithOptions(ZerologOptions{UseColor: true, Level: lvl, TimeFormat: "15:04:05", Output: w})
	case "json":
		return NewZerologLoggerWithOptions(ZerologOptions{Level: lvl, Output: w})
	case "slog":
		return NewSlogLoggerWithOptions(SlogOptions{Level: lvl, Output: w}), nil
	case "std":
		return NewStdLoggerWithOptions(StdOptions{Level: lvl, Output: w}), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// NewFile is New writing to the file at path, which is created or appended to.
func NewFile(format, level, path string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", "console", "json":
		return NewZerologLoggerWithOptions(ZerologOptions{Level: lvl, OutputFile: path})
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(format, level, file)
}

type nopLogger struct{}

// NewNopLogger discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
