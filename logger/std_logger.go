package logger

import (
	"io"
	"log"
	"os"
)

type StdLogger struct {
	logger *log.Logger
	level  Level
}

type StdOptions struct {
	Level  Level
	Output io.Writer
}

func NewStdLogger() Logger {
	return NewStdLoggerWithOptions(StdOptions{Level: LevelInfo})
}

func NewStdLoggerWithOptions(opts StdOptions) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &StdLogger{
		logger: log.New(opts.Output, "", log.LstdFlags),
		level:  opts.Level,
	}
}

func (l *StdLogger) printf(lvl Level, prefix, msg string, args ...any) {
	if lvl < l.level {
		return
	}
	l.logger.Printf(prefix+msg, args...)
}

func (l *StdLogger) Debug(msg string, args ...any) {
	l.printf(LevelDebug, "[DEBUG] ", msg, args...)
}

func (l *StdLogger) Info(msg string, args ...any) {
	l.printf(LevelInfo, "[INFO] ", msg, args...)
}

func (l *StdLogger) Warn(msg string, args ...any) {
	l.printf(LevelWarn, "[WARN] ", msg, args...)
}

func (l *StdLogger) Error(msg string, args ...any) {
	l.printf(LevelError, "[ERROR] ", msg, args...)
}
