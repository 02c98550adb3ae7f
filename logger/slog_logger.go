package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

type SlogLogger struct {
	logger *slog.Logger
}

type SlogOptions struct {
	Level  Level
	Output io.Writer
}

func NewSlogLogger() Logger {
	return NewSlogLoggerWithOptions(SlogOptions{Level: LevelInfo})
}

func NewSlogLoggerWithOptions(opts SlogOptions) Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &SlogLogger{
		logger: slog.New(slog.NewTextHandler(opts.Output, &slog.HandlerOptions{Level: slogLevel(opts.Level)})),
	}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(fmt.Sprintf(msg, args...))
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(fmt.Sprintf(msg, args...))
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(fmt.Sprintf(msg, args...))
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(fmt.Sprintf(msg, args...))
}
