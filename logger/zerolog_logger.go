package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

type ZerologLogger struct {
	logger zerolog.Logger
}

type ZerologOptions struct {
	UseColor   bool
	Level      Level
	TimeFormat string
	// OutputFile takes precedence over Output. Both empty means standard error.
	OutputFile string
	Output     io.Writer
}

func NewZerologLogger() Logger {
	log, _ := NewZerologLoggerWithOptions(ZerologOptions{
		UseColor:   true,
		Level:      LevelInfo,
		TimeFormat: "15:04:05",
	})
	return log
}

func NewZerologLoggerWithOptions(opts ZerologOptions) (Logger, error) {
	out := opts.Output
	if opts.OutputFile != "" {
		file, err := os.OpenFile(opts.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = file
	}
	if out == nil {
		out = os.Stderr
	}

	if opts.UseColor && opts.OutputFile == "" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: opts.TimeFormat,
		}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()

	switch opts.Level {
	case LevelDebug:
		logger = logger.Level(zerolog.DebugLevel)
	case LevelWarn:
		logger = logger.Level(zerolog.WarnLevel)
	case LevelError:
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}

	return &ZerologLogger{
		logger: logger,
	}, nil
}

// With returns a child logger carrying key=value on every event.
func (l *ZerologLogger) With(key, value string) Logger {
	return &ZerologLogger{logger: l.logger.With().Str(key, value).Logger()}
}

func (l *ZerologLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Msgf(msg, args...)
}

func (l *ZerologLogger) Info(msg string, args ...any) {
	l.logger.Info().Msgf(msg, args...)
}

func (l *ZerologLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Msgf(msg, args...)
}

func (l *ZerologLogger) Error(msg string, args ...any) {
	l.logger.Error().Msgf(msg, args...)
}
