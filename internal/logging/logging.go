// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30

	timeFormat = "2006-01-02 15:04:05"
)

// Options selects level and outputs.
type Options struct {
	// Verbosity: 0 info, 1 debug, 2+ trace.
	Verbosity int
	// File enables a rotating log file in addition to the console.
	File string
	// JSON writes raw JSON to the console instead of the pretty writer.
	JSON bool
	// Out is the console destination (default os.Stderr).
	Out io.Writer
}

// Setup sets the global level and log.Logger. The returned closer flushes
// the log file and is a no-op without one.
func Setup(opts Options) io.Closer {
	zerolog.SetGlobalLevel(levelFor(opts.Verbosity))

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var console io.Writer = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	if opts.JSON {
		console = out
	}
	log.Logger = zerolog.New(console).With().Timestamp().Logger()

	if opts.File == "" {
		return nopCloser{}
	}
	if err := ensureLogDir(opts.File); err != nil {
		log.Error().Err(err).Str("path", opts.File).Msg("Failed to prepare log directory; logging to console only")
		return nopCloser{}
	}

	fileWriter := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
		Compress:   true,
	}
	multi := zerolog.MultiLevelWriter(console, fileWriter)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	return fileWriter
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ClientLogger adapts a zerolog.Logger to the client package Logger.
type ClientLogger struct {
	Logger zerolog.Logger
}

// Warnf implements client.Logger.
func (l ClientLogger) Warnf(format string, args ...any) {
	l.Logger.Warn().Msgf(format, args...)
}
