package client

// Logger is an optional package logger used for non-fatal warnings.
type Logger interface {
	// Warnf logs a formatted warning message.
	Warnf(format string, args ...any)
}

// LoggerFunc adapts a printf-style function to Logger.
type LoggerFunc func(format string, args ...any)

// Warnf calls f.
func (f LoggerFunc) Warnf(format string, args ...any) { f(format, args...) }

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}
