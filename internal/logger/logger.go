package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	// Set log level from environment or default to Info
	Logger.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))

	UseJSON(os.Stdout)
}

// UseJSON switches to structured JSON output on w
func UseJSON(w io.Writer) {
	Logger.SetOutput(w)
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
}

// ParseLevel maps LOG_LEVEL values to logrus levels, defaulting to Info
func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// UseConsole switches to human-readable output on w, used by the CLI so
// logs do not interleave with reports on stdout
func UseConsole(w io.Writer) {
	Logger.SetOutput(w)
	Logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
}

// SetLevel overrides the level chosen from the environment
func SetLevel(level logrus.Level) {
	Logger.SetLevel(level)
}

// WithFields creates a new entry with the given fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithField creates a new entry with a single field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithError creates a new entry with an error field
func WithError(err error) *logrus.Entry {
	return Logger.WithError(err)
}

// Info logs an info message
func Info(msg string) {
	Logger.Info(msg)
}

// Error logs an error message
func Error(msg string) {
	Logger.Error(msg)
}

// Debug logs a debug message
func Debug(msg string) {
	Logger.Debug(msg)
}

// Warn logs a warning message
func Warn(msg string) {
	Logger.Warn(msg)
}
