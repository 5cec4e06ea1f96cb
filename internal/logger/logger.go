// Package logger provides leveled structured logging.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// Init initializes the default logger with the specified level and format.
// Unknown levels fall back to info; any format other than "text" writes JSON lines.
func Init(level string, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level string, format string) {
	var l zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
		l = zerolog.InfoLevel
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	default:
		l = zerolog.InfoLevel
	}

	out := w
	if strings.ToLower(format) == "text" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.StampMicro}
	}

	defaultLogger = zerolog.New(out).With().Timestamp().Logger().Level(l)
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug().Msg(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info().Msg(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn().Msg(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error().Msg(fmt.Sprintf(format, args...))
}

// Fatal logs at fatal level and exits the process.
func Fatal(format string, args ...interface{}) {
	defaultLogger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
