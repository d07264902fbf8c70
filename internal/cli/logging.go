package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the app logger: console format on the error stream,
// level from config.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "trace":
		lvl = zerolog.TraceLevel
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	case "off":
		lvl = zerolog.Disabled
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "nbkernel").Logger()
}
