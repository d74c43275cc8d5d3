package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"tickbook/config"
)

type Logger = zerolog.Logger

// New builds the process logger from the log section. Unknown levels fall
// back to info.
func New(cfg config.Config) Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg config.Config, w io.Writer) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Log.Pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", "tickbook").Logger()
}

// Component tags l with a component name.
func Component(l Logger, name string) Logger {
	return l.With().Str("component", name).Logger()
}
