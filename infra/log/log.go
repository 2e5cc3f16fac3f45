package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"lob/infra/config"
)

type Logger = zerolog.Logger

// New builds the process logger from config. Unknown levels fall back to
// info.
func New(cfg config.Config) Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Config, out io.Writer) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("instrument", cfg.Instrument).
		Logger()
}
