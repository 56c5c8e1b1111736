package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Unknown or empty levels fall back to info.
func New(level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(output).With().
		Timestamp().
		Logger().
		Level(lvl)
}
