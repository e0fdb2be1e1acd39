// internal/logging/logging.go
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. In development it writes human-readable console
// output; everywhere else it emits JSON lines.
func New(level, appEnv string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if appEnv == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}
