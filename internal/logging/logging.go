package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global level and the default logger used by main.
func Setup(level, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", service).Logger()
	return log.Logger
}

// New returns a component logger; the global level set by Setup still applies.
func New(component string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger()
}
