package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnvVar names the environment variable consulted when no explicit level is given.
const LevelEnvVar = "CAMERA_LOG_LEVEL"

// Init initializes the global logger. level is one of debug, info, warn, error;
// an empty level falls back to CAMERA_LOG_LEVEL and then to info.
func Init(level string) {
	if level == "" {
		level = os.Getenv(LevelEnvVar)
	}
	zerolog.SetGlobalLevel(ParseLevel(level))

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
