// Package logger provides a global logger for the application
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Options selects the log level. An explicit Level wins over Environment.
type Options struct {
	Environment string
	Level       string
	Out         io.Writer
}

// LoadDotenv loads a .env file from the working directory if one exists.
func LoadDotenv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}
}

// ResolveLevel maps an environment name and optional level override to a zerolog level.
func ResolveLevel(environment, level string) zerolog.Level {
	if level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && lvl != zerolog.NoLevel {
			return lvl
		}
	}

	switch strings.ToLower(environment) {
	case "dev", "test":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the global zerolog logger with console output.
// Example usage:
//
//	logger.Init(logger.Options{Environment: cfg.Environment}) <- inside main()
//
// Then, `go run ./cmd/datagen -debug strategies`
func Init(opts Options) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()

	environment := strings.ToLower(opts.Environment)
	if environment == "" {
		environment = "prod"
	}

	logLevel := ResolveLevel(environment, opts.Level)
	zerolog.SetGlobalLevel(logLevel)

	log.Debug().Str("environment", environment).Str("level", logLevel.String()).Msg("logger initialized")
}
