package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the service logger. Development gets a human-readable console
// writer; everything else logs JSON for ingestion.
func New(environment string) zerolog.Logger {
	if environment == "development" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
