package observability

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/config"
)

// SetupLogging configures the global logger for one command run and returns
// the run ID attached to every line. Logs go to stderr; stdout carries reports.
func SetupLogging(service string, general config.GeneralConfig) string {
	return setupLogging(os.Stderr, service, general)
}

func setupLogging(out io.Writer, service string, general config.GeneralConfig) string {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	runID := uuid.NewString()

	if general.LogFormat == "text" {
		out = zerolog.ConsoleWriter{Out: out}
	}
	log.Logger = zerolog.New(out).
		With().Timestamp().Str("service", service).
		Str("instance", general.InstanceID).
		Str("run_id", runID).Logger()

	return runID
}
