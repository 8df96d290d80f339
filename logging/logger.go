package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
)

// Logger is a type alias for zerolog.Logger.
// We use zerolog directly instead of wrapping it with abstractions.
type Logger = zerolog.Logger

// Config contains logging configuration options.
type Config struct {
	// Level is the log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log format: "json" or "text"
	// Default: "json"
	Format string `yaml:"format"`

	// Async enables asynchronous/non-blocking logging using a ring buffer.
	// Default: true
	Async bool `yaml:"async"`

	// AsyncBufferSize is the size of the async ring buffer (in bytes).
	// Default: 100000 (100KB)
	AsyncBufferSize int `yaml:"async_buffer_size"`

	// AsyncPollInterval is how often the async writer polls for messages (in milliseconds).
	// Default: 100
	AsyncPollInterval int `yaml:"async_poll_interval"`

	// EnableCaller adds caller information (file:line) to logs.
	// Default: false
	EnableCaller bool `yaml:"enable_caller"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:             "info",
		Format:            "json",
		Async:             true,
		AsyncBufferSize:   100000,
		AsyncPollInterval: 100,
		EnableCaller:      false,
	}
}

// NewLoggerFromConfig creates a logger from configuration.
// Async writing goes through a diode (non-blocking ring buffer) so the
// mining loops never block on log I/O.
func NewLoggerFromConfig(config Config) Logger {
	level := parseLevel(config.Level)

	var output io.Writer = os.Stderr

	if strings.ToLower(config.Format) == "text" {
		// ConsoleWriter for human-readable output (dev/debugging)
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	if config.Async {
		bufferSize := config.AsyncBufferSize
		if bufferSize <= 0 {
			bufferSize = 100000
		}

		pollInterval := config.AsyncPollInterval
		if pollInterval <= 0 {
			pollInterval = 100
		}

		// Diode writer: drops old messages when buffer full.
		// We can't use the logger in the overflow callback (recursion),
		// so write directly to stderr.
		output = diode.NewWriter(output, bufferSize, time.Duration(pollInterval)*time.Millisecond, func(missed int) {
			if missed > 0 {
				_, _ = os.Stderr.WriteString("WARN: dropped log messages due to full buffer\n")
			}
		})
	}

	ctx := zerolog.New(output).Level(level).With().Timestamp()
	if config.EnableCaller {
		ctx = ctx.Caller()
	}

	return ctx.Logger()
}

// parseLevel returns the zerolog.Level for the given string. It returns
// InfoLevel if the string is not recognized.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ForComponent returns a child logger with the component field set.
// This is the preferred way to create component loggers.
func ForComponent(logger Logger, component string) Logger {
	return logger.With().Str(FieldComponent, component).Logger()
}

// ForCampaign returns a child logger with campaign identification fields set.
func ForCampaign(logger Logger, campaignID, game string) Logger {
	return logger.With().
		Str(FieldCampaignID, campaignID).
		Str(FieldGame, game).
		Logger()
}

// ForChannel returns a child logger with the channel login field set.
func ForChannel(logger Logger, channelLogin string) Logger {
	return logger.With().Str(FieldChannel, channelLogin).Logger()
}

// ForSession returns a child logger with the mining session sequence set.
// Every loop spawned by the session controller should log through one of
// these so stale-session log lines remain attributable.
func ForSession(logger Logger, sessionSeq uint64) Logger {
	return logger.With().Uint64(FieldSessionSeq, sessionSeq).Logger()
}

// ForSessionComponent returns a logger configured for a session-scoped component.
func ForSessionComponent(logger Logger, component string, sessionSeq uint64) Logger {
	return logger.With().
		Str(FieldComponent, component).
		Uint64(FieldSessionSeq, sessionSeq).
		Logger()
}
