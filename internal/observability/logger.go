package observability

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "OLEDVIEW_LOG_LEVEL"
	EnvLogTimestamp = "OLEDVIEW_LOG_TIMESTAMP"
	EnvLogNoColor   = "OLEDVIEW_LOG_NOCOLOR"
)

var configureOnce sync.Once

// InitLogger configures the global zerolog logger for runtime use, honoring
// the OLEDVIEW_LOG_* environment overrides, and returns it.
func InitLogger(app string) zerolog.Logger {
	configureOnce.Do(func() {
		configure(app, zerolog.InfoLevel, true)
	})
	return log.Logger
}

// ConfigureTests sets up verbose, timestamp-free logging for test runs.
func ConfigureTests() {
	configureOnce.Do(func() {
		configure("test", zerolog.DebugLevel, false)
	})
}

func configure(app string, level zerolog.Level, timestamp bool) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		timestamp = v
	}
	noColor := false
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		noColor = v
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	ctx := zerolog.New(output).Level(level).With().Str("app", app)
	if timestamp {
		ctx = ctx.Timestamp()
	}
	log.Logger = ctx.Logger()
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
