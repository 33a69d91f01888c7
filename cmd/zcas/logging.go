package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"zcas/internal/config"
)

const (
	logLevelEnvKey  = "ZCAS_LOG_LEVEL"
	logFormatEnvKey = "ZCAS_LOG_FORMAT"
)

var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// levelSetting is one candidate log level and where it came from.
type levelSetting struct {
	value  string
	origin string
}

// configureLoggerForCLI installs the process logger. The --log-level flag
// wins over ZCAS_LOG_LEVEL, which wins over log_level in the config file.
// A bad flag is an error; a bad env or config value falls back to the
// default level with a warning.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	settings := []levelSetting{
		{value: flagLevel, origin: "--log-level"},
		{value: os.Getenv(logLevelEnvKey), origin: logLevelEnvKey},
		{value: configLevel, origin: "log_level"},
	}

	level, warning, err := resolveLogLevel(settings)
	if err != nil {
		return "", err
	}
	handler, err := newLogHandler(os.Stderr, os.Getenv(logFormatEnvKey), level)
	if err != nil {
		return "", err
	}
	slog.SetDefault(slog.New(handler))
	return warning, nil
}

// resolveLogLevel picks the first non-empty setting.
func resolveLogLevel(settings []levelSetting) (slog.Level, string, error) {
	fallback := logLevels[config.DefaultLogLevel]
	for _, s := range settings {
		raw := strings.TrimSpace(s.value)
		if raw == "" {
			continue
		}
		if level, ok := logLevels[strings.ToLower(raw)]; ok {
			return level, "", nil
		}
		if strings.HasPrefix(s.origin, "--") {
			return fallback, "", fmt.Errorf("invalid %s %q (use debug, info, warn or error)", s.origin, raw)
		}
		return fallback, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", s.origin, raw, config.DefaultLogLevel), nil
	}
	return fallback, "", nil
}

// newLogHandler returns a text handler unless format is json.
func newLogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid %s=%q (use text or json)", logFormatEnvKey, format)
	}
}
