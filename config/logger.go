package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

func parseLevel(level string) (log.Level, error) {
	if level == "" {
		return log.InfoLevel, nil
	}

	parsed, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return 0, errors.Wrapf(err, "log.level %q", level)
	}
	return parsed, nil
}

// NewLogger builds the slog.Logger handed to every constructor, writing through a charmbracelet/log
// handler to w
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          c.Log.Prefix,
		ReportCaller:    c.Log.ReportCaller,
		ReportTimestamp: c.Log.ReportTimestamp,
		TimeFormat:      time.RFC3339,
	})

	return slog.New(handler), nil
}
