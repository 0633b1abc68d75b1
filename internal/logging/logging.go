// Package logging builds the charmbracelet logger shared by tq commands and
// adapts it to the interfaces of third-party schedulers.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatLogfmt = "logfmt"
)

// Config holds logging configuration
type Config struct {
	Level      string
	Format     string
	TimeFormat string
	ShowCaller bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatText,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

// New returns a logger writing to w.
func New(w io.Writer, cfg Config) (*log.Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
		if err != nil {
			return nil, fmt.Errorf("parse logging.level: %w", err)
		}
		level = parsed
	}

	var formatter log.Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatText:
		formatter = log.TextFormatter
	case FormatJSON:
		formatter = log.JSONFormatter
	case FormatLogfmt:
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = DefaultConfig().TimeFormat
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		ReportCaller:    cfg.ShowCaller,
	}), nil
}

// Discard is a logger that drops everything. Used as default by services.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// CronLogger adapts l to the robfig/cron Logger interface.
type CronLogger struct {
	Logger *log.Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.Logger.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.Logger.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
