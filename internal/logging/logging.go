// Package logging builds the process logger from config.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"carescope/backend/internal/config"
)

// New returns a logger writing to stderr with the level and format from cfg.
func New(cfg *config.Config) *log.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	if cfg == nil {
		return logger
	}

	if lvl, err := log.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		logger.SetLevel(lvl)
	}
	if lvl := logger.GetLevel(); lvl == log.DebugLevel && !cfg.IsProduction() {
		logger.SetReportCaller(true)
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}
	return logger
}
