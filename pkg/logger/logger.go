package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/user/zte-adk/pkg/config"
)

// DebugEnabled forces DEBUG level regardless of configuration (set by --debug)
var DebugEnabled bool

// NewLogger builds a named logger. Level precedence: --debug, config file, ZTE_LOG_LEVEL.
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return newLogger(cfg, name, os.Stderr)
}

func newLogger(cfg *config.Config, name string, out io.Writer) hclog.Logger {
	var level hclog.Level
	switch {
	case DebugEnabled:
		level = hclog.Debug
	case cfg != nil && cfg.Logger.Level != "":
		level = getLogLevel(cfg.Logger.Level)
	default:
		level = getLogLevel(os.Getenv("ZTE_LOG_LEVEL"))
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Output: out,
		Level:  level,
	})
}

func getLogLevel(levelStr string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN", "WARNING":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
