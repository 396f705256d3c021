package logger

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/user/zte-adk/pkg/config"
)

func TestGetLogLevel(t *testing.T) {
	var tests = []struct {
		in   string
		want hclog.Level
	}{
		{"trace", hclog.Trace},
		{"DEBUG", hclog.Debug},
		{" warn ", hclog.Warn},
		{"warning", hclog.Warn},
		{"error", hclog.Error},
		{"", hclog.Info},
		{"verbose", hclog.Info},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, getLogLevel(tt.in))
		})
	}
}

func TestNewLoggerRespectsConfigAndDebugFlag(t *testing.T) {
	cfg := config.Default()
	cfg.Logger.Level = "ERROR"

	var buf bytes.Buffer
	l := newLogger(cfg, "test", &buf)
	l.Info("hidden")
	assert.Empty(t, buf.String())

	DebugEnabled = true
	defer func() { DebugEnabled = false }()

	l = newLogger(cfg, "test", &buf)
	l.Debug("shown", "job_id", "j1")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "job_id=j1")
}
