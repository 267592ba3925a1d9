package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		cfg       LoggerConfig
		wantDebug bool
		wantInfo  bool
	}{
		{name: "development", cfg: LoggerConfig{Env: "development", Component: "server"}, wantDebug: true, wantInfo: true},
		{name: "production", cfg: LoggerConfig{Env: "production", Component: "server"}, wantDebug: false, wantInfo: true},
		{name: "override", cfg: LoggerConfig{Env: "development", Component: "worker", Level: "warn"}, wantDebug: false, wantInfo: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.cfg)
			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.wantInfo, logger.Core().Enabled(zap.InfoLevel))
			assert.True(t, logger.Core().Enabled(zap.ErrorLevel))
		})
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(LoggerConfig{Env: "development", Level: "loud"})
	})
}
