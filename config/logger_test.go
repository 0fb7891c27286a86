// 日志构建测试。
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogConfig_Build(t *testing.T) {
	tests := []struct {
		name      string
		cfg       LogConfig
		wantLevel zapcore.Level
	}{
		{"debug json", LogConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel},
		{"info console", LogConfig{Level: "info", Format: "console"}, zapcore.InfoLevel},
		{"warn", LogConfig{Level: "warn"}, zapcore.WarnLevel},
		{"error", LogConfig{Level: "error"}, zapcore.ErrorLevel},
		{"unknown level falls back to info", LogConfig{Level: "verbose"}, zapcore.InfoLevel},
		{"empty config", LogConfig{}, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := tt.cfg.Build()
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
			}
			_ = logger.Sync()
		})
	}
}

func TestLogConfig_Build_WithOptions(t *testing.T) {
	logger := LogConfig{
		Level:            "info",
		Format:           "json",
		EnableCaller:     true,
		EnableStacktrace: true,
	}.Build()
	require.NotNil(t, logger)
	logger.Info("options smoke test")
	_ = logger.Sync()
}
