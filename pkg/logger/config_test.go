package logger

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/volguard/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, InfoLevel, cfg.Level)
	assert.Equal(t, ConsoleFormat, cfg.Format)
	assert.True(t, cfg.EnableConsole)
	assert.False(t, cfg.EnableFile)
	assert.Equal(t, "2006-01-02 15:04:05", cfg.TimeFormat)
	assert.Equal(t, RotationBySize, cfg.Rotation.Type)
	assert.Equal(t, 100, cfg.Rotation.MaxSize)
	assert.True(t, cfg.EnableStacktrace)
	assert.Equal(t, ErrorLevel, cfg.StacktraceLevel)
	assert.False(t, cfg.EnableSampling)
	assert.NotNil(t, cfg.ContextExtractor)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr error
	}{
		{
			name:   "console only",
			config: &Config{EnableConsole: true},
		},
		{
			name:   "file with path",
			config: &Config{EnableFile: true, OutputPath: "/tmp/volguard.log"},
		},
		{
			name:    "file without path",
			config:  &Config{EnableFile: true},
			wantErr: ErrInvalidOutputPath,
		},
		{
			name:    "no output",
			config:  &Config{},
			wantErr: ErrNoOutputEnabled,
		},
		{
			name:    "unknown format",
			config:  &Config{EnableConsole: true, Format: "xml"},
			wantErr: ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

// TestPartialConfig 部分配置与默认配置合并
func TestPartialConfig(t *testing.T) {
	merged, err := config.MergeConfig(DefaultConfig(), &Config{
		Level:  DebugLevel,
		Format: JSONFormat,
	})
	require.NoError(t, err)

	assert.Equal(t, DebugLevel, merged.Level)
	assert.Equal(t, JSONFormat, merged.Format)
	// 其他字段保留默认值
	assert.True(t, merged.EnableConsole)
	assert.Equal(t, "2006-01-02 15:04:05", merged.TimeFormat)
	assert.Equal(t, ".%Y%m%d", merged.Rotation.RotationPattern)
}
