package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// managerTestConfig 测试配置结构
type managerTestConfig struct {
	VolumeSet struct {
		BaseName    string `mapstructure:"base_name" validate:"required"`
		DataCount   int    `mapstructure:"data_count" validate:"min=1"`
		ParityCount int    `mapstructure:"parity_count" validate:"min=0"`
		Codec       string `mapstructure:"codec"`
	} `mapstructure:"volume_set"`
	Worker struct {
		BufferSize int           `mapstructure:"buffer_size"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Fast       bool          `mapstructure:"fast"`
	} `mapstructure:"worker"`
}

const managerTestYAML = `
volume_set:
  base_name: archive
  data_count: 5
  parity_count: 3
  codec: rs
worker:
  buffer_size: 65536
  timeout: 30s
  fast: true
`

// createTestConfigFile 创建测试配置文件
func createTestConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestManagerLoadFile(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))

	var cfg managerTestConfig
	require.NoError(t, m.Unmarshal(&cfg))

	assert.Equal(t, "archive", cfg.VolumeSet.BaseName)
	assert.Equal(t, 5, cfg.VolumeSet.DataCount)
	assert.Equal(t, 3, cfg.VolumeSet.ParityCount)
	assert.Equal(t, 65536, cfg.Worker.BufferSize)
	assert.Equal(t, 30*time.Second, cfg.Worker.Timeout)
	assert.True(t, cfg.Worker.Fast)
}

func TestManagerLoadFileMissing(t *testing.T) {
	m := NewManager()
	err := m.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestManagerUnmarshalKey(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))

	var dataCount int
	require.NoError(t, m.UnmarshalKey("volume_set.data_count", &dataCount))
	assert.Equal(t, 5, dataCount)

	var worker struct {
		BufferSize int `mapstructure:"buffer_size"`
	}
	require.NoError(t, m.UnmarshalKey("worker", &worker))
	assert.Equal(t, 65536, worker.BufferSize)
}

func TestManagerGetters(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))

	assert.Equal(t, "rs", m.GetString("volume_set.codec"))
	assert.Equal(t, 3, m.GetInt("volume_set.parity_count"))
	assert.True(t, m.GetBool("worker.fast"))
	assert.Equal(t, "archive", m.Get("volume_set.base_name"))
	assert.True(t, m.IsSet("worker.timeout"))
	assert.False(t, m.IsSet("worker.priority"))

	all := m.AllSettings()
	assert.Contains(t, all, "volume_set")
	assert.Contains(t, all, "worker")
}

func TestManagerBindEnv(t *testing.T) {
	t.Setenv("VOLGUARD_VOLUME_SET_DATA_COUNT", "12")

	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))
	m.BindEnv("VOLGUARD")

	assert.Equal(t, 12, m.GetInt("volume_set.data_count"))
	assert.Equal(t, 3, m.GetInt("volume_set.parity_count"))
}

func TestManagerBindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("data", 0, "")
	fs.String("codec", "rs", "")
	require.NoError(t, fs.Parse([]string{"--data", "9"}))

	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))
	require.NoError(t, m.BindFlag("volume_set.data_count", fs.Lookup("data")))
	require.NoError(t, m.BindFlag("volume_set.codec", fs.Lookup("codec")))

	// 显式设置的参数覆盖配置文件
	assert.Equal(t, 9, m.GetInt("volume_set.data_count"))
	assert.Equal(t, "rs", m.GetString("volume_set.codec"))

	err := m.BindFlag("volume_set.base_name", fs.Lookup("absent"))
	assert.True(t, errors.Is(err, ErrNilFlag))
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(WithDefaults(map[string]any{
		"worker.buffer_size": 4096,
		"volume_set.codec":   "rs",
	}))
	m.SetDefault("volume_set.parity_count", 2)

	assert.Equal(t, 4096, m.GetInt("worker.buffer_size"))
	assert.Equal(t, "rs", m.GetString("volume_set.codec"))
	assert.Equal(t, 2, m.GetInt("volume_set.parity_count"))

	require.NoError(t, m.LoadFile(createTestConfigFile(t, managerTestYAML)))
	assert.Equal(t, 65536, m.GetInt("worker.buffer_size"))
}

func TestManagerWithConfigType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volguard.conf")
	require.NoError(t, os.WriteFile(path, []byte(`{"volume_set":{"data_count":4}}`), 0o644))

	m := NewManager(WithConfigType("json"))
	require.NoError(t, m.LoadFile(path))
	assert.Equal(t, 4, m.GetInt("volume_set.data_count"))
}

func TestManagerByteSizes(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadFile(createTestConfigFile(t, `
worker:
  buffer_size: 4MiB
  timeout: 1m
`)))

	var cfg managerTestConfig
	require.NoError(t, m.Unmarshal(&cfg))
	assert.Equal(t, 4<<20, cfg.Worker.BufferSize)
	assert.Equal(t, time.Minute, cfg.Worker.Timeout)

	var size int64
	require.NoError(t, m.UnmarshalKey("worker.buffer_size", &size))
	assert.Equal(t, int64(4<<20), size)
}
