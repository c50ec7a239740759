package app

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsTaskError(t *testing.T) {
	var closed []int
	a := NewBaseApp()
	a.AppendCloser(
		CloserFunc(func() error { closed = append(closed, 1); return nil }),
		CloserFunc(func() error { closed = append(closed, 2); return errors.New("close failed") }),
	)

	want := errors.New("boom")
	err := a.Run(context.Background(), func(ctx context.Context) error { return want })
	assert.True(t, errors.Is(err, want))
	assert.Equal(t, []int{2, 1}, closed)

	err = a.Run(context.Background(), func(ctx context.Context) error { return nil })
	assert.True(t, errors.Is(err, ErrAppAlreadyRunning))
}

func TestRunRecoversPanic(t *testing.T) {
	err := NewBaseApp().Run(context.Background(), func(ctx context.Context) error {
		panic("task exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task exploded")
}

func TestRunCancelsTaskOnSignal(t *testing.T) {
	a := NewBaseApp(WithStopTimeout(2 * time.Second))
	a.signals = []os.Signal{syscall.SIGUSR1}

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- a.Run(context.Background(), func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()

	<-started
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(3 * time.Second):
		t.Fatal("run did not stop after signal")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volguard:\n  data_count: 5\n  ecc_count: 3\n  codec: rs\n"), 0o644))

	t.Setenv("VOLGUARD_VOLGUARD_ECC_COUNT", "4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("data", 0, "")
	fs.Bool("fast", false, "")
	require.NoError(t, fs.Parse([]string{"--fast"}))

	var cfg struct {
		VolGuard struct {
			DataCount  int    `mapstructure:"data_count"`
			ECCCount   int    `mapstructure:"ecc_count"`
			Codec      string `mapstructure:"codec"`
			FastMode   bool   `mapstructure:"fast_mode"`
			BufferSize int    `mapstructure:"buffer_size"`
		} `mapstructure:"volguard"`
	}

	used, err := LoadConfig(ConfigSource{
		Path:  path,
		Flags: fs,
		Bindings: map[string]string{
			"volguard.data_count": "data",
			"volguard.fast_mode":  "fast",
		},
		Defaults: map[string]any{
			"volguard.buffer_size": 4096,
			"volguard.ecc_count":   1,
		},
	}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	assert.Equal(t, 5, cfg.VolGuard.DataCount)
	assert.Equal(t, 4, cfg.VolGuard.ECCCount)
	assert.Equal(t, "rs", cfg.VolGuard.Codec)
	assert.True(t, cfg.VolGuard.FastMode)
	assert.Equal(t, 4096, cfg.VolGuard.BufferSize)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	var cfg struct{}
	_, err := LoadConfig(ConfigSource{Path: filepath.Join(t.TempDir(), "absent.yaml")}, &cfg)
	assert.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, "volguard", info.AppName)
	assert.Contains(t, info.String(), info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
