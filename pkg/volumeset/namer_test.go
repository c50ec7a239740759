package volumeset

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultNamer(t *testing.T) {
	var n DefaultNamer

	name := n.VolumeName("backup.tar", 7, 5, 3, "rs")
	assert.Equal(t, "backup.tar.007-5-3.rs", name)

	base, ok := n.BaseName(name)
	require.True(t, ok)
	assert.Equal(t, "backup.tar", base)

	v, ok := n.Parse("x.1234-200-56.rs")
	require.True(t, ok)
	assert.Equal(t, VolumeName{Base: "x", Index: 1234, DataCount: 200, ECCCount: 56, Codec: "rs"}, v)

	for _, bad := range []string{"backup.tar", "backup.7-5-3.rs", "backup.007-5-3.", ".007-5-3.rs"} {
		_, ok := n.BaseName(bad)
		assert.False(t, ok, bad)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := &Config{BasePath: "/srv", BaseName: filepath.Join("sets", "backup.tar.003-5-3.rs")}
	cfg.normalize(DefaultNamer{})

	assert.Equal(t, filepath.Join("/srv", "sets"), cfg.BasePath)
	assert.Equal(t, "backup.tar", cfg.BaseName)

	cfg = &Config{BasePath: "/var/lib/vols", BaseName: "/srv/set/payload.000-4-2.rs"}
	cfg.normalize(DefaultNamer{})
	assert.Equal(t, filepath.Clean("/srv/set"), cfg.BasePath)
	assert.Equal(t, "payload", cfg.BaseName)

	cfg = &Config{BasePath: "/var/lib/vols", BaseName: "payload.001-4-2.rs"}
	cfg.normalize(DefaultNamer{})
	assert.Equal(t, "/var/lib/vols", cfg.BasePath)
	assert.Equal(t, "payload", cfg.BaseName)
}

func TestPrepareConfig(t *testing.T) {
	cfg, err := prepare(&Config{BaseName: "p", DataCount: 4, ECCCount: 2}, DefaultNamer{})
	require.NoError(t, err)
	assert.Equal(t, "rs", cfg.Codec)
	assert.Equal(t, DefaultMaxVolumes, cfg.MaxVolumes)
	assert.Equal(t, "normal", cfg.Priority)
	assert.Equal(t, "crc64", cfg.Algorithm)
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil", nil},
		{"no data", &Config{BaseName: "p", ECCCount: 2}},
		{"no parity", &Config{BaseName: "p", DataCount: 2}},
		{"negative parity", &Config{BaseName: "p", DataCount: 2, ECCCount: -1}},
		{"no base", &Config{DataCount: 2, ECCCount: 1}},
		{"too many volumes", &Config{BaseName: "p", DataCount: 200, ECCCount: 57}},
		{"custom ceiling", &Config{BaseName: "p", DataCount: 10, ECCCount: 7, MaxVolumes: 16}},
		{"bad priority", &Config{BaseName: "p", DataCount: 2, ECCCount: 1, Priority: "urgent"}},
		{"bad algorithm", &Config{BaseName: "p", DataCount: 2, ECCCount: 1, Algorithm: "md5"}},
		{"bad codec", &Config{BaseName: "p", DataCount: 2, ECCCount: 1, Codec: "r/s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(tt.cfg)
			assert.Nil(t, a)
			assert.True(t, errors.Is(err, ErrConfigurationInvalid))
		})
	}

	_, err := NewAnalyzer(&Config{BaseName: "p", DataCount: 200, ECCCount: 56})
	assert.NoError(t, err)
}
