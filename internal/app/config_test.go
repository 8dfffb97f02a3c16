package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Set(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Set("batch-size", "42"))
	require.NoError(t, cfg.Set("export", "true"))
	require.NoError(t, cfg.Set("format", "JSON"))
	require.NoError(t, cfg.Set("seed", "9"))
	assert.Equal(t, 42, cfg.BatchSize)
	assert.True(t, cfg.Export)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, uint64(9), cfg.Seed)

	assert.ErrorContains(t, cfg.Set("batch-size", "many"), "invalid value")
	assert.ErrorContains(t, cfg.Set("nope", "1"), "unknown config key")
}

func TestConfig_LoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFile)
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 50\nformat: parquet\nkeep_temp: true\n"), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, "parquet", cfg.Format)
	assert.True(t, cfg.KeepTemp)
	assert.Equal(t, 200, cfg.ChunkSize, "keys absent from the file keep their value")

	env := map[string]string{"GRIDSEED_BATCH_SIZE": "60", "GRIDSEED_LOG_LEVEL": "debug"}
	require.NoError(t, cfg.LoadEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }))
	assert.Equal(t, 60, cfg.BatchSize)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFile(filepath.Join(dir, "absent.yaml")))
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("bad env value", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadEnv(func(k string) (string, bool) { return "x", k == "GRIDSEED_WATCH" })
		assert.ErrorContains(t, err, "GRIDSEED_WATCH")
	})
}

func TestNewConfig(t *testing.T) {
	valid := DefaultConfig()
	valid.Source = t.TempDir()

	cfg, err := NewConfig(valid)
	require.NoError(t, err)
	assert.Equal(t, valid.BatchSize, cfg.PageSize)

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing source", func(c *Config) { c.Source = "" }, "required"},
		{"source not found", func(c *Config) { c.Source = filepath.Join(valid.Source, "nope") }, "source"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "unsupported format"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch-size must be positive"},
		{"same ext", func(c *Config) { c.GroupExt = c.NodeExt }, "must be set and differ"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "invalid log-level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log-format"},
		{"negative page", func(c *Config) { c.PageSize = -1 }, "page-size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			_, err := NewConfig(c)
			assert.ErrorContains(t, err, tc.want)
		})
	}

	t.Run("none format is accepted", func(t *testing.T) {
		c := valid
		c.Format = "none"
		_, err := NewConfig(c)
		assert.NoError(t, err)
	})
}
