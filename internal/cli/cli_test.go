package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := parse([]string{"-h"}, out, noEnv)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-batch-size")
}

func TestParse_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, exit, err := parse([]string{dir}, &bytes.Buffer{}, noEnv)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, dir, cfg.Source)
	assert.Equal(t, "csv", cfg.Format)
	assert.Equal(t, 100000, cfg.BatchSize)
	assert.Equal(t, cfg.BatchSize, cfg.PageSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_Precedence(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	yaml := "batch_size: 10\nchunk_size: 5\nformat: json\nout: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridseed.yaml"), []byte(yaml), 0o644))
	env := envOf(map[string]string{
		"GRIDSEED_CHUNK_SIZE": "4",
		"GRIDSEED_FORMAT":     "parquet",
	})

	// --- Act ---
	cfg, _, err := parse([]string{"-f", dir, "--format", "none", "-o", "from-flag", "-v"}, &bytes.Buffer{}, env)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.BatchSize, "file beats default")
	assert.Equal(t, 4, cfg.ChunkSize, "env beats file")
	assert.Equal(t, "none", cfg.Format, "flag beats env")
	assert.Equal(t, "from-flag", cfg.Out, "shorthand flags are honored")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_SourceFromEnv(t *testing.T) {
	dir := t.TempDir()
	cfg, _, err := parse([]string{"-q"}, &bytes.Buffer{}, envOf(map[string]string{"GRIDSEED_SOURCE": dir}))
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Source)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestParse_Errors(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		args []string
		env  map[string]string
		want string
	}{
		{"unknown flag", []string{"--nope"}, nil, "flag provided but not defined"},
		{"two sources", []string{dir, dir}, nil, "at most one SOURCE"},
		{"bad format", []string{"--format", "xml", dir}, nil, "unsupported format"},
		{"bad level", []string{"--log-level", "loud", dir}, nil, "invalid log-level"},
		{"verbose and quiet", []string{"-v", "-q", dir}, nil, "mutually exclusive"},
		{"bad env", []string{dir}, map[string]string{"GRIDSEED_CONCURRENCY": "lots"}, "GRIDSEED_CONCURRENCY"},
		{"missing source", []string{filepath.Join(dir, "missing")}, nil, "source"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parse(tc.args, &bytes.Buffer{}, envOf(tc.env))
			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}
