package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CalebQ42/framereader/internal/decompress"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
codec = "lz4"
mem_limit = "16 MiB"
buffer_size = "4k"
jobs = 3
verbose = true
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Codec:      decompress.LZ4Compression,
		MemLimit:   16 << 20,
		BufferSize: 4000,
		Jobs:       3,
		Verbose:    true,
	}, cfg)
}

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`verbose = true`))
	require.NoError(t, err)
	want := Default()
	want.Verbose = true
	assert.Equal(t, want, cfg)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown key", `colour = "blue"`},
		{"bad codec", `codec = "zip"`},
		{"bad size", `mem_limit = "lots"`},
		{"no jobs", `jobs = 0`},
		{"bad toml", `codec = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unframe.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mem_limit = "0"`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.MemLimit)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
