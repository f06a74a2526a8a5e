package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/CalebQ42/framereader/internal/decompress"
)

// Config is the resolved configuration of go-unframe.
type Config struct {
	Codec      decompress.Codec
	MemLimit   int64
	BufferSize int
	Jobs       int
	Verbose    bool
}

// file is the on disk layout. Sizes are strings such as "80 MiB" or "64k".
type file struct {
	Codec      string `toml:"codec"`
	MemLimit   string `toml:"mem_limit"`
	BufferSize string `toml:"buffer_size"`
	Jobs       int    `toml:"jobs"`
	Verbose    bool   `toml:"verbose"`
}

// Default uses half of your CPU cores for -t.
func Default() Config {
	return Config{
		Codec:      decompress.AutoDetect,
		MemLimit:   80 << 20,
		BufferSize: 64 << 10,
		Jobs:       max(runtime.NumCPU()/2, 1),
	}
}

// Load reads the TOML file at path on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of Default. Keys that are not set keep their
// default.
func Parse(data []byte) (Config, error) {
	var raw file
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return Config{}, err
	}
	if und := meta.Undecoded(); len(und) > 0 {
		return Config{}, fmt.Errorf("unknown key %q", und[0].String())
	}
	cfg := Default()
	if meta.IsDefined("codec") {
		if cfg.Codec, err = decompress.ParseCodec(raw.Codec); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("mem_limit") {
		if cfg.MemLimit, err = ParseSize(raw.MemLimit); err != nil {
			return Config{}, fmt.Errorf("mem_limit: %w", err)
		}
	}
	if meta.IsDefined("buffer_size") {
		n, err := ParseSize(raw.BufferSize)
		if err != nil {
			return Config{}, fmt.Errorf("buffer_size: %w", err)
		}
		if n > math.MaxInt32 {
			return Config{}, fmt.Errorf("buffer_size: %s is too large", raw.BufferSize)
		}
		cfg.BufferSize = int(n)
	}
	if meta.IsDefined("jobs") {
		cfg.Jobs = raw.Jobs
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseSize understands the units of humanize.ParseBytes.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size %s is too large", s)
	}
	return int64(n), nil
}

func (c Config) Validate() error {
	var errs []error
	if c.MemLimit < 0 {
		errs = append(errs, errors.New("mem_limit must not be negative"))
	}
	if c.BufferSize < 1 {
		errs = append(errs, errors.New("buffer_size must be at least one byte"))
	}
	if c.Jobs < 1 {
		errs = append(errs, errors.New("jobs must be at least 1"))
	}
	return errors.Join(errs...)
}
