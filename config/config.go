// Package config holds the tunesweep settings: built-in defaults, an
// optional TOML file, and the parsing of human-readable input sizes.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/samber/lo"
)

// Config is the full description of a sweep run.
type Config struct {
	// Header is the C header holding the tuning-constant declaration.
	Header string `toml:"header"`
	// Marker identifies the declaration line in Header.
	Marker string `toml:"marker"`
	// Executable is the encrypt/decrypt binary under test.
	Executable string `toml:"executable"`
	// BuildCommand rebuilds Executable, run from BuildDir.
	BuildCommand []string `toml:"build_command"`
	BuildDir     string   `toml:"build_dir"`
	// Log is the CSV result log, overwritten at sweep start.
	Log string `toml:"log"`
	// Input is the generated input file (or prefix with ReuseInputs).
	Input string `toml:"input"`
	// WorkDir holds the transient encrypted and decrypted files.
	WorkDir string `toml:"work_dir"`

	Constants []int    `toml:"constants"`
	Sizes     []string `toml:"sizes"`
	// UnitBytes is the bytes processed per work unit, used for the block
	// count column. Zero drops the column.
	UnitBytes int64 `toml:"unit_bytes"`

	Seed        int64         `toml:"seed"`
	ReuseInputs bool          `toml:"reuse_inputs"`
	KeepHeader  bool          `toml:"keep_header"`
	Timeout     time.Duration `toml:"timeout"`
}

// Default returns the settings of the original CUDA DES sweep.
func Default() Config {
	return Config{
		Header:       "constants.h",
		Marker:       "CUDA_THREAD_COUNT_PER_BLOCK",
		Executable:   "./des",
		BuildCommand: []string{"make"},
		BuildDir:     ".",
		Log:          "cuda_log.csv",
		Input:        "file_to_encrypt",
		WorkDir:      ".",
		Constants:    []int{32, 64, 128, 256, 512, 1024},
		// Deliberately not 64-bit aligned.
		Sizes:     []string{"1", "8", "1KB", "5KB", "1MB", "500MB", "1GB"},
		UnitBytes: 8,
	}
}

// Load decodes the TOML file at path over cfg. Keys not present in the file
// keep their current values; unknown keys are an error.
func Load(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := lo.Map(undecoded, func(k toml.Key, _ int) string { return k.String() })

		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return nil
}

// ParseSize parses a byte count. Plain integers are bytes, decimal suffixes
// (kB, MB, GB) are powers of 1000 and binary suffixes (KiB, MiB, GiB) are
// powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("size %q is negative", s)
		}

		return n, nil
	}

	var (
		n   int64
		err error
	)

	if strings.Contains(strings.ToLower(s), "ib") {
		n, err = units.RAMInBytes(s)
	} else {
		n, err = units.FromHumanSize(s)
	}

	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("size %q is negative", s)
	}

	return n, nil
}

// ParseSizes parses every entry of sizes, keeping order.
func ParseSizes(sizes []string) ([]int64, error) {
	out := make([]int64, 0, len(sizes))
	for _, s := range sizes {
		n, err := ParseSize(s)
		if err != nil {
			return nil, err
		}

		out = append(out, n)
	}

	return out, nil
}

// Validate checks the settings and returns the parsed input sizes.
func (c Config) Validate() ([]int64, error) {
	var errs []error

	required := []struct{ name, value string }{
		{"header", c.Header},
		{"marker", c.Marker},
		{"executable", c.Executable},
		{"log", c.Log},
		{"input", c.Input},
	}

	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", f.name))
		}
	}

	if len(c.BuildCommand) == 0 {
		errs = append(errs, errors.New("build_command must not be empty"))
	}

	if len(c.Constants) == 0 {
		errs = append(errs, errors.New("at least one tuning constant is required"))
	}

	for _, v := range c.Constants {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("tuning constant %d must be positive", v))
		}
	}

	if dup := lo.FindDuplicates(c.Constants); len(dup) > 0 {
		errs = append(errs, fmt.Errorf("duplicate tuning constants: %v", dup))
	}

	if c.UnitBytes < 0 {
		errs = append(errs, fmt.Errorf("unit_bytes %d must not be negative", c.UnitBytes))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s must not be negative", c.Timeout))
	}

	sizes, err := ParseSizes(c.Sizes)
	if err != nil {
		errs = append(errs, err)
	} else {
		if len(sizes) == 0 {
			errs = append(errs, errors.New("at least one input size is required"))
		}

		if dup := lo.FindDuplicates(sizes); len(dup) > 0 {
			errs = append(errs, fmt.Errorf("duplicate input sizes: %v", dup))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return sizes, nil
}
