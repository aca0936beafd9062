// Package workload generates random input files for encryption benchmarks.
// The content is stress data for the system under test, not key material,
// so a seeded math/rand source is used and tests can reproduce any file.
package workload

import (
	"bufio"
	"errors"
	"fmt"
	mrand "math/rand"
	"os"

	"github.com/detailyang/go-fallocate"
)

// ErrSizeMismatch is returned when a generated file does not have the
// requested length.
var ErrSizeMismatch = errors.New("generated file size mismatch")

const writeBufferSize = 1 << 20

// transferUnits are tried largest first. A unit is only used when it divides
// the requested size, so unit*count is always exactly the size.
var transferUnits = []int64{1 << 20, 1_000_000, 1 << 16, 4096, 1000, 512, 8, 1}

// Plan returns the transfer unit and block count used to write size bytes.
func Plan(size int64) (unit, count int64) {
	if size <= 0 {
		return 1, 0
	}

	for _, u := range transferUnits {
		if size >= u && size%u == 0 {
			return u, size / u
		}
	}

	return 1, size
}

// Generator writes files of random bytes.
type Generator struct {
	rng *mrand.Rand
}

// NewGenerator creates a Generator drawing bytes from rng.
func NewGenerator(rng *mrand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate creates (or truncates) path and fills it with exactly size
// random bytes.
func (g *Generator) Generate(path string, size int64) error {
	if size < 0 {
		return fmt.Errorf("generate %s: negative size %d", path, size)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := g.fill(f, size); err != nil {
		f.Close()

		return fmt.Errorf("generate %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() != size {
		return fmt.Errorf("%w: %s has %d bytes, want %d",
			ErrSizeMismatch, path, info.Size(), size)
	}

	return nil
}

func (g *Generator) fill(f *os.File, size int64) error {
	if size > 0 {
		err := fallocate.Fallocate(f, 0, size)
		if err != nil && !errors.Is(err, errors.ErrUnsupported) {
			return fmt.Errorf("preallocate %d bytes: %w", size, err)
		}
	}

	unit, count := Plan(size)
	buf := make([]byte, unit)
	w := bufio.NewWriterSize(f, writeBufferSize)

	for i := int64(0); i < count; i++ {
		g.rng.Read(buf)

		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write block %d/%d: %w", i+1, count, err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}
