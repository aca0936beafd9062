package workload

import (
	"bytes"
	mrand "math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanProductMatchesSize(t *testing.T) {
	sizes := []int64{
		0, 1, 7, 8, 999, 1000, 1001, 4096, 5000, 65536,
		1_000_000, 1_000_003, 1 << 20, 1<<20 + 1,
		500_000_000, 1_000_000_000, 1 << 30,
	}

	for _, size := range sizes {
		unit, count := Plan(size)
		assert.Positive(t, unit, "size %d", size)
		assert.Equal(t, size, unit*count, "size %d: unit=%d count=%d",
			size, unit, count)
	}
}

func TestPlanPrefersLargeUnits(t *testing.T) {
	tests := []struct {
		size      int64
		wantUnit  int64
		wantCount int64
	}{
		{0, 1, 0},
		{1, 1, 1},
		{5000, 1000, 5},
		{1_000_000_000, 1_000_000, 1000},
		{1 << 30, 1 << 20, 1024},
		{1_000_003, 1, 1_000_003},
	}

	for _, tt := range tests {
		unit, count := Plan(tt.size)
		if unit != tt.wantUnit || count != tt.wantCount {
			t.Errorf("Plan(%d) = (%d, %d), want (%d, %d)",
				tt.size, unit, count, tt.wantUnit, tt.wantCount)
		}
	}
}

func TestGenerateExactSize(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(mrand.New(mrand.NewSource(1)))

	for _, size := range []int64{0, 1, 8, 1000, 1001, 1_000_003} {
		path := filepath.Join(dir, "input")

		require.NoError(t, gen.Generate(path, size))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, size, info.Size(), "size %d", size)
	}
}

func TestGenerateTruncatesPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input")
	gen := NewGenerator(mrand.New(mrand.NewSource(2)))

	require.NoError(t, gen.Generate(path, 10_000))
	require.NoError(t, gen.Generate(path, 3))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.Size())
}

func TestGenerateDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	require.NoError(t, NewGenerator(mrand.New(mrand.NewSource(42))).Generate(a, 4097))
	require.NoError(t, NewGenerator(mrand.New(mrand.NewSource(42))).Generate(b, 4097))

	dataA, err := os.ReadFile(a)
	require.NoError(t, err)
	dataB, err := os.ReadFile(b)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(dataA, dataB), "same seed produced different files")
}

func TestGenerateNegativeSize(t *testing.T) {
	gen := NewGenerator(mrand.New(mrand.NewSource(3)))
	err := gen.Generate(filepath.Join(t.TempDir(), "input"), -1)
	require.Error(t, err)
}
