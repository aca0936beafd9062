package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/tunesweep/harness"
)

type fakeHeader struct {
	applied  []int
	restored int
}

func (h *fakeHeader) Apply(v int) error {
	h.applied = append(h.applied, v)
	return nil
}

func (h *fakeHeader) Restore() error {
	h.restored++
	return nil
}

type fakeBuilder struct {
	failOn int
	built  []int
}

func (b *fakeBuilder) Build(_ context.Context, constant int) error {
	b.built = append(b.built, constant)
	if constant == b.failOn {
		return errors.New("make: *** [des] Error 1")
	}

	return nil
}

type fakeGen struct {
	failOn int64
	calls  []string
	sizes  []int64
}

func (g *fakeGen) Generate(path string, size int64) error {
	g.calls = append(g.calls, path)
	g.sizes = append(g.sizes, size)
	if size == g.failOn {
		return errors.New("disk full")
	}

	return nil
}

type fakeRunner struct {
	err    error
	inputs []string
}

func (r *fakeRunner) Run(_ context.Context, input string) (time.Duration, error) {
	r.inputs = append(r.inputs, input)
	if r.err != nil {
		return 0, r.err
	}

	return 3 * time.Millisecond, nil
}

type memLog struct {
	rows []harness.Result
}

func (l *memLog) Append(r harness.Result) error {
	l.rows = append(l.rows, r)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	header  *fakeHeader
	builder *fakeBuilder
	gen     *fakeGen
	runner  *fakeRunner
	log     *memLog
}

func newFixture() *fixture {
	return &fixture{
		header:  &fakeHeader{},
		builder: &fakeBuilder{failOn: -1},
		gen:     &fakeGen{failOn: -1},
		runner:  &fakeRunner{},
		log:     &memLog{},
	}
}

func (f *fixture) sweeper(cfg Config) *Sweeper {
	return New(cfg, f.header, f.builder, f.gen, f.runner, f.log, quietLogger())
}

func baseConfig(t *testing.T) Config {
	return Config{
		Constants: []int{32, 64},
		Sizes:     []int64{1, 1000},
		UnitBytes: 8,
		InputPath: t.TempDir() + "/file_to_encrypt",
	}
}

func TestBlockCount(t *testing.T) {
	tests := []struct {
		size     int64
		constant int
		unit     int64
		want     int64
	}{
		{0, 32, 8, 0},
		{1, 32, 8, 1},
		{256, 32, 8, 1},
		{257, 32, 8, 2},
		{1_000_000_000, 1024, 8, 122071},
		{1000, 64, 0, 0},
	}

	for _, tt := range tests {
		got := BlockCount(tt.size, tt.constant, tt.unit)
		if got != tt.want {
			t.Errorf("BlockCount(%d, %d, %d) = %d, want %d",
				tt.size, tt.constant, tt.unit, got, tt.want)
		}
	}
}

func TestBlockCountCeilProperty(t *testing.T) {
	for _, constant := range []int{1, 3, 32, 1000} {
		for _, unit := range []int64{1, 8, 13} {
			per := int64(constant) * unit
			for size := int64(0); size < 3*per+2; size++ {
				got := BlockCount(size, constant, unit)
				assert.GreaterOrEqual(t, got*per, size)
				if size > 0 {
					assert.Less(t, (got-1)*per, size)
					assert.Positive(t, got)
				} else {
					assert.Zero(t, got)
				}
			}
		}
	}
}

func TestCellsOrder(t *testing.T) {
	cells := baseConfig(t).Cells()
	want := []Cell{{32, 1}, {32, 1000}, {64, 1}, {64, 1000}}

	assert.Equal(t, want, cells)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no constants", func(c *Config) { c.Constants = nil }},
		{"no sizes", func(c *Config) { c.Sizes = nil }},
		{"zero constant", func(c *Config) { c.Constants = []int{0} }},
		{"negative size", func(c *Config) { c.Sizes = []int64{-1} }},
		{"negative unit", func(c *Config) { c.UnitBytes = -8 }},
		{"no input", func(c *Config) { c.InputPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRunLogsEveryCell(t *testing.T) {
	f := newFixture()
	s := f.sweeper(baseConfig(t))

	var observed []harness.Result
	s.OnResult = func(r harness.Result) { observed = append(observed, r) }

	require.NoError(t, s.Run(context.Background()))

	require.Len(t, f.log.rows, 4)
	assert.Equal(t, f.log.rows, observed)

	want := []harness.Result{
		{Constant: 32, BlockCount: 1, InputSize: 1, Elapsed: 3 * time.Millisecond},
		{Constant: 32, BlockCount: 4, InputSize: 1000, Elapsed: 3 * time.Millisecond},
		{Constant: 64, BlockCount: 1, InputSize: 1, Elapsed: 3 * time.Millisecond},
		{Constant: 64, BlockCount: 2, InputSize: 1000, Elapsed: 3 * time.Millisecond},
	}
	assert.Equal(t, want, f.log.rows)

	assert.Equal(t, []int{32, 64}, f.header.applied)
	assert.Equal(t, []int{32, 64}, f.builder.built)
	assert.Equal(t, 1, f.header.restored)
	assert.Len(t, f.gen.calls, 4, "per-cell generation")

	outer, inner := s.State()
	assert.Equal(t, Done, outer)
	assert.Equal(t, CellDone, inner)

	assert.Error(t, s.Run(context.Background()), "second run must be rejected")
}

func TestRunBuildFailureStopsBeforeConstant(t *testing.T) {
	f := newFixture()
	f.builder.failOn = 64
	s := f.sweeper(baseConfig(t))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrBuild)

	var cellErr *CellError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, 64, cellErr.Cell.Constant)
	assert.Contains(t, err.Error(), "constant=64")

	require.Len(t, f.log.rows, 2)
	for _, r := range f.log.rows {
		assert.Equal(t, 32, r.Constant)
	}

	outer, _ := s.State()
	assert.Equal(t, Building, outer)
	assert.Equal(t, 1, f.header.restored)
}

func TestRunGenerationFailure(t *testing.T) {
	f := newFixture()
	f.gen.failOn = 1000
	s := f.sweeper(baseConfig(t))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "constant=32, size=1000")
	assert.Len(t, f.log.rows, 1)

	_, inner := s.State()
	assert.Equal(t, GeneratingInput, inner)
}

func TestRunExecutionFailure(t *testing.T) {
	f := newFixture()
	f.runner.err = errors.New("exit status 1")
	s := f.sweeper(baseConfig(t))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrExecution)
	assert.NotErrorIs(t, err, ErrIntegrity)
	assert.Empty(t, f.log.rows)
	assert.Len(t, f.runner.inputs, 1, "no retry")
}

func TestRunIntegrityFailure(t *testing.T) {
	f := newFixture()
	f.runner.err = harness.ErrMismatch
	s := f.sweeper(baseConfig(t))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, ErrIntegrity)
	require.ErrorIs(t, err, harness.ErrMismatch)
	assert.Empty(t, f.log.rows)

	_, inner := s.State()
	assert.Equal(t, Running, inner)
}

func TestRunReuseInputs(t *testing.T) {
	f := newFixture()
	cfg := baseConfig(t)
	cfg.ReuseInputs = true
	s := f.sweeper(cfg)

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []int64{1, 1000}, f.gen.sizes, "one input per size")
	require.Len(t, f.runner.inputs, 4)
	assert.Equal(t, cfg.InputPath+"-1", f.runner.inputs[0])
	assert.Equal(t, cfg.InputPath+"-1000", f.runner.inputs[1])
	assert.Equal(t, cfg.InputPath+"-1", f.runner.inputs[2])
}

func TestRunKeepHeader(t *testing.T) {
	f := newFixture()
	cfg := baseConfig(t)
	cfg.KeepHeader = true

	require.NoError(t, f.sweeper(cfg).Run(context.Background()))
	assert.Zero(t, f.header.restored)
}
