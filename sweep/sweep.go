// Package sweep drives the two-level parameter sweep: for every tuning
// constant the header is rewritten and the executable rebuilt, then every
// input size is generated, run, verified and logged.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"

	"github.com/weiihann/tunesweep/harness"
)

// Header rewrites the build configuration from an immutable snapshot.
type Header interface {
	Apply(value int) error
	Restore() error
}

// Builder rebuilds the executable under test.
type Builder interface {
	Build(ctx context.Context, constant int) error
}

// InputGenerator writes a random file of an exact size.
type InputGenerator interface {
	Generate(path string, size int64) error
}

// Runner performs one verified round trip and returns the encryption time.
type Runner interface {
	Run(ctx context.Context, inputPath string) (time.Duration, error)
}

// ResultLog persists one row per completed cell.
type ResultLog interface {
	Append(r harness.Result) error
}

// Config is the immutable description of one sweep.
type Config struct {
	Constants []int
	Sizes     []int64
	// UnitBytes is the bytes handled per work unit. Zero disables the
	// derived block count.
	UnitBytes int64
	// InputPath is the per-cell input file, or the prefix of the per-size
	// files when ReuseInputs is set.
	InputPath string
	// ReuseInputs generates one input per size before the sweep and reuses
	// it for every constant.
	ReuseInputs bool
	// KeepHeader leaves the last rewritten header on disk instead of
	// restoring the original.
	KeepHeader bool
}

// Cells returns every cell in processing order: constants outer, sizes inner.
func (c Config) Cells() []Cell {
	cells := make([]Cell, 0, len(c.Constants)*len(c.Sizes))
	for _, constant := range c.Constants {
		for _, size := range c.Sizes {
			cells = append(cells, Cell{Constant: constant, Size: size})
		}
	}

	return cells
}

// Validate checks the sweep parameters.
func (c Config) Validate() error {
	if len(c.Constants) == 0 {
		return errors.New("no tuning constants")
	}

	if len(c.Sizes) == 0 {
		return errors.New("no input sizes")
	}

	for _, constant := range c.Constants {
		if constant <= 0 {
			return fmt.Errorf("tuning constant %d must be positive", constant)
		}
	}

	for _, size := range c.Sizes {
		if size < 0 {
			return fmt.Errorf("input size %d must not be negative", size)
		}
	}

	if c.UnitBytes < 0 {
		return fmt.Errorf("unit bytes %d must not be negative", c.UnitBytes)
	}

	if c.InputPath == "" {
		return errors.New("no input path")
	}

	return nil
}

func (c Config) inputFor(size int64) string {
	if c.ReuseInputs {
		return fmt.Sprintf("%s-%d", c.InputPath, size)
	}

	return c.InputPath
}

// Sweeper runs a sweep. It is single-use and not safe for concurrent use.
type Sweeper struct {
	cfg     Config
	header  Header
	builder Builder
	gen     InputGenerator
	runner  Runner
	log     ResultLog
	logger  *slog.Logger

	// OnResult, if set, is called after each row has been logged.
	OnResult func(harness.Result)

	ran   bool
	outer OuterState
	inner InnerState
}

// New creates a Sweeper from its collaborators.
func New(
	cfg Config,
	header Header,
	builder Builder,
	gen InputGenerator,
	runner Runner,
	log ResultLog,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:     cfg,
		header:  header,
		builder: builder,
		gen:     gen,
		runner:  runner,
		log:     log,
		logger:  logger.With(slog.String("component", "sweep")),
	}
}

// State returns the current outer and inner states. After a failed Run it
// reports where the sweep stopped.
func (s *Sweeper) State() (OuterState, InnerState) {
	return s.outer, s.inner
}

// Run executes every cell in order and stops at the first failure, which
// is returned as a *CellError. Rows appended before the failure stay in
// the log.
func (s *Sweeper) Run(ctx context.Context) (err error) {
	if s.ran {
		return errors.New("sweep already run")
	}

	s.ran = true

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid sweep: %w", err)
	}

	cells := s.cfg.Cells()

	s.logger.InfoContext(ctx, "starting sweep",
		slog.Any("constants", s.cfg.Constants),
		slog.Any("sizes", s.cfg.Sizes),
		slog.Int("cells", len(cells)),
	)

	defer func() {
		err = multierr.Append(err, s.cleanup(ctx))
	}()

	if s.cfg.ReuseInputs {
		if err := s.pregenerate(ctx); err != nil {
			return err
		}
	}

	done := 0

	for _, constant := range s.cfg.Constants {
		s.setOuter(ctx, RewritingConfig, constant)

		if err := s.header.Apply(constant); err != nil {
			return fmt.Errorf("rewrite header for constant %d: %w", constant, err)
		}

		s.setOuter(ctx, Building, constant)

		if err := s.builder.Build(ctx, constant); err != nil {
			return cellError(ErrBuild, Cell{Constant: constant, Size: noSize}, err)
		}

		for _, size := range s.cfg.Sizes {
			cell := Cell{Constant: constant, Size: size}

			result, err := s.runCell(ctx, cell)
			if err != nil {
				return err
			}

			done++

			s.logger.InfoContext(ctx, "cell complete",
				slog.Int("constant", constant),
				slog.String("size", humanize.Bytes(uint64(size))),
				slog.Int64("block_count", result.BlockCount),
				slog.Duration("elapsed", result.Elapsed),
				slog.String("progress", fmt.Sprintf("%d/%d", done, len(cells))),
			)
		}
	}

	s.outer = Done

	s.logger.InfoContext(ctx, "sweep complete", slog.Int("cells", done))

	return nil
}

func (s *Sweeper) runCell(ctx context.Context, cell Cell) (harness.Result, error) {
	input := s.cfg.inputFor(cell.Size)

	if !s.cfg.ReuseInputs {
		s.setInner(ctx, GeneratingInput, cell)

		if err := s.gen.Generate(input, cell.Size); err != nil {
			return harness.Result{}, cellError(ErrGeneration, cell, err)
		}
	}

	s.setInner(ctx, Running, cell)

	elapsed, err := s.runner.Run(ctx, input)
	if err != nil {
		kind := ErrExecution
		if errors.Is(err, harness.ErrMismatch) {
			kind = ErrIntegrity
		}

		return harness.Result{}, cellError(kind, cell, err)
	}

	s.setInner(ctx, Logging, cell)

	result := harness.Result{
		Constant:   cell.Constant,
		BlockCount: BlockCount(cell.Size, cell.Constant, s.cfg.UnitBytes),
		InputSize:  cell.Size,
		Elapsed:    elapsed,
	}

	if err := s.log.Append(result); err != nil {
		return harness.Result{}, fmt.Errorf("log %s: %w", cell, err)
	}

	if s.OnResult != nil {
		s.OnResult(result)
	}

	s.setInner(ctx, CellDone, cell)

	return result, nil
}

func (s *Sweeper) pregenerate(ctx context.Context) error {
	for _, size := range s.cfg.Sizes {
		path := s.cfg.inputFor(size)

		s.logger.InfoContext(ctx, "generating input",
			slog.String("path", path),
			slog.String("size", humanize.Bytes(uint64(size))),
		)

		if err := s.gen.Generate(path, size); err != nil {
			return cellError(ErrGeneration, Cell{Size: size}, err)
		}
	}

	return nil
}

func (s *Sweeper) cleanup(ctx context.Context) error {
	var err error

	if !s.cfg.KeepHeader && s.outer != NotStarted {
		err = multierr.Append(err, s.header.Restore())
	}

	paths := []string{s.cfg.InputPath}
	if s.cfg.ReuseInputs {
		paths = paths[:0]
		for _, size := range s.cfg.Sizes {
			paths = append(paths, s.cfg.inputFor(size))
		}
	}

	for _, p := range paths {
		if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = multierr.Append(err, fmt.Errorf("remove input: %w", rmErr))
		}
	}

	if err != nil {
		s.logger.WarnContext(ctx, "sweep cleanup failed", slog.String("error", err.Error()))
	}

	return err
}

func (s *Sweeper) setOuter(ctx context.Context, state OuterState, constant int) {
	s.outer = state
	s.logger.DebugContext(ctx, "outer state",
		slog.String("state", state.String()),
		slog.Int("constant", constant),
	)
}

func (s *Sweeper) setInner(ctx context.Context, state InnerState, cell Cell) {
	s.inner = state
	s.logger.DebugContext(ctx, "inner state",
		slog.String("state", state.String()),
		slog.Int("constant", cell.Constant),
		slog.Int64("size", cell.Size),
	)
}
