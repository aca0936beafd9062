package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/codeskyblue/go-sh"
)

// BuildConfig describes how to rebuild the executable under test.
type BuildConfig struct {
	// Dir is the directory the build command runs in.
	Dir string
	// Command is the build command and its arguments, e.g. ["make"].
	Command []string
	// BinaryPath, when set, must exist after a successful build.
	BinaryPath string
	// Timeout bounds the build. Zero means no limit.
	Timeout time.Duration
}

// Builder runs the external build step. Build output is forwarded to
// Output and never parsed.
type Builder struct {
	cfg    BuildConfig
	Output io.Writer
	Logger *slog.Logger
}

// NewBuilder creates a Builder that writes build output to stderr.
func NewBuilder(cfg BuildConfig, logger *slog.Logger) *Builder {
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"make"}
	}

	return &Builder{
		cfg:    cfg,
		Output: os.Stderr,
		Logger: logger.With(slog.String("component", "builder")),
	}
}

// Build runs the build command once. Any non-zero exit is an error.
func (b *Builder) Build(ctx context.Context, constant int) error {
	b.Logger.InfoContext(ctx, "building",
		slog.Int("constant", constant),
		slog.Any("command", b.cfg.Command),
		slog.String("dir", b.cfg.Dir),
	)

	args := make([]interface{}, 0, len(b.cfg.Command)-1)
	for _, a := range b.cfg.Command[1:] {
		args = append(args, a)
	}

	session := sh.NewSession()
	session.Stdout = b.Output
	session.Stderr = b.Output

	if b.cfg.Dir != "" {
		session.SetDir(b.cfg.Dir)
	}

	if b.cfg.Timeout > 0 {
		session.SetTimeout(b.cfg.Timeout)
	}

	start := time.Now()

	if err := session.Command(b.cfg.Command[0], args...).Run(); err != nil {
		return fmt.Errorf("build %v: %w", b.cfg.Command, err)
	}

	if b.cfg.BinaryPath != "" {
		if _, err := os.Stat(b.cfg.BinaryPath); err != nil {
			return fmt.Errorf("build %v: binary not found at %s",
				b.cfg.Command, b.cfg.BinaryPath)
		}
	}

	b.Logger.InfoContext(ctx, "build finished",
		slog.Int("constant", constant),
		slog.Duration("took", time.Since(start)),
	)

	return nil
}
