package main

import (
	"context"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/weiihann/tunesweep/config"
	"github.com/weiihann/tunesweep/harness"
	"github.com/weiihann/tunesweep/header"
	"github.com/weiihann/tunesweep/report"
	"github.com/weiihann/tunesweep/sweep"
	"github.com/weiihann/tunesweep/workload"
)

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath   string
		buildCommand string
		outputJSON   bool
		over         config.Config
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tuning-constant sweep",
		Long: `Rewrite the tuning constant, rebuild, and measure every input size for
every constant. The sweep stops at the first build, generation, execution or
round-trip failure. Settings come from built-in defaults, then --config, then
explicit flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()

			if configPath != "" {
				if err := config.Load(configPath, &cfg); err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("build-command") {
				over.BuildCommand = strings.Fields(buildCommand)
			}

			applyFlags(cmd, &cfg, over)

			results, err := runSweep(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return report.GenerateJSON(out, results)
			}

			return report.Generate(out, results)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"Path to a TOML sweep configuration")
	flags.StringVar(&over.Header, "header", "",
		"Header holding the tuning-constant declaration")
	flags.StringVar(&over.Marker, "marker", "",
		"Substring identifying the declaration line")
	flags.StringVar(&over.Executable, "executable", "",
		"Encrypt/decrypt executable under test")
	flags.StringVar(&buildCommand, "build-command", "",
		"Command that rebuilds the executable (default \"make\")")
	flags.StringVar(&over.BuildDir, "build-dir", "",
		"Directory the build command runs in")
	flags.StringVar(&over.Log, "log", "",
		"CSV result log, overwritten at start")
	flags.StringVar(&over.Input, "input", "",
		"Generated input file")
	flags.StringVar(&over.WorkDir, "work-dir", "",
		"Directory for transient encrypted/decrypted files")
	flags.IntSliceVar(&over.Constants, "constants", nil,
		"Tuning-constant candidates (e.g. 32,64,128)")
	flags.StringSliceVar(&over.Sizes, "sizes", nil,
		"Input sizes in bytes, human sizes allowed (e.g. 1,1KB,1MiB)")
	flags.Int64Var(&over.UnitBytes, "unit-bytes", 0,
		"Bytes per work unit for the block count column (0 = omit)")
	flags.Int64Var(&over.Seed, "seed", 0,
		"Random seed for inputs and keys (0 = use current time)")
	flags.BoolVar(&over.ReuseInputs, "reuse-inputs", false,
		"Generate one input per size up front and reuse it for every constant")
	flags.BoolVar(&over.KeepHeader, "keep-header", false,
		"Leave the last rewritten header instead of restoring the original")
	flags.DurationVar(&over.Timeout, "timeout", 0,
		"Limit for each build and executable invocation (0 = none)")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the summary as JSON instead of a table")

	return cmd
}

// applyFlags copies every explicitly set flag from over into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config, over config.Config) {
	set := map[string]func(){
		"header":        func() { cfg.Header = over.Header },
		"marker":        func() { cfg.Marker = over.Marker },
		"executable":    func() { cfg.Executable = over.Executable },
		"build-command": func() { cfg.BuildCommand = over.BuildCommand },
		"build-dir":     func() { cfg.BuildDir = over.BuildDir },
		"log":           func() { cfg.Log = over.Log },
		"input":         func() { cfg.Input = over.Input },
		"work-dir":      func() { cfg.WorkDir = over.WorkDir },
		"constants":     func() { cfg.Constants = over.Constants },
		"sizes":         func() { cfg.Sizes = over.Sizes },
		"unit-bytes":    func() { cfg.UnitBytes = over.UnitBytes },
		"seed":          func() { cfg.Seed = over.Seed },
		"reuse-inputs":  func() { cfg.ReuseInputs = over.ReuseInputs },
		"keep-header":   func() { cfg.KeepHeader = over.KeepHeader },
		"timeout":       func() { cfg.Timeout = over.Timeout },
	}

	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

func runSweep(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
) (results []harness.Result, err error) {
	sizes, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	release, err := header.Lock(cfg.Header)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = multierr.Append(err, release())
	}()

	snapshot, err := header.Capture(cfg.Header, cfg.Marker)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := mrand.New(mrand.NewSource(seed))

	logger.InfoContext(ctx, "starting tunesweep",
		slog.String("header", cfg.Header),
		slog.String("marker", cfg.Marker),
		slog.String("executable", cfg.Executable),
		slog.String("log", cfg.Log),
		slog.Int64("seed", seed),
	)

	resultLog, err := report.CreateCSVLog(cfg.Log, cfg.UnitBytes > 0)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = multierr.Append(err, resultLog.Close())
	}()

	builder := harness.NewBuilder(harness.BuildConfig{
		Dir:        cfg.BuildDir,
		Command:    cfg.BuildCommand,
		BinaryPath: cfg.Executable,
		Timeout:    cfg.Timeout,
	}, logger)

	runner := harness.NewRunner(cfg.Executable, cfg.WorkDir, rng, logger)
	runner.Timeout = cfg.Timeout

	s := sweep.New(sweep.Config{
		Constants:   cfg.Constants,
		Sizes:       sizes,
		UnitBytes:   cfg.UnitBytes,
		InputPath:   cfg.Input,
		ReuseInputs: cfg.ReuseInputs,
		KeepHeader:  cfg.KeepHeader,
	}, snapshot, builder, workload.NewGenerator(rng), runner, resultLog, logger)

	s.OnResult = func(r harness.Result) {
		results = append(results, r)
	}

	if err := s.Run(ctx); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "result log written",
		slog.String("path", cfg.Log),
		slog.Int("rows", resultLog.Rows()),
	)

	return results, nil
}
