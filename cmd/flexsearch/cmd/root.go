// Package cmd provides the CLI commands for FlexSearch.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/flexsearch/flexsearch/internal/config"
	"github.com/flexsearch/flexsearch/internal/logging"
	"github.com/flexsearch/flexsearch/pkg/version"
)

var (
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the flexsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flexsearch",
		Short: "Multi-index sharded full-text search engine",
		Long: `FlexSearch is a multi-index, sharded full-text search engine with
near-real-time visibility, optimistic document versioning, and
profile-driven query compilation.

Run 'flexsearch serve' to start the engine.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("flexsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.flexsearch/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the process logger: a rotating JSON file plus, on an
// interactive terminal, a human-readable text handler on stderr.
func setupLogging(*cobra.Command, []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		logger, cleanup, err := setupSplitLogging(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		loggingCleanup = cleanup
		return nil
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// setupSplitLogging keeps the JSON file handler but swaps the stderr side to
// a text handler for interactive use.
func setupSplitLogging(cfg logging.Config) (*slog.Logger, func(), error) {
	fileCfg := cfg
	fileCfg.WriteToStderr = false
	fileLogger, cleanup, err := logging.Setup(fileCfg)
	if err != nil {
		return nil, nil, err
	}

	level := logging.LevelFromString(cfg.Level)
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(teeHandler{fileLogger.Handler(), textHandler}), cleanup, nil
}

// teeHandler fans records out to the file and terminal handlers.
type teeHandler struct {
	file slog.Handler
	term slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.file.Enabled(ctx, level) || h.term.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.file.Enabled(ctx, r.Level) {
		firstErr = h.file.Handle(ctx, r.Clone())
	}
	if h.term.Enabled(ctx, r.Level) {
		if err := h.term.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{h.file.WithAttrs(attrs), h.term.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{h.file.WithGroup(name), h.term.WithGroup(name)}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
