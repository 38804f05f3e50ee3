package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flexsearch/flexsearch/internal/lock"
	"github.com/flexsearch/flexsearch/internal/script"
	"github.com/flexsearch/flexsearch/internal/services"
	"github.com/flexsearch/flexsearch/pkg/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FlexSearch engine",
		Long: `Starts the engine: restores persisted indexes, starts the write
pipeline and the per-index commit/refresh schedulers, and runs until
interrupted. The data root is locked exclusively for the lifetime of
the process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dataLock := lock.New(cfg.Paths.DataRoot)
	acquired, err := dataLock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("data root %s is locked by another flexsearch process", cfg.Paths.DataRoot)
	}
	defer func() { _ = dataLock.Unlock() }()

	engine, err := services.NewEngine(cfg, script.NewRegistry())
	if err != nil {
		return err
	}

	slog.Info("engine_started",
		slog.String("version", version.Short()),
		slog.String("data_root", cfg.Paths.DataRoot),
		slog.Int("write_workers", cfg.Write.Workers),
		slog.Int("queue_capacity", cfg.Write.QueueCapacity))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutdown_signal", slog.String("signal", sig.String()))
	engine.ShutDown()
	slog.Info("engine_stopped")
	return nil
}
