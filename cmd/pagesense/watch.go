package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhalloran/pagesense/internal/config"
	"github.com/dhalloran/pagesense/internal/enrich"
	"github.com/dhalloran/pagesense/internal/watcher"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and enrich documents as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch()
		},
	}
}

func runWatch() error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, dir := range []string{cfg.WatchInput, cfg.WatchOutput, cfg.WatchArchive} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := newCapabilityClient(ctx, cfg)
	if err != nil {
		return err
	}
	opts := cfg.PipelineOptions()

	handler := func(ctx context.Context, path string) error {
		outPath := enrich.OutputPath(path, cfg.WatchOutput)
		if err := enrich.File(ctx, client, path, outPath, opts, log); err != nil {
			return err
		}
		// Move the processed original out of the input dir so a
		// restart does not re-enrich it.
		archived := filepath.Join(cfg.WatchArchive, filepath.Base(path))
		if err := os.Rename(path, archived); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		log.Info("document enriched", "input", path, "output", outPath)
		return nil
	}

	w, err := watcher.New(cfg.WatchInput, handler, log, cfg.WatchMaxConcurrent)
	if err != nil {
		return err
	}
	defer w.Stop()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
