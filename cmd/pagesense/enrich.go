package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhalloran/pagesense/internal/config"
	"github.com/dhalloran/pagesense/internal/enrich"
)

func enrichCmd() *cobra.Command {
	var (
		outDir      string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "enrich [files...]",
		Short: "Enrich document files and write the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnrich(cmd.Context(), args, outDir, concurrency)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "files enriched in parallel")
	return cmd
}

func runEnrich(ctx context.Context, files []string, outDir string, concurrency int) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newCapabilityClient(ctx, cfg)
	if err != nil {
		return err
	}
	opts := cfg.PipelineOptions()

	// Each file is its own document and gets its own pipeline run;
	// bounded fan-out across files never races runs on one document.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, file := range files {
		g.Go(func() error {
			outPath := enrich.OutputPath(file, outDir)
			if err := enrich.File(gctx, client, file, outPath, opts, log); err != nil {
				if enrich.IsFatal(err) {
					return err
				}
				log.Error("enrichment failed", "file", file, "error", err)
				return nil
			}
			fmt.Printf("enriched %s -> %s\n", file, outPath)
			return nil
		})
	}
	return g.Wait()
}
