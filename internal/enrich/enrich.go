// Package enrich runs the full enrichment sequence against a document
// file: page overview, section summaries, then label repair. Shared by
// the CLI and watch mode.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhalloran/pagesense/internal/announce"
	"github.com/dhalloran/pagesense/internal/capability"
	"github.com/dhalloran/pagesense/internal/dom"
	"github.com/dhalloran/pagesense/internal/pipeline"
)

// commands in execution order. Overview first so the block lands at
// the very top before notes shift the layout.
var commands = []pipeline.Command{
	pipeline.CommandOverview,
	pipeline.CommandSectionSummaries,
	pipeline.CommandFixLabels,
}

// File loads inPath, runs all enrichment commands sequentially and
// writes the enriched document to outPath. A command aborting (for
// example no ambiguous labels) is not an error; capability
// unavailability is.
func File(ctx context.Context, client capability.Client, inPath, outPath string, opts pipeline.Options, log *slog.Logger) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	doc, err := dom.Load(f, filepath.Base(inPath))
	f.Close()
	if err != nil {
		return err
	}

	ann := announce.New(doc, log)
	runner := pipeline.NewRunner(client, doc, ann, log, opts)

	for _, cmd := range commands {
		run, err := runner.Start(ctx, cmd)
		if err != nil {
			// Runs are strictly sequential here, so an active run is a
			// programming error worth surfacing.
			return fmt.Errorf("start %s: %w", cmd, err)
		}
		select {
		case <-run.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		snap := run.Snapshot()
		if snap.Status == pipeline.StatusUnavailable {
			return capability.ErrUnavailable
		}
		log.Info("command finished",
			"file", inPath,
			"command", cmd,
			"status", snap.Status,
			"succeeded", snap.Counters.Succeeded,
		)
	}

	html, err := doc.HTML()
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// OutputPath maps an input filename into outDir, always with an .html
// extension (markdown inputs are rendered).
func OutputPath(inPath, outDir string) string {
	base := filepath.Base(inPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outDir, name+".enriched.html")
}

// IsFatal reports whether a file-level enrichment error should stop a
// batch (capability gone) rather than skip the file.
func IsFatal(err error) bool {
	return errors.Is(err, capability.ErrUnavailable)
}
