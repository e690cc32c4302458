package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhalloran/pagesense/internal/capability"
	"github.com/dhalloran/pagesense/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:   "pagesense",
		Short: "Enrich HTML documents with generated accessibility aids",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(enrichCmd())
	root.AddCommand(watchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

// newCapabilityClient builds the configured generation backend.
func newCapabilityClient(ctx context.Context, cfg config.Config) (capability.Client, error) {
	switch cfg.Backend {
	case "claude":
		return capability.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	case "gemini":
		return capability.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "fake":
		return capability.NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", cfg.Backend)
	}
}
