package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/cataloging"
	"github.com/numislab/coincataloger/internal/config"
	"github.com/numislab/coincataloger/internal/console"
	"github.com/numislab/coincataloger/internal/models"
	"github.com/numislab/coincataloger/internal/pairing"
	"github.com/numislab/coincataloger/internal/providers"
	"github.com/numislab/coincataloger/internal/recognition"
	"github.com/numislab/coincataloger/internal/storage"
)

type analyzeOptions struct {
	limit int
	merge bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		opts        analyzeOptions
		picturesDir string
		outputFile  string
		provider    string
		model       string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Identify every coin photographed in the pictures directory",
		Long: `Pairs the photographs of the pictures directory two by two in file-name order
(face, then reverse), asks the configured vision model to identify each coin and
writes the whole catalog to the output file.

A coin that cannot be identified is kept in the catalog with an error message;
the run never stops on a single failure. Interrupting the run writes nothing.`,
		Example: `  # Analyze ./pictures with the default provider
  coincataloger analyze

  # Try the first 5 coins with a local model
  coincataloger analyze --provider ollama --limit 5

  # Re-analyze while keeping valuations already entered
  coincataloger analyze --merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("pictures") {
				cfg.PicturesDir = picturesDir
			}
			if flags.Changed("output") {
				cfg.OutputFile = outputFile
			}
			if flags.Changed("provider") {
				cfg.Provider = provider
			}
			if flags.Changed("model") {
				cfg.Model = model
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			p, err := recognition.NewProvider(cfg)
			if err != nil {
				return err
			}

			_, err = runAnalyze(cmd.Context(), cfg, p, opts, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVar(&picturesDir, "pictures", config.DefaultPicturesDir, "Directory holding the coin photographs")
	cmd.Flags().StringVarP(&outputFile, "output", "o", config.DefaultOutputFile, "Catalog file to write")
	cmd.Flags().StringVar(&provider, "provider", config.DefaultProvider, "LLM provider (anthropic, openai, ollama or gemini)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to provider's default)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Analyze only the first N coins (0 for all)")
	cmd.Flags().BoolVar(&opts.merge, "merge", false, "Merge into the existing catalog instead of replacing it")

	return cmd
}

// runAnalyze executes one batch. Nothing is written unless the whole batch
// completes.
func runAnalyze(ctx context.Context, cfg config.Config, provider providers.Provider, opts analyzeOptions, out io.Writer) ([]models.CoinRecord, error) {
	logger := slog.Default().With("run_id", uuid.NewString())

	refs, err := pairing.Discover(cfg.PicturesDir, cfg.Extensions)
	if err != nil {
		return nil, err
	}

	units, dropped := pairing.Pair(refs)
	for _, ref := range dropped {
		fmt.Fprintf(out, "Warning: odd number of photos, %s has no reverse and is skipped\n", ref)
	}
	if opts.limit > 0 && opts.limit < len(units) {
		logger.Info("Limiting analysis", "limit", opts.limit, "available", len(units))
		units = units[:opts.limit]
	}
	if len(units) == 0 {
		logger.Warn("No complete coin to analyze, catalog left unchanged", "pictures", cfg.PicturesDir, "images", len(refs))
		fmt.Fprintln(out, "Nothing to analyze: no face/reverse pair found")
		return nil, nil
	}

	logger.Info("Starting analysis",
		"pictures", cfg.PicturesDir,
		"coins", len(units),
		"provider", cfg.Provider,
		"model", cfg.ResolvedModel(),
		"prompt_version", recognition.PromptVersion,
	)

	service, err := cataloging.NewService(
		recognition.NewClient(provider, cfg),
		cataloging.DirReader(cfg.PicturesDir),
		cataloging.WithReporter(console.NewReporter(out, cfg.CostPerCoin)),
		cataloging.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	result, err := service.Run(ctx, units)
	if err != nil {
		logger.Warn("Analysis interrupted, nothing written", "err", err)
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}

	records := result.Records
	if opts.merge {
		previous, err := storage.Load(cfg.OutputFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		records = storage.Merge(previous, records)
	}

	if err := storage.Write(ctx, records, cfg.OutputFile); err != nil {
		return nil, fmt.Errorf("failed to save catalog: %w", err)
	}

	logger.Info("Analysis complete", "succeeded", result.Summary.Succeeded, "failed", result.Summary.Failed, "output", cfg.OutputFile)
	fmt.Fprintf(out, "Results saved to: %s\n", cfg.OutputFile)
	return records, nil
}
