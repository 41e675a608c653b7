package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/config"
	"github.com/numislab/coincataloger/internal/storage"
	"github.com/numislab/coincataloger/internal/valuation"
)

func newValuateCmd(root *rootOptions) *cobra.Command {
	var (
		catalogPath string
		mode        string
		coinID      int
		noBrowser   bool
	)

	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Attach market valuations to cataloged coins",
		Long: `Walks through cataloged coins, optionally opens a Numista search for each one
and records the price, condition and source you enter.

The previous catalog is backed up before any change is saved. Only the
valuation of the coins you confirm is modified.`,
		Example: `  # Coins without a valuation, menu chosen interactively
  coincataloger valuate

  # Revisit one coin
  coincataloger valuate --mode id --id 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("catalog") {
				cfg.OutputFile = catalogPath
				cfg.BackupDir = catalogBackupDir(catalogPath)
			}

			var opts []valuation.Option
			if noBrowser {
				opts = append(opts, valuation.WithOpener(func(string) error { return fmt.Errorf("browser disabled") }))
			}
			session := valuation.NewSession(cmd.InOrStdin(), cmd.OutOrStdout(), opts...)

			var m valuation.Mode
			if cmd.Flags().Changed("mode") {
				if m, err = valuation.ParseMode(mode); err != nil {
					return err
				}
			} else if m, coinID, err = session.PromptMode(); err != nil {
				return err
			}

			return runValuate(cmd.Context(), cfg, session, m, coinID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", config.DefaultOutputFile, "Catalog file to update")
	cmd.Flags().StringVar(&mode, "mode", "", "Coins to process: all, missing or id (asked when unset)")
	cmd.Flags().IntVar(&coinID, "id", 0, "Coin ID for --mode id")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print search URLs instead of opening a browser")

	return cmd
}

// catalogBackupDir keeps backups next to a catalog given on the command
// line, the way gallery/backups sits next to gallery/coins_metadata.json.
func catalogBackupDir(catalog string) string {
	return filepath.Join(filepath.Dir(catalog), "backups")
}

func runValuate(ctx context.Context, cfg config.Config, session *valuation.Session, mode valuation.Mode, id int, out io.Writer) error {
	records, err := storage.Load(cfg.OutputFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %d coins loaded\n", len(records))

	selected, err := valuation.Select(records, mode, id)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		fmt.Fprintln(out, "\n✓ No coin to process")
		return nil
	}

	result, err := session.Run(ctx, records, selected)
	if err != nil {
		return err
	}

	if !result.Modified() {
		fmt.Fprintln(out, "\n✓ No change made")
		return nil
	}

	backup, err := storage.Backup(cfg.OutputFile, cfg.BackupDir, time.Now())
	if err != nil {
		return err
	}
	if backup != "" {
		fmt.Fprintf(out, "✓ Backup created: %s\n", backup)
	}
	if err := storage.Write(ctx, result.Records, cfg.OutputFile); err != nil {
		return fmt.Errorf("failed to save valuations: %w", err)
	}
	fmt.Fprintf(out, "✓ %d valuations saved\n", result.Added)

	stats := valuation.Count(result.Records)
	fmt.Fprintln(out, "\nStatistics:")
	fmt.Fprintf(out, "  Total coins:        %d\n", stats.Total)
	fmt.Fprintf(out, "  With valuation:     %d\n", stats.Valued)
	fmt.Fprintf(out, "  Without valuation:  %d\n", stats.Missing)
	return nil
}
