package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/config"
	"github.com/numislab/coincataloger/internal/report"
	"github.com/numislab/coincataloger/internal/storage"
)

func catalogFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVar(path, "catalog", config.DefaultOutputFile, "Catalog file to read")
}

func (o *rootOptions) catalog(cmd *cobra.Command, path string) (string, error) {
	if cmd.Flags().Changed("catalog") {
		return path, nil
	}
	cfg, err := o.load()
	if err != nil {
		return "", err
	}
	return cfg.OutputFile, nil
}

func newListCmd(root *rootOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the catalog as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.catalog(cmd, catalogPath)
			if err != nil {
				return err
			}
			records, err := storage.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.List(records))
			return nil
		},
	}
	catalogFlag(cmd, &catalogPath)
	return cmd
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.catalog(cmd, catalogPath)
			if err != nil {
				return err
			}
			records, err := storage.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.StatsTables(report.Compute(records)))
			return nil
		},
	}
	catalogFlag(cmd, &catalogPath)
	return cmd
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		catalogPath string
		format      string
		outPath     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as markdown or parquet",
		Example: `  # Markdown to stdout
  coincataloger export

  # Parquet file for analysis tools
  coincataloger export --format parquet --out coins.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if !slices.Contains(report.Formats, format) {
				return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(report.Formats, ", "))
			}
			if format == "parquet" && outPath == "" {
				return fmt.Errorf("--out is required for parquet")
			}

			path, err := root.catalog(cmd, catalogPath)
			if err != nil {
				return err
			}
			records, err := storage.Load(path)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "parquet":
				err = report.WriteParquet(w, records)
			default:
				err = report.WriteMarkdown(w, records, time.Now())
			}
			if err != nil {
				return err
			}

			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d coins to %s\n", len(records), outPath)
			}
			return nil
		},
	}

	catalogFlag(cmd, &catalogPath)
	cmd.Flags().StringVar(&format, "format", "markdown", "Export format (markdown or parquet)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (markdown defaults to stdout)")
	return cmd
}
