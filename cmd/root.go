package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "coincataloger",
		Short: "Coin photo cataloging with vision-capable LLMs",
		Long: `Coincataloger turns face/reverse photographs of coins into a structured catalog.

Photos are paired in file-name order, each pair is sent to a vision model and the
answer is stored as country, currency, value, year and notes. Companion commands
crop raw photos, attach market valuations and serve the catalog to a gallery.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default: $XDG_CONFIG_HOME/coincataloger/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newValuateCmd(opts))
	cmd.AddCommand(newCropCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// load reads the configuration file and environment. Commands overlay
// their own flags before validating.
func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}
