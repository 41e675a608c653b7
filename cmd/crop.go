package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/console"
	"github.com/numislab/coincataloger/internal/crop"
)

func newCropCmd(root *rootOptions) *cobra.Command {
	var (
		size        int
		workers     int
		dryRun      bool
		noRecursive bool
	)

	cmd := &cobra.Command{
		Use:   "crop [directory]",
		Short: "Center-crop coin photographs to squares",
		Long: `Rotates each photograph according to its EXIF orientation, then replaces it with
a square cut from its center. Photographs smaller than the square are reported
and left untouched.`,
		Example: `  # Crop ./pictures and its subdirectories to 1848x1848
  coincataloger crop

  # Show dimensions only
  coincataloger crop photos/2025-11-02 --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			dir := cfg.PicturesDir
			if len(args) == 1 {
				dir = args[0]
			}
			opts := crop.Options{
				Size:       cfg.Crop.Size,
				Quality:    cfg.Crop.Quality,
				Workers:    cfg.Crop.Workers,
				Recursive:  !noRecursive,
				DryRun:     dryRun,
				Extensions: cfg.Extensions,
			}
			if cmd.Flags().Changed("size") {
				opts.Size = size
			}
			if cmd.Flags().Changed("workers") {
				opts.Workers = workers
			}
			if opts.Size <= 0 {
				return errors.New("--size must be positive")
			}

			paths, err := crop.Find(dir, opts.Recursive, opts.Extensions)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintf(out, "No images found in %s\n", dir)
				return nil
			}

			prefix := ""
			if opts.DryRun {
				prefix = "[DRY RUN] "
			}
			fmt.Fprintf(out, "%sProcessing %d images...\n\n", prefix, len(paths))

			ok := color.New(color.FgGreen)
			fail := color.New(color.FgRed)
			if !console.IsTerminal(out) {
				ok.DisableColor()
				fail.DisableColor()
			}

			var mu sync.Mutex
			summary, err := crop.Run(cmd.Context(), paths, opts, func(res crop.FileResult) {
				mu.Lock()
				defer mu.Unlock()

				name := filepath.Base(res.Path)
				switch {
				case res.Err != nil:
					fmt.Fprintf(out, "%s%s\n", prefix, fail.Sprintf("✗ %s: %v", name, res.Err))
				case opts.DryRun:
					fmt.Fprintf(out, "%s%s: %dx%d\n", prefix, name, res.Width, res.Height)
				default:
					fmt.Fprintf(out, "%s\n", ok.Sprintf("✓ %s: %dx%d → %dx%d", name, res.Width, res.Height, opts.Size, opts.Size))
				}
			})
			if err != nil {
				return err
			}

			if !opts.DryRun {
				fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 60))
				fmt.Fprintf(out, "Done: %d succeeded, %d errors\n", summary.Succeeded, summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "Side of the square in pixels (default from config, 1848)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Images processed in parallel (default from config, 4)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print dimensions without modifying files")
	cmd.Flags().BoolVar(&noRecursive, "no-recursive", false, "Do not descend into subdirectories")

	return cmd
}
