package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/numislab/coincataloger/internal/handlers"
	"github.com/numislab/coincataloger/internal/storage"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog and photographs to the gallery",
		Long: `Starts a JSON API over the catalog and serves the coin photographs.

Metadata edits (PUT /api/coins/{id}) require the EDIT_PASSWORD environment
variable and an "Authorization: Bearer <password>" header. Every edit backs up
the previous catalog first.`,
		Example: `  # Start server on default address :8888
  coincataloger serve

  # Start server on custom address
  coincataloger serve --addr 127.0.0.1:3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Serve.Addr = addr
			}

			catalog, err := storage.Open(cfg.OutputFile, cfg.BackupDir)
			if err != nil {
				return err
			}
			if cfg.EditPassword == "" {
				slog.Warn("EDIT_PASSWORD not set, metadata editing is disabled")
			}

			// Set up routes
			mux := http.NewServeMux()
			handlers.New(catalog, cfg.PicturesDir, cfg.EditPassword).Register(mux)
			mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			server := &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           handlers.SecurityHeaders(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Gallery API available", "addr", cfg.Serve.Addr, "catalog", cfg.OutputFile, "coins", len(catalog.All()))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8888", "Address to listen on")

	return cmd
}
