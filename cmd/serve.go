package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/handlers"
	"github.com/mangatl/mangatl/internal/images"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/session"
	"github.com/mangatl/mangatl/internal/storage"
	"github.com/mangatl/mangatl/internal/theme"
	"github.com/mangatl/mangatl/internal/upload"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local session API for the translator UI",
		Long: `Starts the session API the translator web UI talks to.

The API keeps one image session: images are added and removed while
collecting, submitted once to the translation backend, and the results
can be downloaded as a zip archive.`,
		Example: `  # Start server on default port 8888
  mangatl serve

  # Start server on custom port against a remote backend
  mangatl serve --port 3000 --endpoint http://gpu-box:8000/translate-images/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			engine, err := models.ParseEngine(cfg.Engine)
			if err != nil {
				return err
			}

			registry := blobs.NewRegistry()
			sess := session.New(
				storage.New(registry),
				upload.NewClient(cfg.Endpoint, cfg.UploadTimeout),
				session.Options{Engine: engine, MaxFileSize: cfg.MaxFileSize},
			)
			defer sess.Close()

			themes := theme.NewStore(cfg.ThemeFile)
			slog.Info("Theme loaded", "theme", themes.Load(), "path", cfg.ThemeFile)

			handler := handlers.New(handlers.Options{
				Session:       sess,
				Blobs:         registry,
				Exporter:      archive.NewExporter(images.NewFetcher(cfg.FetchTimeout, registry), cfg.FetchConcurrency),
				Themes:        themes,
				ThumbnailSize: cfg.ThumbnailSize,
				MaxPartSize:   int64(cfg.MaxFileSize),
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Translator session API available", "addr", addr, "url", "http://localhost"+addr, "endpoint", cfg.Endpoint)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
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

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default 8888)")
	if err := a.v.BindPFlag("port", cmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}

	return cmd
}
