package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/images"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/report"
	"github.com/mangatl/mangatl/internal/session"
	"github.com/mangatl/mangatl/internal/storage"
	"github.com/mangatl/mangatl/internal/theme"
	"github.com/mangatl/mangatl/internal/upload"
)

func newTranslateCmd(a *app) *cobra.Command {
	var outputDir string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "translate [images...]",
		Short: "Translate a batch of page images and save the results as a zip",
		Long: `Uploads the given JPEG/PNG pages to the translation backend in one request
and writes the translated pages to translated.zip in the output directory.

Files that are not JPEG/PNG or exceed the size limit are skipped. Result
images that cannot be fetched are left out of the archive.`,
		Example: `  # Translate two pages with the default engine
  mangatl translate page1.jpg page2.png

  # Use DeepSeek and write the archive to ./out
  mangatl translate --engine deepseek --output ./out chapter1/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			engine, err := models.ParseEngine(cfg.Engine)
			if err != nil {
				return err
			}

			themes := theme.NewStore(cfg.ThemeFile)
			st := theme.StylesFor(themes.Load())
			out := cmd.OutOrStdout()

			files, err := readFiles(args)
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

			added, rejected, err := sess.Add(files)
			if err != nil {
				return err
			}
			for _, r := range rejected {
				fmt.Fprintln(out, st.Warn.Render("skipped "+r.Error()))
			}
			if len(added) == 0 {
				return fmt.Errorf("no acceptable images to translate")
			}

			fmt.Fprintln(out, st.Title.Render(fmt.Sprintf("Uploading %d image(s) with %s...", len(added), engine)))
			results, err := sess.Submit(cmd.Context(), engine)
			if err != nil {
				fmt.Fprintln(out, st.Error.Render(err.Error()))
				writeReport(reportPath, report.Build(cfg.Endpoint, engine, added, rejected, nil, nil, "", err))
				return err
			}

			dl := &archive.FileDownloader{Dir: outputDir}
			exporter := archive.NewExporter(images.NewFetcher(cfg.FetchTimeout, registry), cfg.FetchConcurrency)
			bundle, err := exporter.Export(cmd.Context(), results, dl)
			writeReport(reportPath, report.Build(cfg.Endpoint, engine, added, rejected, results, bundle, dl.Path, err))
			if err != nil {
				fmt.Fprintln(out, st.Error.Render(err.Error()))
				return err
			}

			for _, s := range bundle.Skipped {
				fmt.Fprintln(out, st.Warn.Render("missing "+s.Name))
			}
			if dl.Path == "" {
				fmt.Fprintln(out, st.Warn.Render("No result images could be fetched; nothing was written"))
				return nil
			}
			fmt.Fprintln(out, st.OK.Render(fmt.Sprintf("Translated %d image(s), %d in archive", len(results), len(bundle.Entries))))
			fmt.Fprintln(out, st.Muted.Render("Archive: "+dl.Path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Directory to write translated.zip into")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a YAML report of the run to this path")

	return cmd
}

func readFiles(paths []string) ([]blobs.File, error) {
	files := make([]blobs.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, blobs.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

func writeReport(path string, r report.RunReport) {
	if path == "" {
		return
	}
	if err := report.SaveToYAML(path, r); err != nil {
		slog.Error("Failed to write run report", "path", path, "err", err)
		return
	}
	slog.Info("Run report written", "path", path)
}
