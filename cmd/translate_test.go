package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateWritesArchive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/translate-images/", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(10<<20))
		assert.Equal(t, "deepseek", r.FormValue("translator"))
		assert.Len(t, r.MultipartForm.File["files"], 1)
		_, _ = w.Write([]byte(`{"0":{"imageUrl":"/out/p1.png","name":"p1.png"}}`))
	})
	mux.HandleFunc("/out/p1.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("translated"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	themeFile := filepath.Join(dir, "theme.yaml")
	require.NoError(t, os.WriteFile(themeFile, []byte("theme: light\n"), 0644))

	page := filepath.Join(dir, "p1.png")
	require.NoError(t, os.WriteFile(page, []byte("\x89PNG\r\n\x1a\nrest"), 0644))
	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0644))

	t.Setenv("MANGATL_CONFIG", "")
	t.Chdir(dir)
	outDir := filepath.Join(dir, "out")

	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{
		"translate",
		"--endpoint", srv.URL + "/translate-images/",
		"--engine", "deepseek",
		"--theme-file", themeFile,
		"--output", outDir,
		"--report", filepath.Join(outDir, "run.yaml"),
		page, notImage,
	})

	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, stdout.String(), "notes.txt")

	zr, err := zip.OpenReader(filepath.Join(outDir, "translated.zip"))
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	require.Equal(t, "p1.png", zr.File[0].Name)

	report, err := os.ReadFile(filepath.Join(outDir, "run.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(report), "engine: deepseek")
	require.Contains(t, string(report), "name: notes.txt")
}

func TestTranslateFailsWhenNothingAcceptable(t *testing.T) {
	dir := t.TempDir()
	themeFile := filepath.Join(dir, "theme.yaml")
	require.NoError(t, os.WriteFile(themeFile, []byte("theme: dark\n"), 0644))
	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0644))

	t.Setenv("MANGATL_CONFIG", "")
	t.Chdir(dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"translate", "--theme-file", themeFile, notImage})

	require.ErrorContains(t, root.ExecuteContext(context.Background()), "no acceptable images")
}

func TestThemeCommandPersists(t *testing.T) {
	dir := t.TempDir()
	themeFile := filepath.Join(dir, "theme.yaml")
	require.NoError(t, os.WriteFile(themeFile, []byte("theme: light\n"), 0644))
	t.Setenv("MANGATL_CONFIG", "")
	t.Chdir(dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"theme", "toggle", "--theme-file", themeFile})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(themeFile)
	require.NoError(t, err)
	require.Equal(t, "theme: dark\n", string(data))
}
