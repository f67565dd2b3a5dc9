package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MANGATL_CONFIG", "")
	t.Chdir(t.TempDir())

	c, err := Load(New())
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:8000/translate-images/", c.Endpoint)
	require.Equal(t, "gemini", c.Engine)
	require.Equal(t, 5*1024*1024, c.MaxFileSize)
	require.Equal(t, 30*time.Second, c.FetchTimeout)
	require.Equal(t, "8888", c.Port)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mangatl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: deepseek\nfetch_timeout: 5s\nport: \"9000\"\n"), 0644))

	t.Setenv("MANGATL_CONFIG", path)
	t.Setenv("MANGATL_ENDPOINT", "http://backend:8000/translate-images/")

	c, err := Load(New())
	require.NoError(t, err)

	require.Equal(t, "deepseek", c.Engine)
	require.Equal(t, 5*time.Second, c.FetchTimeout)
	require.Equal(t, "9000", c.Port)
	require.Equal(t, "http://backend:8000/translate-images/", c.Endpoint)
}

func TestLoadRejectsUnknownEngine(t *testing.T) {
	t.Setenv("MANGATL_CONFIG", "")
	t.Setenv("MANGATL_ENGINE", "babelfish")
	t.Chdir(t.TempDir())

	_, err := Load(New())
	require.ErrorContains(t, err, "babelfish")
}
