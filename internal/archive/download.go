package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileDownloader saves archives into Dir.
type FileDownloader struct {
	Dir string

	// Path is set to the written file after a successful Deliver.
	Path string
}

func (d *FileDownloader) Deliver(filename string, data []byte) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	target := filepath.Join(dir, filepath.Base(filename))
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	d.Path = target
	return nil
}
