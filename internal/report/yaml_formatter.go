package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mangatl/mangatl/internal/archive"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/selection"
)

// RunConfig represents the configuration section of the run YAML
type RunConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Engine    string `yaml:"engine"`
	Timestamp string `yaml:"timestamp"`
}

// RunResult represents a single translated image
type RunResult struct {
	Name     string `yaml:"name"`
	ImageURL string `yaml:"imageurl"`
}

// Skipped represents an input or output left out of the run
type Skipped struct {
	Name   string `yaml:"name"`
	Reason string `yaml:"reason"`
}

// RunReport represents the complete record of one translate run
type RunReport struct {
	Config   RunConfig   `yaml:"config"`
	Uploaded []string    `yaml:"uploaded"`
	Rejected []Skipped   `yaml:"rejected,omitempty"`
	Results  []RunResult `yaml:"results"`
	Archive  string      `yaml:"archive,omitempty"`
	Entries  []string    `yaml:"entries,omitempty"`
	Missing  []Skipped   `yaml:"missing,omitempty"`
	Error    string      `yaml:"error,omitempty"`
}

// Build assembles a report from the pieces of a run. bundle may be nil when
// the run never reached the export.
func Build(endpoint string, engine models.Engine, uploaded []models.ImageHandle, rejected []selection.Rejection,
	results []models.ImageHandle, bundle *archive.Bundle, archivePath string, runErr error) RunReport {
	r := RunReport{
		Config: RunConfig{
			Endpoint:  endpoint,
			Engine:    string(engine),
			Timestamp: time.Now().Format("2006-01-02_15-04-05"),
		},
		Uploaded: make([]string, 0, len(uploaded)),
		Results:  make([]RunResult, 0, len(results)),
		Archive:  archivePath,
	}

	for _, h := range uploaded {
		r.Uploaded = append(r.Uploaded, h.Name)
	}
	for _, rej := range rejected {
		r.Rejected = append(r.Rejected, Skipped{Name: rej.Name, Reason: rej.Detail})
	}
	for _, h := range results {
		r.Results = append(r.Results, RunResult{Name: h.Name, ImageURL: h.Ref})
	}
	if bundle != nil {
		r.Entries = bundle.Entries
		for _, s := range bundle.Skipped {
			r.Missing = append(r.Missing, Skipped{Name: s.Name, Reason: s.Err.Error()})
		}
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// SaveToYAML writes the report to path, creating parent directories.
func SaveToYAML(path string, r RunReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}

	return nil
}
