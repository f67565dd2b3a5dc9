// Package theme keeps the light/dark preference.
package theme

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

func Parse(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("invalid theme %q (expected light or dark)", s)
}

func (t Theme) Toggled() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

type file struct {
	Theme Theme `yaml:"theme"`
}

// Store is the single owner of the theme preference. It reads the persisted
// value once on Load and rewrites it on every change.
type Store struct {
	path    string
	current Theme
	mu      sync.RWMutex

	// PrefersDark is consulted when nothing is persisted.
	PrefersDark func() bool
}

func NewStore(path string) *Store {
	return &Store{
		path:        path,
		current:     Light,
		PrefersDark: lipgloss.HasDarkBackground,
	}
}

// DefaultPath is the theme file under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "mangatl", "theme.yaml")
}

// Load reads the persisted preference, falling back to the platform's
// preferred scheme when none is stored.
func (s *Store) Load() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Ignoring unreadable theme file", "path", s.path, "err", err)
		}
		t = s.preferred()
	}
	s.current = t
	return t
}

func (s *Store) Current() Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set changes and persists the preference.
func (s *Store) Set(t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(t); err != nil {
		return err
	}
	s.current = t
	return nil
}

// Toggle flips and persists the preference.
func (s *Store) Toggle() (Theme, error) {
	next := s.Current().Toggled()
	if err := s.Set(next); err != nil {
		return "", err
	}
	return next, nil
}

func (s *Store) preferred() Theme {
	if s.PrefersDark != nil && s.PrefersDark() {
		return Dark
	}
	return Light
}

func (s *Store) read() (Theme, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("failed to parse theme file: %w", err)
	}
	return Parse(string(f.Theme))
}

func (s *Store) write(t Theme) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create theme directory: %w", err)
	}
	data, err := yaml.Marshal(file{Theme: t})
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write theme file: %w", err)
	}
	return nil
}
