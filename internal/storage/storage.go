package storage

import (
	"log/slog"
	"sync"

	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/models"
)

// Releaser frees the resource behind a locally created reference.
type Releaser interface {
	Create(file blobs.File) models.ImageHandle
	Release(ref string)
}

// CollectionStore is the ordered set of locally selected images. It is the
// only component that creates or releases their blob references.
type CollectionStore struct {
	blobs   Releaser
	handles []models.ImageHandle
	index   map[string]int
	mu      sync.RWMutex
}

func New(blobs Releaser) *CollectionStore {
	return &CollectionStore{
		blobs: blobs,
		index: make(map[string]int),
	}
}

// Add creates a handle per file and appends them in order. It returns the
// resulting collection.
func (s *CollectionStore) Add(files ...blobs.File) []models.ImageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range files {
		h := s.blobs.Create(f)
		if _, dup := s.index[h.Ref]; dup {
			slog.Error("Duplicate blob reference refused", "ref", h.Ref, "name", h.Name)
			s.blobs.Release(h.Ref)
			continue
		}
		s.index[h.Ref] = len(s.handles)
		s.handles = append(s.handles, h)
	}
	return s.snapshot()
}

// Remove releases and drops the handle with ref. Unknown refs are ignored.
func (s *CollectionStore) Remove(ref string) ([]models.ImageHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[ref]
	if !ok {
		return s.snapshot(), false
	}

	s.blobs.Release(ref)

	// a fresh slice keeps earlier snapshots intact
	next := make([]models.ImageHandle, 0, len(s.handles)-1)
	next = append(next, s.handles[:i]...)
	next = append(next, s.handles[i+1:]...)
	s.handles = next
	s.reindex()

	return s.snapshot(), true
}

// Clear releases every handle and empties the collection.
func (s *CollectionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.handles {
		s.blobs.Release(h.Ref)
	}
	if len(s.handles) > 0 {
		slog.Debug("Collection cleared", "released", len(s.handles))
	}
	s.handles = nil
	s.index = make(map[string]int)
}

// Get returns the handle with ref.
func (s *CollectionStore) Get(ref string) (models.ImageHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[ref]
	if !ok {
		return models.ImageHandle{}, false
	}
	return s.handles[i], true
}

// Handles returns a copy of the collection in insertion order.
func (s *CollectionStore) Handles() []models.ImageHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *CollectionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}

func (s *CollectionStore) Empty() bool {
	return s.Len() == 0
}

func (s *CollectionStore) snapshot() []models.ImageHandle {
	result := make([]models.ImageHandle, len(s.handles))
	copy(result, s.handles)
	return result
}

func (s *CollectionStore) reindex() {
	s.index = make(map[string]int, len(s.handles))
	for i, h := range s.handles {
		s.index[h.Ref] = i
	}
}
