// Package blobs allocates revocable references for locally selected image
// bytes, the way a browser hands out object URLs for dropped files.
package blobs

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mangatl/mangatl/internal/models"
)

// Scheme prefixes every reference minted by a Registry.
const Scheme = "blob:"

// File is a raw file picked by the user.
type File struct {
	Name string
	Data []byte
}

// Stats counts allocations over the registry's lifetime.
type Stats struct {
	Created  int
	Released int
	Live     int
}

// Registry maps live blob references to their bytes.
type Registry struct {
	mu       sync.RWMutex
	blobs    map[string][]byte
	created  int
	released int
}

func NewRegistry() *Registry {
	return &Registry{
		blobs: make(map[string][]byte),
	}
}

// Create binds file's bytes to a fresh reference and returns the handle.
func (r *Registry) Create(file File) models.ImageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref := Scheme + uuid.NewString()
	for {
		if _, taken := r.blobs[ref]; !taken {
			break
		}
		ref = Scheme + uuid.NewString()
	}

	data := file.Data
	if data == nil {
		data = []byte{}
	}
	r.blobs[ref] = data
	r.created++

	return models.ImageHandle{
		Ref:     ref,
		Name:    file.Name,
		Payload: data,
	}
}

// Release invalidates ref. Releasing an unknown or already released
// reference is logged and otherwise ignored.
func (r *Registry) Release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blobs[ref]; !ok {
		slog.Warn("Release of unknown blob reference ignored", "ref", ref)
		return
	}
	delete(r.blobs, ref)
	r.released++
}

// Open returns the bytes behind a live reference.
func (r *Registry) Open(ref string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.blobs[ref]
	return data, ok
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Created:  r.created,
		Released: r.released,
		Live:     len(r.blobs),
	}
}

// IsBlobRef reports whether ref was minted by a Registry.
func IsBlobRef(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}
