// Package session coordinates the image collection, the upload and the
// switch between collecting, processing and showing results.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mangatl/mangatl/internal/blobs"
	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/selection"
	"github.com/mangatl/mangatl/internal/storage"
)

// Uploader submits a batch and returns the result handles.
type Uploader interface {
	Submit(ctx context.Context, handles []models.ImageHandle, engine models.Engine) ([]models.ImageHandle, error)
}

// Outcome is delivered once a submission settles.
type Outcome struct {
	Results []models.ImageHandle
	Err     error
}

// Options tune a Session.
type Options struct {
	Engine      models.Engine
	MaxFileSize int
}

// Session owns one user's batch from selection through results.
type Session struct {
	mu       sync.Mutex
	state    models.SessionState
	store    *storage.CollectionStore
	uploader Uploader
	results  []models.ImageHandle
	engine   models.Engine
	maxSize  int
	lastErr  string

	// closed when the current submission has settled
	inflight chan struct{}
}

func New(store *storage.CollectionStore, uploader Uploader, opts Options) *Session {
	engine := opts.Engine
	if engine == "" {
		engine = models.DefaultEngine
	}
	return &Session{
		state:    models.StateCollecting,
		store:    store,
		uploader: uploader,
		engine:   engine,
		maxSize:  opts.MaxFileSize,
	}
}

// Add filters files and appends the accepted ones. Rejected files are
// reported, never fatal.
func (s *Session) Add(files []blobs.File) ([]models.ImageHandle, []selection.Rejection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return nil, nil, err
	}

	accepted, rejected := selection.Filter(files, s.maxSize)
	for _, r := range rejected {
		slog.Warn("File rejected", "name", r.Name, "size", r.Size, "reason", r.Reason)
	}
	return s.store.Add(accepted...), rejected, nil
}

// Remove drops one image by reference.
func (s *Session) Remove(ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return false, err
	}
	_, ok := s.store.Remove(ref)
	return ok, nil
}

// Clear drops every collected image.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editable(); err != nil {
		return err
	}
	s.store.Clear()
	return nil
}

// SetEngine picks the engine used by later submissions.
func (s *Session) SetEngine(engine models.Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == models.StateProcessing {
		return ErrBusy
	}
	s.engine = engine
	return nil
}

// SubmitAsync moves the session to Processing and uploads the collection in
// the background. The returned channel receives exactly one Outcome after
// the session has left Processing. An empty engine uses the session's.
func (s *Session) SubmitAsync(ctx context.Context, engine models.Engine) (<-chan Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Transition(s.state, EventSubmit)
	if err != nil {
		return nil, err
	}
	if s.store.Empty() {
		return nil, ErrEmptyCollection
	}
	if engine != "" {
		s.engine = engine
	}

	s.state = next
	s.lastErr = ""
	handles := s.store.Handles()
	engine = s.engine

	slog.Info("Submitting images", "count", len(handles), "engine", engine)

	done := make(chan Outcome, 1)
	settled := make(chan struct{})
	s.inflight = settled
	go func() {
		results, err := s.uploader.Submit(ctx, handles, engine)
		s.complete(results, err)
		close(settled)
		done <- Outcome{Results: results, Err: err}
		close(done)
	}()
	return done, nil
}

// Submit uploads the collection and waits for the outcome.
func (s *Session) Submit(ctx context.Context, engine models.Engine) ([]models.ImageHandle, error) {
	done, err := s.SubmitAsync(ctx, engine)
	if err != nil {
		return nil, err
	}
	out := <-done
	return out.Results, out.Err
}

func (s *Session) complete(results []models.ImageHandle, uploadErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uploadErr != nil {
		s.state, _ = Transition(s.state, EventResponseError)
		s.lastErr = uploadErr.Error()
		slog.Error("Error uploading images", "err", uploadErr, "kept", s.store.Len())
		return
	}

	s.state, _ = Transition(s.state, EventResponseOK)
	// previews are superseded by the results
	s.store.Clear()
	s.results = results
	slog.Info("Results ready", "count", len(results))
}

// Reset returns to an empty Collecting state. Result handles are remote and
// are dropped without release.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Transition(s.state, EventReset)
	if err != nil {
		return err
	}
	s.store.Clear()
	s.results = nil
	s.lastErr = ""
	s.state = next
	return nil
}

// Close releases every local resource. A submission in flight is allowed to
// settle first so its handles stay valid for the upload. The session must
// not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	inflight := s.inflight
	s.mu.Unlock()

	if inflight != nil {
		slog.Debug("Waiting for submission to settle before close")
		<-inflight
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Clear()
	s.results = nil
}

func (s *Session) State() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handles returns what the current view shows: the local collection while
// collecting or processing, the results afterwards.
func (s *Session) Handles() []models.ImageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles()
}

// Results returns the server-returned handles, if any.
func (s *Session) Results() []models.ImageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ImageHandle, len(s.results))
	copy(out, s.results)
	return out
}

// CanSubmit reports whether a submission would be accepted now.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == models.StateCollecting && !s.store.Empty()
}

func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionSnapshot{
		State:     s.state,
		Engine:    s.engine,
		Images:    s.handles(),
		LastError: s.lastErr,
	}
}

func (s *Session) handles() []models.ImageHandle {
	if s.state == models.StateResults {
		out := make([]models.ImageHandle, len(s.results))
		copy(out, s.results)
		return out
	}
	return s.store.Handles()
}

func (s *Session) editable() error {
	switch s.state {
	case models.StateProcessing:
		return ErrBusy
	case models.StateResults:
		return ErrNotCollecting
	}
	return nil
}
