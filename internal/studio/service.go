package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"furnishAi/internal/adjust"
	"furnishAi/internal/events"
	"furnishAi/internal/llm"
	"furnishAi/internal/media"
	"furnishAi/internal/overlay"
	"furnishAi/internal/storage"
	"furnishAi/internal/vision"
)

var (
	// ErrInvalidInput wraps user errors; the message after the prefix is shown to the user.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy rejects a blend while another one runs for the same session.
	ErrBusy = errors.New("a visualization is already in progress")
	// ErrSuperseded is returned to a suggestion request replaced by a newer one.
	ErrSuperseded = errors.New("request superseded by a newer one")
	// ErrNotOpen means the editor or overlay addressed is not open.
	ErrNotOpen = errors.New("not open")
	// ErrUpstream wraps failures of the AI model or product image host.
	ErrUpstream = errors.New("external service failed")
)

const (
	msgInvalidImage     = "Please upload a valid image file (JPEG or PNG)."
	msgNeedImageStyle   = "Please upload an image and specify a style."
	msgNoOriginal       = "Original image is not available for visualization."
	msgSuggestionFailed = "Failed to get furniture suggestions from AI. The model may be unable to process the request."
)

// Suggester proposes furniture for a room photo.
type Suggester interface {
	Suggest(ctx context.Context, roomJPEG []byte, style string) ([]storage.SuggestionCategory, error)
}

// Blender composites an item into a room photo.
type Blender interface {
	Blend(ctx context.Context, roomJPEG []byte, item storage.FurnitureSuggestion) (vision.Image, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store     storage.Store
	Media     media.Store
	Suggester Suggester
	Blender   Blender
	Events    events.Publisher
	Logger    *slog.Logger
	// Models are the model names a request may choose with WithModel.
	Models []string
}

// run is one cancellable model request; seq tells a newer run from an older one.
type run struct {
	seq    uint64
	cancel context.CancelFunc
}

// Service coordinates the design flow of every session. Persistent state
// lives in the store; editors and overlay viewers are held in memory.
type Service struct {
	store     storage.Store
	media     media.Store
	suggester Suggester
	blender   Blender
	events    events.Publisher
	logger    *slog.Logger
	models    []string

	// writeMu serializes load-modify-save cycles on sessions.
	writeMu sync.Mutex

	mu       sync.Mutex
	seq      uint64
	suggests map[string]run
	blends   map[string]run
	editors  map[string]*adjust.Editor
	viewers  map[string]*overlay.Viewer
}

// New wires a Service.
func New(deps Deps) *Service {
	if deps.Media == nil {
		deps.Media = media.Disabled()
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		store:     deps.Store,
		media:     deps.Media,
		suggester: deps.Suggester,
		blender:   deps.Blender,
		events:    deps.Events,
		logger:    deps.Logger,
		models:    deps.Models,
		suggests:  make(map[string]run),
		blends:    make(map[string]run),
		editors:   make(map[string]*adjust.Editor),
		viewers:   make(map[string]*overlay.Viewer),
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// WithModel returns ctx carrying a model chosen by the request, which then
// replaces the configured model for suggestion and blend calls. An empty name
// keeps the configured model; names outside the allowed list are rejected.
func (s *Service) WithModel(ctx context.Context, model string) (context.Context, error) {
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		return ctx, nil
	}
	if !slices.Contains(s.models, model) {
		return ctx, invalid(fmt.Sprintf("model %q is not available", model))
	}
	return llm.WithModel(ctx, model), nil
}

// Create starts a session with the given style, or the default style.
func (s *Service) Create(ctx context.Context, style string) (storage.Session, error) {
	return s.store.CreateSession(ctx, storage.Session{Style: strings.TrimSpace(style)})
}

// Get loads a session.
func (s *Service) Get(ctx context.Context, id string) (storage.Session, error) {
	return s.store.GetSession(ctx, id)
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]storage.Session, error) {
	return s.store.ListSessions(ctx)
}

// Delete drops a session with its in-memory views and stored images.
func (s *Service) Delete(ctx context.Context, id string) error {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	s.releaseTransient(id)
	s.removeImages(ctx, session.Room, session.Blend)

	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.events.Publish(events.Event{SessionID: id, Kind: events.KindSession, State: storage.StateCancelled, Message: "deleted"})
	return nil
}

// Reset returns a session to its initial state, keeping only the style.
// Outstanding suggestions are cancelled and the camera is released.
func (s *Service) Reset(ctx context.Context, id string) (storage.Session, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return storage.Session{}, err
	}
	s.releaseTransient(id)

	var room *storage.StoredImage
	var blend *storage.Blend
	session, err := s.update(ctx, id, func(session *storage.Session) error {
		room, blend = session.Room, session.Blend
		session.Room = nil
		session.Blend = nil
		session.Suggestions = nil
		session.Status = storage.Status{Suggestions: storage.StateIdle, Blend: storage.StateIdle}
		return nil
	})
	if err != nil {
		return storage.Session{}, err
	}
	s.removeImages(ctx, room, blend)
	return session, nil
}

// RoomImage returns the confirmed room photo.
func (s *Service) RoomImage(ctx context.Context, id string) (media.Object, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return media.Object{}, err
	}
	if session.Room == nil {
		return media.Object{}, fmt.Errorf("room image %w", ErrNotOpen)
	}
	obj, err := s.media.Fetch(ctx, session.Room.Key)
	if err != nil {
		return media.Object{}, fmt.Errorf("fetch room image: %w", err)
	}
	if obj.ContentType == "" {
		obj.ContentType = session.Room.MIME
	}
	return obj, nil
}

// SetStyle records the furniture style used for the next suggestion request.
func (s *Service) SetStyle(ctx context.Context, id, style string) (storage.Session, error) {
	style = strings.TrimSpace(style)
	if style == "" {
		return storage.Session{}, invalid("style is required")
	}
	return s.update(ctx, id, func(session *storage.Session) error {
		session.Style = style
		return nil
	})
}

// update applies fn to the stored session and saves it.
func (s *Service) update(ctx context.Context, id string, fn func(*storage.Session) error) (storage.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return storage.Session{}, err
	}
	if err := fn(&session); err != nil {
		return storage.Session{}, err
	}
	return s.store.SaveSession(ctx, session)
}

// releaseTransient cancels suggestions and blends and closes the editor and
// overlay of a session.
func (s *Service) releaseTransient(id string) {
	s.mu.Lock()
	suggestion, suggesting := s.suggests[id]
	delete(s.suggests, id)
	blend, blending := s.blends[id]
	delete(s.blends, id)
	editor := s.editors[id]
	delete(s.editors, id)
	viewer := s.viewers[id]
	delete(s.viewers, id)
	s.mu.Unlock()

	if suggesting {
		suggestion.cancel()
	}
	if blending {
		blend.cancel()
	}
	if editor != nil {
		editor.Close()
	}
	if viewer != nil {
		viewer.Close()
	}
}

// ReleaseOrphans closes the editors, overlays and running requests of
// sessions the store no longer has, such as expired or evicted ones. It
// returns how many sessions were released.
func (s *Service) ReleaseOrphans(ctx context.Context) (int, error) {
	s.mu.Lock()
	ids := make(map[string]struct{}, len(s.editors)+len(s.viewers))
	for id := range s.editors {
		ids[id] = struct{}{}
	}
	for id := range s.viewers {
		ids[id] = struct{}{}
	}
	for id := range s.suggests {
		ids[id] = struct{}{}
	}
	for id := range s.blends {
		ids[id] = struct{}{}
	}
	s.mu.Unlock()

	released := 0
	for id := range ids {
		_, err := s.store.GetSession(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.releaseTransient(id)
			released++
		case err != nil:
			return released, fmt.Errorf("check session %s: %w", id, err)
		}
	}
	if released > 0 {
		s.logger.Info("released state of vanished sessions", "sessions", released)
	}
	return released, nil
}

// SweepOrphans runs ReleaseOrphans every interval until ctx is done.
func (s *Service) SweepOrphans(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReleaseOrphans(ctx); err != nil {
				s.logger.Warn("orphan sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) removeImages(ctx context.Context, room *storage.StoredImage, blend *storage.Blend) {
	if room != nil {
		s.removeObject(ctx, room.Key)
	}
	if blend != nil {
		s.removeObject(ctx, blend.ImageKey)
	}
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.media.Delete(ctx, key); err != nil && !errors.Is(err, media.ErrObjectNotFound) {
		s.logger.Warn("could not delete media object", "key", key, "error", err)
	}
}

func (s *Service) loadRoom(ctx context.Context, room *storage.StoredImage) ([]byte, error) {
	obj, err := s.media.Fetch(ctx, room.Key)
	if err != nil {
		return nil, fmt.Errorf("load room image: %w", err)
	}
	return obj.Data, nil
}
