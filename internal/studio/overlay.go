package studio

import (
	"context"
	"fmt"

	"furnishAi/internal/overlay"
)

// OpenOverlay starts the live overlay for a suggestion. Any previous overlay
// of the session is closed first. When the camera cannot be acquired the
// error wraps overlay.ErrCameraUnavailable and nothing stays open.
func (s *Service) OpenOverlay(ctx context.Context, id string, category, index int, camera overlay.Camera) (overlay.State, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return overlay.State{}, err
	}
	item, ok := session.Suggestion(category, index)
	if !ok {
		return overlay.State{}, invalid(fmt.Sprintf("no suggestion at category %d, index %d", category, index))
	}

	s.closeViewer(id)

	viewer, err := overlay.Open(ctx, camera, overlay.Item{Name: item.Name, ImageURL: item.ImageURL})
	if err != nil {
		s.logger.Warn("overlay could not start", "session_id", id, "error", err)
		return overlay.State{}, err
	}

	s.mu.Lock()
	previous := s.viewers[id]
	s.viewers[id] = viewer
	s.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	return viewer.State()
}

func (s *Service) viewer(id string) (*overlay.Viewer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	viewer, ok := s.viewers[id]
	if !ok {
		return nil, fmt.Errorf("overlay %w", ErrNotOpen)
	}
	return viewer, nil
}

// OverlayState returns the current transform of the open overlay.
func (s *Service) OverlayState(id string) (overlay.State, error) {
	viewer, err := s.viewer(id)
	if err != nil {
		return overlay.State{}, err
	}
	return viewer.State()
}

// Pointer feeds one pointer event to the open overlay.
func (s *Service) Pointer(id string, phase overlay.Phase, points []overlay.Point) (overlay.State, error) {
	switch phase {
	case overlay.PhaseStart, overlay.PhaseMove, overlay.PhaseEnd:
	default:
		return overlay.State{}, invalid(fmt.Sprintf("unknown pointer phase %q", phase))
	}
	viewer, err := s.viewer(id)
	if err != nil {
		return overlay.State{}, err
	}
	return viewer.Pointer(phase, points)
}

// Rotate sets one rotation slider of the open overlay.
func (s *Service) Rotate(id, axis string, degrees float64) (overlay.State, error) {
	parsed, err := overlay.ParseAxis(axis)
	if err != nil {
		return overlay.State{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	viewer, err := s.viewer(id)
	if err != nil {
		return overlay.State{}, err
	}
	return viewer.Rotate(parsed, degrees)
}

// CloseOverlay leaves the overlay and releases the camera.
func (s *Service) CloseOverlay(id string) error {
	if !s.closeViewer(id) {
		return fmt.Errorf("overlay %w", ErrNotOpen)
	}
	return nil
}

func (s *Service) closeViewer(id string) bool {
	s.mu.Lock()
	viewer, ok := s.viewers[id]
	delete(s.viewers, id)
	s.mu.Unlock()
	if ok {
		viewer.Close()
	}
	return ok
}
