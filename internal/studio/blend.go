package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"furnishAi/internal/events"
	"furnishAi/internal/llm"
	"furnishAi/internal/media"
	"furnishAi/internal/storage"
)

// BlendResult carries the composited image back to the caller.
type BlendResult struct {
	Session storage.Session `json:"session"`
	DataURI string          `json:"blended_image"`
}

// Visualize blends the chosen suggestion into the room photo. Only one blend
// runs per session; a second request while busy fails with ErrBusy. A reset or
// a newly confirmed room discards the running blend with ErrSuperseded.
func (s *Service) Visualize(ctx context.Context, id string, category, index int) (BlendResult, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return BlendResult{}, err
	}
	if session.Room == nil {
		return BlendResult{}, invalid(msgNoOriginal)
	}
	item, ok := session.Suggestion(category, index)
	if !ok {
		return BlendResult{}, invalid(fmt.Sprintf("no suggestion at category %d, index %d", category, index))
	}
	if s.blender == nil {
		return BlendResult{}, llm.ErrNotConfigured
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	seq, ok := s.beginBlend(id, cancel)
	if !ok {
		return BlendResult{}, ErrBusy
	}
	defer s.endBlend(id, seq)

	if _, err := s.update(ctx, id, func(session *storage.Session) error {
		if !s.isCurrentBlend(id, seq) {
			return ErrSuperseded
		}
		session.Status.Blend = storage.StateRunning
		session.Status.Error = ""
		return nil
	}); err != nil {
		return BlendResult{}, err
	}
	s.events.Publish(events.Event{SessionID: id, Kind: events.KindBlend, State: storage.StateRunning})

	result, err := s.blend(runCtx, id, seq, session.Room, item)
	if err != nil && (errors.Is(err, ErrSuperseded) || !s.isCurrentBlend(id, seq)) {
		s.logger.Info("blend discarded", "session_id", id, "item", item.Name)
		s.events.Publish(events.Event{SessionID: id, Kind: events.KindBlend, State: storage.StateCancelled})
		return BlendResult{}, ErrSuperseded
	}
	if err != nil {
		s.logger.Error("blend failed", "session_id", id, "item", item.Name, "error", err)
		_, _ = s.update(context.WithoutCancel(ctx), id, func(session *storage.Session) error {
			if !s.isCurrentBlend(id, seq) {
				return ErrSuperseded
			}
			session.Status.Blend = storage.StateFailed
			session.Status.Error = err.Error()
			return nil
		})
		s.events.Publish(events.Event{SessionID: id, Kind: events.KindBlend, State: storage.StateFailed, Message: err.Error()})
		if errors.Is(err, llm.ErrNotConfigured) || errors.Is(err, storage.ErrNotFound) {
			return BlendResult{}, err
		}
		return BlendResult{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	s.events.Publish(events.Event{SessionID: id, Kind: events.KindBlend, State: storage.StateSucceeded})
	return result, nil
}

// blend runs the model and stores its image. The result is only written while
// seq is still the session's current blend.
func (s *Service) blend(ctx context.Context, id string, seq uint64, room *storage.StoredImage, item storage.FurnitureSuggestion) (BlendResult, error) {
	roomData, err := s.loadRoom(ctx, room)
	if err != nil {
		return BlendResult{}, err
	}

	img, err := s.blender.Blend(ctx, roomData, item)
	if err != nil {
		return BlendResult{}, err
	}

	storeCtx := context.WithoutCancel(ctx)
	blend := &storage.Blend{Suggestion: item, MIME: img.MIME, CreatedAt: time.Now()}
	uploaded, err := s.media.Upload(storeCtx, media.UploadInput{
		Filename:    "blend" + extensionFor(img.MIME),
		ContentType: img.MIME,
		Body:        bytes.NewReader(img.Data),
		Size:        int64(len(img.Data)),
	})
	if err != nil {
		s.logger.Warn("could not store blended image", "session_id", id, "error", err)
	} else {
		blend.ImageKey, blend.ImageURL = uploaded.Key, uploaded.URL
	}

	var previous *storage.Blend
	saved, err := s.update(storeCtx, id, func(session *storage.Session) error {
		if !s.isCurrentBlend(id, seq) {
			return ErrSuperseded
		}
		previous = session.Blend
		session.Blend = blend
		session.Status.Blend = storage.StateSucceeded
		session.Status.Error = ""
		return nil
	})
	if err != nil {
		s.removeObject(storeCtx, blend.ImageKey)
		return BlendResult{}, err
	}
	if previous != nil {
		s.removeObject(storeCtx, previous.ImageKey)
	}

	s.logger.Info("blend ready", "session_id", id, "item", item.Name, "mime", img.MIME, "bytes", len(img.Data))
	return BlendResult{Session: saved, DataURI: img.DataURI()}, nil
}

// BlendImage returns the stored result of the last blend.
func (s *Service) BlendImage(ctx context.Context, id string) (media.Object, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return media.Object{}, err
	}
	if session.Blend == nil || session.Blend.ImageKey == "" {
		return media.Object{}, fmt.Errorf("blend %w", ErrNotOpen)
	}
	obj, err := s.media.Fetch(ctx, session.Blend.ImageKey)
	if err != nil {
		return media.Object{}, fmt.Errorf("fetch blend image: %w", err)
	}
	if obj.ContentType == "" {
		obj.ContentType = session.Blend.MIME
	}
	return obj, nil
}

// CloseBlend dismisses the comparison view and drops the blended image.
func (s *Service) CloseBlend(ctx context.Context, id string) (storage.Session, error) {
	var previous *storage.Blend
	session, err := s.update(ctx, id, func(session *storage.Session) error {
		previous = session.Blend
		session.Blend = nil
		if session.Status.Blend != storage.StateRunning {
			session.Status.Blend = storage.StateIdle
		}
		return nil
	})
	if err != nil {
		return storage.Session{}, err
	}
	if previous != nil {
		s.removeObject(ctx, previous.ImageKey)
	}
	return session, nil
}

// beginBlend registers a run unless one is already in flight.
func (s *Service) beginBlend(id string, cancel context.CancelFunc) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.blends[id]; busy {
		return 0, false
	}
	s.seq++
	s.blends[id] = run{seq: s.seq, cancel: cancel}
	return s.seq, true
}

func (s *Service) endBlend(id string, seq uint64) {
	s.mu.Lock()
	if current, ok := s.blends[id]; ok && current.seq == seq {
		delete(s.blends, id)
	}
	s.mu.Unlock()
}

func (s *Service) isCurrentBlend(id string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.blends[id]
	return ok && current.seq == seq
}

// cancelBlend aborts the running blend; its result is discarded.
func (s *Service) cancelBlend(id string) {
	s.mu.Lock()
	current, ok := s.blends[id]
	delete(s.blends, id)
	s.mu.Unlock()
	if ok {
		current.cancel()
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case media.MIMEJPEG:
		return ".jpg"
	case media.MIMEPNG:
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
