package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"furnishAi/internal/adjust"
	"furnishAi/internal/media"
	"furnishAi/internal/storage"
)

// SelectImage validates an uploaded or captured photo and opens an editor on
// it. Invalid files leave the session untouched. A valid photo clears the
// previous suggestions and error.
func (s *Service) SelectImage(ctx context.Context, id, declaredType string, data []byte) (adjust.Params, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return adjust.Params{}, err
	}
	if _, err := media.ValidateUpload(declaredType, data); err != nil {
		if errors.Is(err, media.ErrImageTooLarge) {
			return adjust.Params{}, invalid(err.Error())
		}
		return adjust.Params{}, invalid(msgInvalidImage)
	}
	editor, err := adjust.NewEditor(data)
	if err != nil {
		return adjust.Params{}, invalid(msgInvalidImage)
	}

	s.cancelSuggestions(id)
	_, err = s.update(ctx, id, func(session *storage.Session) error {
		session.Suggestions = nil
		session.Status.Suggestions = storage.StateIdle
		session.Status.Error = ""
		return nil
	})
	if err != nil {
		editor.Close()
		return adjust.Params{}, err
	}

	s.mu.Lock()
	previous := s.editors[id]
	s.editors[id] = editor
	s.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	s.logger.Debug("editor opened", "session_id", id, "bytes", len(data))
	return adjust.Neutral(), nil
}

func (s *Service) editor(id string) (*adjust.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	editor, ok := s.editors[id]
	if !ok {
		return nil, fmt.Errorf("editor %w", ErrNotOpen)
	}
	return editor, nil
}

// EditParams returns the current adjustment params.
func (s *Service) EditParams(id string) (adjust.Params, error) {
	editor, err := s.editor(id)
	if err != nil {
		return adjust.Params{}, err
	}
	return editor.Params()
}

// Adjust sets brightness, contrast and saturation on the open editor.
func (s *Service) Adjust(id string, params adjust.Params) (adjust.Params, error) {
	return s.AdjustWith(id, func(p *adjust.Params) { *p = params })
}

// AdjustWith changes the open editor's params with fn, atomically with
// respect to other adjustments of the same editor.
func (s *Service) AdjustWith(id string, fn func(*adjust.Params)) (adjust.Params, error) {
	editor, err := s.editor(id)
	if err != nil {
		return adjust.Params{}, err
	}
	params, err := editor.Update(fn)
	if errors.Is(err, adjust.ErrInvalidParams) {
		return adjust.Params{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return params, err
}

// ResetAdjust restores neutral params.
func (s *Service) ResetAdjust(id string) (adjust.Params, error) {
	editor, err := s.editor(id)
	if err != nil {
		return adjust.Params{}, err
	}
	if err := editor.Reset(); err != nil {
		return adjust.Params{}, err
	}
	return adjust.Neutral(), nil
}

// Preview renders the filtered photo as JPEG.
func (s *Service) Preview(id string) ([]byte, error) {
	editor, err := s.editor(id)
	if err != nil {
		return nil, err
	}
	return editor.Preview()
}

// CancelEdit discards the editor; the confirmed room image is unchanged.
func (s *Service) CancelEdit(id string) error {
	s.mu.Lock()
	editor, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("editor %w", ErrNotOpen)
	}
	editor.Close()
	return nil
}

// ConfirmEdit bakes the adjustments into a JPEG and stores it as the room image.
// Any previous room image and blend are replaced and a running blend is discarded.
func (s *Service) ConfirmEdit(ctx context.Context, id string) (storage.Session, error) {
	s.mu.Lock()
	editor, ok := s.editors[id]
	delete(s.editors, id)
	s.mu.Unlock()
	if !ok {
		return storage.Session{}, fmt.Errorf("editor %w", ErrNotOpen)
	}

	data, err := editor.Confirm()
	if err != nil {
		return storage.Session{}, err
	}

	uploaded, err := s.media.Upload(ctx, media.UploadInput{
		Filename:    "room.jpg",
		ContentType: media.MIMEJPEG,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
	})
	if err != nil {
		return storage.Session{}, fmt.Errorf("store room image: %w", err)
	}

	s.cancelBlend(id)
	var oldRoom *storage.StoredImage
	var oldBlend *storage.Blend
	session, err := s.update(ctx, id, func(session *storage.Session) error {
		oldRoom, oldBlend = session.Room, session.Blend
		session.Room = &storage.StoredImage{Key: uploaded.Key, URL: uploaded.URL, MIME: media.MIMEJPEG}
		session.Blend = nil
		if session.Status.Blend == storage.StateRunning {
			session.Status.Blend = storage.StateCancelled
		}
		return nil
	})
	if err != nil {
		s.removeObject(ctx, uploaded.Key)
		return storage.Session{}, err
	}
	s.removeImages(ctx, oldRoom, oldBlend)

	s.logger.Info("room image confirmed", "session_id", id, "key", uploaded.Key, "bytes", len(data))
	return session, nil
}
