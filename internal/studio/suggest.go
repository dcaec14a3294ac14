package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"furnishAi/internal/events"
	"furnishAi/internal/llm"
	"furnishAi/internal/storage"
)

// Suggest requests furniture suggestions for the session's room and style.
// A newer request for the same session cancels this one; only the latest
// request writes its result.
func (s *Service) Suggest(ctx context.Context, id string) (storage.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return storage.Session{}, err
	}
	if session.Room == nil || strings.TrimSpace(session.Style) == "" {
		return storage.Session{}, invalid(msgNeedImageStyle)
	}
	if s.suggester == nil {
		return storage.Session{}, llm.ErrNotConfigured
	}

	room, err := s.loadRoom(ctx, session.Room)
	if err != nil {
		return storage.Session{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	seq := s.beginSuggestions(id, cancel)
	defer s.endSuggestions(id, seq)

	if _, err := s.update(ctx, id, func(session *storage.Session) error {
		if !s.isCurrentSuggestion(id, seq) {
			return ErrSuperseded
		}
		session.Suggestions = nil
		session.Status.Suggestions = storage.StateRunning
		session.Status.Error = ""
		return nil
	}); err != nil {
		return storage.Session{}, err
	}
	s.events.Publish(events.Event{SessionID: id, Kind: events.KindSuggestions, State: storage.StateRunning})

	categories, suggestErr := s.suggester.Suggest(runCtx, room, session.Style)

	saved, err := s.update(context.WithoutCancel(ctx), id, func(session *storage.Session) error {
		if !s.isCurrentSuggestion(id, seq) {
			return ErrSuperseded
		}
		if suggestErr != nil {
			session.Status.Suggestions = storage.StateFailed
			session.Status.Error = msgSuggestionFailed
			return nil
		}
		session.Suggestions = categories
		session.Status.Suggestions = storage.StateSucceeded
		session.Status.Error = ""
		return nil
	})
	switch {
	case errors.Is(err, ErrSuperseded):
		s.logger.Info("suggestion request superseded", "session_id", id)
		s.events.Publish(events.Event{SessionID: id, Kind: events.KindSuggestions, State: storage.StateCancelled})
		return storage.Session{}, ErrSuperseded
	case err != nil:
		return storage.Session{}, err
	}

	if suggestErr != nil {
		s.logger.Error("suggestion request failed", "session_id", id, "style", session.Style, "error", suggestErr)
		s.events.Publish(events.Event{SessionID: id, Kind: events.KindSuggestions, State: storage.StateFailed, Message: msgSuggestionFailed})
		if errors.Is(suggestErr, llm.ErrNotConfigured) {
			return storage.Session{}, suggestErr
		}
		return storage.Session{}, fmt.Errorf("%w: %s", ErrUpstream, msgSuggestionFailed)
	}

	s.logger.Info("suggestions ready", "session_id", id, "categories", len(categories))
	s.events.Publish(events.Event{SessionID: id, Kind: events.KindSuggestions, State: storage.StateSucceeded})
	return saved, nil
}

// beginSuggestions registers a run and cancels the one it replaces.
func (s *Service) beginSuggestions(id string, cancel context.CancelFunc) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	previous, ok := s.suggests[id]
	s.suggests[id] = run{seq: seq, cancel: cancel}
	s.mu.Unlock()

	if ok {
		previous.cancel()
	}
	return seq
}

func (s *Service) endSuggestions(id string, seq uint64) {
	s.mu.Lock()
	if current, ok := s.suggests[id]; ok && current.seq == seq {
		delete(s.suggests, id)
	}
	s.mu.Unlock()
}

func (s *Service) isCurrentSuggestion(id string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.suggests[id]
	return ok && current.seq == seq
}

// cancelSuggestions aborts any running request without starting a new one.
func (s *Service) cancelSuggestions(id string) {
	s.mu.Lock()
	current, ok := s.suggests[id]
	delete(s.suggests, id)
	s.mu.Unlock()
	if ok {
		current.cancel()
	}
}
