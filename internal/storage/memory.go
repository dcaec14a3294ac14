package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxMemorySessions = 200

// InMemoryStore is a thread-safe store used when neither Redis nor a database is configured.
// It keeps the most recently created sessions only.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions []Session
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make([]Session, 0)}
}

// CreateSession prepends a session to the in-memory slice.
func (s *InMemoryStore) CreateSession(_ context.Context, input Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	now := time.Now()
	if input.CreatedAt.IsZero() {
		input.CreatedAt = now
	}
	if input.UpdatedAt.IsZero() {
		input.UpdatedAt = input.CreatedAt
	}
	input = normalize(input)

	s.sessions = append([]Session{input}, s.sessions...)
	if len(s.sessions) > maxMemorySessions {
		s.sessions = s.sessions[:maxMemorySessions]
	}

	return cloneSession(input), nil
}

// GetSession returns a session by ID.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ID == id {
			return cloneSession(sess), nil
		}
	}
	return Session{}, ErrNotFound
}

// SaveSession replaces a stored session and bumps its update time.
func (s *InMemoryStore) SaveSession(_ context.Context, session Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, sess := range s.sessions {
		if sess.ID == session.ID {
			session.CreatedAt = sess.CreatedAt
			session.UpdatedAt = time.Now()
			session = normalize(session)
			s.sessions[idx] = cloneSession(session)
			return session, nil
		}
	}
	return Session{}, ErrNotFound
}

// ListSessions returns a snapshot of stored sessions, newest first.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		snapshot[i] = cloneSession(sess)
	}
	return snapshot, nil
}

// DeleteSession removes a session by ID.
func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}

// cloneSession copies the slices and pointers a caller could mutate.
func cloneSession(in Session) Session {
	out := in
	if in.Room != nil {
		room := *in.Room
		out.Room = &room
	}
	if in.Blend != nil {
		blend := *in.Blend
		out.Blend = &blend
	}
	if in.Suggestions != nil {
		out.Suggestions = make([]SuggestionCategory, len(in.Suggestions))
		for i, cat := range in.Suggestions {
			out.Suggestions[i] = SuggestionCategory{
				Category:    cat.Category,
				Suggestions: append([]FurnitureSuggestion(nil), cat.Suggestions...),
			}
		}
	}
	return out
}
