package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const sessionColumns = `id, style, room, suggestions, blend, status, created_at, updated_at`

// CreateSession stores the provided session in PostgreSQL.
func (s *PostgresStore) CreateSession(ctx context.Context, input Session) (Session, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	input.UpdatedAt = input.CreatedAt
	input = normalize(input)

	args, err := encodeColumns(input)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO design_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		args...); err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}

	return input, nil
}

// GetSession loads one session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM design_sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// SaveSession overwrites the mutable columns of an existing session.
func (s *PostgresStore) SaveSession(ctx context.Context, session Session) (Session, error) {
	session.UpdatedAt = time.Now()
	session = normalize(session)

	args, err := encodeColumns(session)
	if err != nil {
		return Session{}, err
	}
	// created_at is immutable; drop it from the argument list.
	updateArgs := append(args[:6:6], session.UpdatedAt)
	row := s.pool.QueryRow(ctx,
		`UPDATE design_sessions SET style = $2, room = $3, suggestions = $4, blend = $5, status = $6, updated_at = $7
         WHERE id = $1 RETURNING created_at`,
		updateArgs...)
	if err := row.Scan(&session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	return session, nil
}

// ListSessions returns the most recently updated sessions.
func (s *PostgresStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM design_sessions ORDER BY updated_at DESC LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		item, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session row.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM design_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func encodeColumns(session Session) ([]any, error) {
	room, err := jsonColumn(session.Room)
	if err != nil {
		return nil, err
	}
	suggestions, err := jsonColumn(session.Suggestions)
	if err != nil {
		return nil, err
	}
	blend, err := jsonColumn(session.Blend)
	if err != nil {
		return nil, err
	}
	status, err := jsonColumn(session.Status)
	if err != nil {
		return nil, err
	}
	return []any{session.ID, session.Style, room, suggestions, blend, status, session.CreatedAt, session.UpdatedAt}, nil
}

// jsonColumn encodes a value for a JSONB column; nil pointers become SQL NULL.
func jsonColumn(v any) (*string, error) {
	switch typed := v.(type) {
	case *StoredImage:
		if typed == nil {
			return nil, nil
		}
	case *Blend:
		if typed == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode column: %w", err)
	}
	text := string(raw)
	return &text, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		session                          Session
		room, suggestions, blend, status []byte
	)
	if err := row.Scan(&session.ID, &session.Style, &room, &suggestions, &blend, &status, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return Session{}, err
	}
	if len(room) > 0 {
		session.Room = &StoredImage{}
		if err := json.Unmarshal(room, session.Room); err != nil {
			return Session{}, fmt.Errorf("decode room: %w", err)
		}
	}
	if len(suggestions) > 0 {
		if err := json.Unmarshal(suggestions, &session.Suggestions); err != nil {
			return Session{}, fmt.Errorf("decode suggestions: %w", err)
		}
	}
	if len(blend) > 0 {
		session.Blend = &Blend{}
		if err := json.Unmarshal(blend, session.Blend); err != nil {
			return Session{}, fmt.Errorf("decode blend: %w", err)
		}
	}
	if len(status) > 0 {
		if err := json.Unmarshal(status, &session.Status); err != nil {
			return Session{}, fmt.Errorf("decode status: %w", err)
		}
	}
	return normalize(session), nil
}
