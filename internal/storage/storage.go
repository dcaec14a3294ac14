package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates that a session could not be located in the backing store.
var ErrNotFound = errors.New("session not found")

// DefaultStyle is the style preference a new session starts with.
const DefaultStyle = "Modern Minimalist"

// FurnitureSuggestion is a single product proposed by the model.
type FurnitureSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Material    string `json:"material"`
	URL         string `json:"url"`
	ImageURL    string `json:"imageUrl"`
}

// SuggestionCategory groups suggestions for one area of the room.
type SuggestionCategory struct {
	Category    string                `json:"category"`
	Suggestions []FurnitureSuggestion `json:"suggestions"`
}

// RequestState tracks one external request kind for a session.
type RequestState string

const (
	StateIdle      RequestState = "idle"
	StateRunning   RequestState = "running"
	StateSucceeded RequestState = "succeeded"
	StateFailed    RequestState = "failed"
	StateCancelled RequestState = "cancelled"
)

// Status represents request progress for the session.
type Status struct {
	Suggestions RequestState `json:"suggestions"`
	Blend       RequestState `json:"blend"`
	Error       string       `json:"error,omitempty"`
}

// StoredImage points at an image persisted by the media store.
type StoredImage struct {
	Key  string `json:"key"`
	URL  string `json:"url,omitempty"`
	MIME string `json:"mime"`
}

// Blend is the last composited image produced for the session.
type Blend struct {
	Suggestion FurnitureSuggestion `json:"suggestion"`
	ImageKey   string              `json:"image_key,omitempty"`
	ImageURL   string              `json:"image_url,omitempty"`
	MIME       string              `json:"mime"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Session is the coordinator-owned state of one design flow.
type Session struct {
	ID          string               `json:"id"`
	Style       string               `json:"style"`
	Room        *StoredImage         `json:"room,omitempty"`
	Suggestions []SuggestionCategory `json:"suggestions"`
	Blend       *Blend               `json:"blend,omitempty"`
	Status      Status               `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Suggestion returns the suggestion at the given category and item index.
func (s Session) Suggestion(category, index int) (FurnitureSuggestion, bool) {
	if category < 0 || category >= len(s.Suggestions) {
		return FurnitureSuggestion{}, false
	}
	items := s.Suggestions[category].Suggestions
	if index < 0 || index >= len(items) {
		return FurnitureSuggestion{}, false
	}
	return items[index], true
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	CreateSession(ctx context.Context, input Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	SaveSession(ctx context.Context, session Session) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
	Close()
}

// Options selects and configures the backing store.
type Options struct {
	DatabaseURL string
	RedisURL    string
	TTL         time.Duration
}

// NewStore selects a backing store: Redis when a URL is given, then PostgreSQL, then memory.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisStore(client, opts.TTL), nil
	}

	if opts.DatabaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS design_sessions (
        id TEXT PRIMARY KEY,
        style TEXT NOT NULL,
        room JSONB,
        suggestions JSONB DEFAULT '[]'::jsonb,
        blend JSONB,
        status JSONB DEFAULT '{}'::jsonb,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`)
	if err != nil {
		return fmt.Errorf("create design_sessions table: %w", err)
	}

	var schemaAlters = []string{
		`CREATE INDEX IF NOT EXISTS design_sessions_updated_at_idx ON design_sessions (updated_at DESC)`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("alter design_sessions table: %w", err)
		}
	}

	return nil
}

func normalize(session Session) Session {
	if session.Style == "" {
		session.Style = DefaultStyle
	}
	if session.Suggestions == nil {
		session.Suggestions = []SuggestionCategory{}
	}
	if session.Status.Suggestions == "" {
		session.Status.Suggestions = StateIdle
	}
	if session.Status.Blend == "" {
		session.Status.Blend = StateIdle
	}
	return session
}
