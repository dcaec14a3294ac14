package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix  = "furnish:session:" // session data: furnish:session:{id}
	sessionIndexKey   = "furnish:sessions" // sorted set of ids scored by updated_at
	defaultSessionTTL = 24 * time.Hour
)

// RedisStore keeps sessions in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a connected client. A non-positive ttl falls back to 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// CreateSession writes a new session and indexes it.
func (s *RedisStore) CreateSession(ctx context.Context, input Session) (Session, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	input.UpdatedAt = input.CreatedAt
	input = normalize(input)

	if err := s.write(ctx, input); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return input, nil
}

// GetSession loads a session; expired sessions report ErrNotFound.
func (s *RedisStore) GetSession(ctx context.Context, id string) (Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return normalize(session), nil
}

// SaveSession replaces an existing session and refreshes its TTL.
func (s *RedisStore) SaveSession(ctx context.Context, session Session) (Session, error) {
	existing, err := s.GetSession(ctx, session.ID)
	if err != nil {
		return Session{}, err
	}
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = time.Now()
	session = normalize(session)

	if err := s.write(ctx, session); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// ListSessions returns live sessions, newest first, and prunes expired index entries.
func (s *RedisStore) ListSessions(ctx context.Context) ([]Session, error) {
	ids, err := s.client.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}

	sessions := make([]Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, sessionIndexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune session index: %w", err)
		}
	}
	return sessions, nil
}

// DeleteSession removes a session and its index entry.
func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, sessionIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() {
	_ = s.client.Close()
}

func (s *RedisStore) write(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, s.ttl)
	pipe.ZAdd(ctx, sessionIndexKey, redis.Z{Score: float64(session.UpdatedAt.UnixNano()), Member: session.ID})
	_, err = pipe.Exec(ctx)
	return err
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
