package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Data is what an interactive session holds between requests.
type Data struct {
	UserID    int64     `json:"uid,omitempty"`
	CSRF      string    `json:"csrf,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Load(ctx context.Context, id string) (*Data, error)
	// Save writes data and resets the idle timeout.
	Save(ctx context.Context, id string, data *Data) error
	Destroy(ctx context.Context, id string) error
	// Move stores data under newID and drops oldID in one round trip.
	Move(ctx context.Context, oldID, newID string, data *Data) error
}

type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, prefix string, idle time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: idle}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "sess:" + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Data, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &data, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

func (s *RedisStore) Move(ctx context.Context, oldID, newID string, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(newID), raw, s.ttl)
		if oldID != "" {
			pipe.Del(ctx, s.key(oldID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	return nil
}
