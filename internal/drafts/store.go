// Package drafts keeps unfinished event-creation forms between sessions.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prefest/internal/status"

	"github.com/redis/go-redis/v9"
)

// Draft is an opaque form snapshot. Only the newest write is kept.
type Draft struct {
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type RedisStore struct {
	redis redis.Cmdable
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisStore(redisClient redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{redis: redisClient, ttl: ttl, now: time.Now}
}

func key(userID, kind string) string {
	return fmt.Sprintf("draft:%s:%s", userID, kind)
}

func (s *RedisStore) Save(ctx context.Context, userID, kind string, data json.RawMessage) (*Draft, error) {
	if !json.Valid(data) {
		return nil, errors.New("draft: data is not valid JSON")
	}
	d := &Draft{Kind: kind, Data: data, UpdatedAt: s.now().UTC()}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, key(userID, kind), b, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return d, nil
}

func (s *RedisStore) Load(ctx context.Context, userID, kind string) (*Draft, error) {
	b, err := s.redis.Get(ctx, key(userID, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, status.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID, kind string) error {
	if err := s.redis.Del(ctx, key(userID, kind)).Err(); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return nil
}
