package state

import (
	"context"
	"encoding/json"
	"fmt"

	"menucrawler/crawler/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps the items accumulated across crawl calls of one session.
// Nothing is cleared implicitly; callers reset a session explicitly.
type SessionStore interface {
	Items(ctx context.Context, sessionID string) ([]domain.MenuItem, error)
	// Append adds items to the end of the session and returns the new total.
	Append(ctx context.Context, sessionID string, items []domain.MenuItem) (int, error)
	Reset(ctx context.Context, sessionID string) error
	Close() error
}

type redisSessionStore struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisSessionStore(redisClient *redis.Client) SessionStore {
	return &redisSessionStore{
		redisClient: redisClient,
		keyPrefix:   "menucrawler:session:",
	}
}

func (s *redisSessionStore) Items(ctx context.Context, sessionID string) ([]domain.MenuItem, error) {
	key := s.keyPrefix + sessionID
	values, err := s.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []domain.MenuItem{}, nil
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	items := make([]domain.MenuItem, 0, len(values))
	for _, v := range values {
		var item domain.MenuItem
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("failed to decode item in session %s: %w", sessionID, err)
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *redisSessionStore) Append(ctx context.Context, sessionID string, items []domain.MenuItem) (int, error) {
	key := s.keyPrefix + sessionID
	if len(items) == 0 {
		total, err := s.redisClient.LLen(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to count session %s: %w", sessionID, err)
		}
		return int(total), nil
	}

	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("failed to encode item %q: %w", item.Name, err)
		}
		values = append(values, string(data))
	}

	total, err := s.redisClient.RPush(ctx, key, values...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to append to session %s: %w", sessionID, err)
	}
	return int(total), nil
}

func (s *redisSessionStore) Reset(ctx context.Context, sessionID string) error {
	err := s.redisClient.Del(ctx, s.keyPrefix+sessionID).Err()
	if err != nil {
		return fmt.Errorf("failed to reset session %s: %w", sessionID, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the container.
func (s *redisSessionStore) Close() error {
	return nil
}
