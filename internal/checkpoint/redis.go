package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/spigell/interview-conductor/internal/interview"
)

const defaultRedisPrefix = "interview:"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each checkpoint as a single string value. SET replaces the
// value atomically, so no reader ever sees a partial document.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) liveKey(id string) string    { return r.prefix + "session:" + id }
func (r *RedisStore) archiveKey(id string) string { return r.prefix + "archive:" + id }

// Save writes the checkpoint with a single SET.
func (r *RedisStore) Save(ctx context.Context, s *interview.Session) error {
	data, err := Encode(s, now())
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.liveKey(s.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.ID, err)
	}
	return nil
}

// Load reads and validates the live checkpoint.
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*interview.Session, error) {
	data, err := r.client.Get(ctx, r.liveKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", sessionID, err)
	}

	cp, err := Decode(sessionID, data)
	if err != nil {
		return nil, err
	}
	return cp.Session, nil
}

// Archive renames the live key into the archive namespace.
func (r *RedisStore) Archive(ctx context.Context, sessionID string) error {
	if err := r.client.Rename(ctx, r.liveKey(sessionID), r.archiveKey(sessionID)).Err(); err != nil {
		if strings.Contains(err.Error(), "no such key") {
			return fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
		}
		return fmt.Errorf("archive checkpoint %s: %w", sessionID, err)
	}
	return nil
}

// List scans the live namespace.
func (r *RedisStore) List(ctx context.Context) ([]Summary, error) {
	pattern := r.liveKey("*")
	var (
		cursor uint64
		list   []Summary
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				continue
			}
			cp, err := Decode(strings.TrimPrefix(key, r.liveKey("")), data)
			if err != nil {
				continue
			}
			list = append(list, summarize(cp))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sortSummaries(list)
	return list, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
