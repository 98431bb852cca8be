package checkpoint

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spigell/interview-conductor/internal/interview"
)

// Store persists checkpoints. Save replaces the previous checkpoint of the
// session atomically: a reader sees either the old or the new document.
type Store interface {
	Save(ctx context.Context, s *interview.Session) error
	// Load returns interview.ErrCheckpointNotFound for unknown sessions and
	// *interview.CorruptCheckpoint for documents that fail validation.
	Load(ctx context.Context, sessionID string) (*interview.Session, error)
	// Archive moves the live checkpoint aside so it is no longer resumable.
	Archive(ctx context.Context, sessionID string) error
	// List returns live checkpoints, most recently active first.
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=file redis postgres"`
	Dir     string `mapstructure:"dir"`

	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db" validate:"gte=0"`
	RedisPrefix   string `mapstructure:"redis-prefix"`

	PostgresDSN string `mapstructure:"postgres-dsn"`
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendRedis:
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

var now = time.Now

func sortSummaries(list []Summary) {
	slices.SortFunc(list, func(a, b Summary) int {
		if c := b.LastActivityAt.Compare(a.LastActivityAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
}
