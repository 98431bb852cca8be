package checkpoint

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/interview-conductor/internal/interview"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps checkpoints as JSONB rows. Save is a single upsert
// statement, so a reader sees either the previous or the new document.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and applies pending migrations.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolConfig.MaxConns = 4
	poolConfig.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// RunMigrations applies the embedded .sql migrations not yet recorded in
// schema_migrations, each in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to get applied migrations: %w", err)
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, path := range names {
		name := strings.TrimPrefix(path, "migrations/")
		if applied[name] {
			continue
		}

		content, err := migrations.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", name, err)
		}
	}

	return nil
}

// Save upserts the checkpoint row.
func (p *PostgresStore) Save(ctx context.Context, s *interview.Session) error {
	savedAt := now().UTC()
	data, err := Encode(s, savedAt)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO interview_checkpoints (session_id, version, phase, candidate, job_title, last_activity_at, saved_at, archived, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
		ON CONFLICT (session_id) DO UPDATE
		SET version = EXCLUDED.version,
			phase = EXCLUDED.phase,
			last_activity_at = EXCLUDED.last_activity_at,
			saved_at = EXCLUDED.saved_at,
			archived = FALSE,
			document = EXCLUDED.document
	`

	if _, err := p.pool.Exec(ctx, query,
		s.ID,
		s.Version,
		string(s.Phase),
		s.Candidate.Name,
		s.Job.Title,
		s.LastActivityAt,
		savedAt,
		data,
	); err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", s.ID, err)
	}
	return nil
}

// Load reads and validates the live checkpoint.
func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*interview.Session, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT document FROM interview_checkpoints WHERE session_id = $1 AND NOT archived`,
		sessionID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
		}
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", sessionID, err)
	}

	cp, err := Decode(sessionID, data)
	if err != nil {
		return nil, err
	}
	return cp.Session, nil
}

// Archive flags the row so it is no longer listed or loaded.
func (p *PostgresStore) Archive(ctx context.Context, sessionID string) error {
	result, err := p.pool.Exec(ctx,
		`UPDATE interview_checkpoints SET archived = TRUE WHERE session_id = $1 AND NOT archived`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to archive checkpoint %s: %w", sessionID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, interview.ErrCheckpointNotFound)
	}
	return nil
}

// List returns live checkpoints from the indexed columns.
func (p *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, candidate, job_title, phase, version, last_activity_at, saved_at
		FROM interview_checkpoints
		WHERE NOT archived
		ORDER BY last_activity_at DESC, session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var list []Summary
	for rows.Next() {
		var (
			s     Summary
			phase string
		)
		if err := rows.Scan(&s.SessionID, &s.Candidate, &s.JobTitle, &phase, &s.Version, &s.LastActivityAt, &s.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		s.Phase = interview.Phase(phase)
		list = append(list, s)
	}
	return list, rows.Err()
}

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
