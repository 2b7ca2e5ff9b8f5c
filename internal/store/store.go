package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists conversations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the conversations table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rapport_conversations (
			id          UUID PRIMARY KEY,
			state       JSONB       NOT NULL,
			recent      JSONB       NOT NULL DEFAULT '[]',
			turn_count  INTEGER     NOT NULL DEFAULT 0,
			is_ended    BOOLEAN     NOT NULL DEFAULT false,
			end_reason  TEXT        NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_rapport_conversations_ended ON rapport_conversations(is_ended)`)
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// Create inserts a new conversation.
func (s *Store) Create(ctx context.Context, c *Conversation) error {
	state, recent, err := encode(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rapport_conversations (id, state, recent, turn_count, is_ended, end_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, state, recent, c.State.TurnCount, c.State.IsEnded, c.State.EndReason, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// Get loads a conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, state, recent, created_at, updated_at
		FROM rapport_conversations
		WHERE id = $1`,
		id,
	)

	var c Conversation
	var state, recent []byte
	if err := row.Scan(&c.ID, &state, &recent, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := decode(&c, state, recent); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save stores c as the turn that follows the stored one. The row must still
// hold turn c.State.TurnCount-1 and must not have ended; otherwise Save
// returns ErrConflict and writes nothing.
func (s *Store) Save(ctx context.Context, c *Conversation) error {
	state, recent, err := encode(c)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE rapport_conversations
		SET state = $2, recent = $3, turn_count = $4, is_ended = $5, end_reason = $6, updated_at = $7
		WHERE id = $1 AND turn_count = $4 - 1 AND NOT is_ended`,
		c.ID, state, recent, c.State.TurnCount, c.State.IsEnded, c.State.EndReason, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, c.ID)
	}
	return nil
}

func (s *Store) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rapport_conversations WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}
