package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite persists conversations in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and runs migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
		return err
	}

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS conversations (
				id         TEXT    PRIMARY KEY,
				state      TEXT    NOT NULL,
				recent     TEXT    NOT NULL DEFAULT '[]',
				turn_count INTEGER NOT NULL DEFAULT 0,
				is_ended   INTEGER NOT NULL DEFAULT 0,
				created_at TEXT    NOT NULL,
				updated_at TEXT    NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
		`); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, c *Conversation) error {
	state, recent, err := encode(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, state, recent, turn_count, is_ended, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), string(state), string(recent), c.State.TurnCount, c.State.IsEnded,
		c.CreatedAt.Format(timeLayout), c.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, recent, created_at, updated_at
		FROM conversations
		WHERE id = ?`,
		id.String(),
	)

	var state, recent, created, updated string
	if err := row.Scan(&state, &recent, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	c := Conversation{ID: id}
	if err := decode(&c, []byte(state), []byte(recent)); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	c.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &c, nil
}

// Save stores c as the turn that follows the stored one; see Store.Save.
func (s *SQLite) Save(ctx context.Context, c *Conversation) error {
	state, recent, err := encode(c)
	if err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET state = ?, recent = ?, turn_count = ?, is_ended = ?, updated_at = ?
		WHERE id = ? AND turn_count = ? AND is_ended = 0`,
		string(state), string(recent), c.State.TurnCount, c.State.IsEnded,
		c.UpdatedAt.Format(timeLayout), c.ID.String(), c.State.TurnCount-1,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = ?)`, c.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("check conversation: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

// Latest returns the most recently updated conversation.
func (s *SQLite) Latest(ctx context.Context) (*Conversation, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM conversations ORDER BY updated_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest conversation: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	return s.Get(ctx, parsed)
}
