package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps conversations in process. It is used by tests and by the
// service when no database is configured.
type Memory struct {
	mu    sync.RWMutex
	convs map[uuid.UUID]*Conversation
}

func NewMemory() *Memory {
	return &Memory{convs: make(map[uuid.UUID]*Conversation)}
}

func (m *Memory) Create(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = c.clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

// Save stores c as the turn that follows the stored one; see Store.Save.
func (m *Memory) Save(_ context.Context, c *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.convs[c.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.State.IsEnded || stored.State.TurnCount != c.State.TurnCount-1 {
		return ErrConflict
	}
	c.UpdatedAt = time.Now().UTC()
	m.convs[c.ID] = c.clone()
	return nil
}
