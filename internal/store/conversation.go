package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
)

var (
	// ErrNotFound is returned when no conversation has the requested id.
	ErrNotFound = errors.New("conversation not found")
	// ErrConflict is returned by Save when the stored conversation is no
	// longer the turn c was computed from: another writer got there first
	// or the conversation has ended. Nothing is written.
	ErrConflict = errors.New("conversation changed concurrently")
)

// MaxRecent is how many exchanges a conversation keeps as working context for
// the judge and the generator. Older exchanges are dropped.
const MaxRecent = 6

// Conversation is one persisted simulation.
type Conversation struct {
	ID        uuid.UUID
	State     engine.ConversationState
	Recent    []engine.Exchange
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConversation starts a conversation with a fresh id and opening state.
func NewConversation(seed int64) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.New(),
		State:     engine.StartConversation(seed),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record appends ex to the working context, keeping the last MaxRecent.
func (c *Conversation) Record(ex engine.Exchange) {
	c.Recent = append(c.Recent, ex)
	if n := len(c.Recent); n > MaxRecent {
		c.Recent = append([]engine.Exchange(nil), c.Recent[n-MaxRecent:]...)
	}
}

// clone deep-copies c so stores never share memory with callers.
func (c *Conversation) clone() *Conversation {
	out := *c
	out.State = c.State.Clone()
	out.Recent = append([]engine.Exchange(nil), c.Recent...)
	return &out
}

func encode(c *Conversation) (state, recent []byte, err error) {
	state, err = json.Marshal(c.State)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal state: %w", err)
	}
	if c.Recent == nil {
		recent = []byte("[]")
	} else if recent, err = json.Marshal(c.Recent); err != nil {
		return nil, nil, fmt.Errorf("marshal recent: %w", err)
	}
	return state, recent, nil
}

func decode(c *Conversation, state, recent []byte) error {
	if err := json.Unmarshal(state, &c.State); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	if err := json.Unmarshal(recent, &c.Recent); err != nil {
		return fmt.Errorf("unmarshal recent: %w", err)
	}
	if len(c.Recent) == 0 {
		c.Recent = nil
	}
	return nil
}
