package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

type conversations interface {
	Create(ctx context.Context, c *Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
}

// ignoreTimes leaves timestamps out of round-trip comparisons; each backend
// stores them at its own precision.
var ignoreTimes = cmpopts.IgnoreFields(Conversation{}, "CreatedAt", "UpdatedAt")

// exerciseStore runs the shared create/get/save contract against s.
func exerciseStore(t *testing.T, s conversations) {
	t.Helper()
	ctx := context.Background()

	c := NewConversation(7)
	if err := s.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(c, got, ignoreTimes); diff != "" {
		t.Errorf("fresh conversation mismatch (-want +got):\n%s", diff)
	}

	stale, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	e := engine.New(rubric.Default(), 0)
	turn, err := e.AdvanceTurn(got.State, engine.EvaluationResult{Score: 1, Quality: rubric.Skeptical, Tags: []string{"creepy"}})
	if err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}
	line, state := e.PickLine(turn.State, rubric.StyleExit)
	got.State = state
	got.Record(engine.Exchange{Message: "nice legs", Reply: line})

	if err := s.Save(ctx, got); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get after save failed: %v", err)
	}
	if diff := cmp.Diff(got, reloaded, ignoreTimes); diff != "" {
		t.Errorf("saved conversation mismatch (-want +got):\n%s", diff)
	}
	if !engine.IsBlocked(reloaded.State) || reloaded.State.EndReason != rubric.ReasonDone {
		t.Errorf("ended state not persisted: %+v", reloaded.State)
	}

	// A writer that loaded turn 0 before the end must not reopen it.
	late, err := e.AdvanceTurn(stale.State, engine.EvaluationResult{Score: 9, Quality: rubric.Positive})
	if err != nil {
		t.Fatalf("AdvanceTurn failed: %v", err)
	}
	stale.State = late.State
	if err := s.Save(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Errorf("stale Save: err = %v, want ErrConflict", err)
	}
	if err := s.Save(ctx, got); !errors.Is(err, ErrConflict) {
		t.Errorf("repeated Save: err = %v, want ErrConflict", err)
	}
	after, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get after conflict failed: %v", err)
	}
	if diff := cmp.Diff(reloaded, after, ignoreTimes); diff != "" {
		t.Errorf("conflicting Save changed the stored conversation (-want +got):\n%s", diff)
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown id: err = %v, want ErrNotFound", err)
	}
	missing := NewConversation(1)
	missing.State.TurnCount = 1
	if err := s.Save(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := NewConversation(0)
	c.State.UsedResponses = map[string][]int{rubric.StyleExit: {0}}
	if err := m.Create(ctx, c); err != nil {
		t.Fatal(err)
	}

	c.State.InterestLevel = 9
	c.State.UsedResponses[rubric.StyleExit][0] = 2

	got, err := m.Get(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State.InterestLevel != engine.DefaultInterest {
		t.Errorf("stored interest changed through caller pointer: %d", got.State.InterestLevel)
	}
	if got.State.UsedResponses[rubric.StyleExit][0] != 0 {
		t.Error("stored used responses changed through caller map")
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "rapport.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rapport.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	c := NewConversation(3)
	if err := s.Create(ctx, c); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.State.Seed != 3 {
		t.Errorf("seed = %d, want 3", got.State.Seed)
	}
}

func TestSQLite_Latest(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "rapport.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty db: err = %v, want ErrNotFound", err)
	}

	first := NewConversation(1)
	second := NewConversation(2)
	for _, c := range []*Conversation{first, second} {
		if err := s.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	first.State.TurnCount = 1
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("Latest = %s, want most recently saved %s", got.ID, first.ID)
	}
}

func TestMemory_SaveRequiresNextTurn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := NewConversation(0)
	if err := m.Create(ctx, c); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		turn int
		want error
	}{
		{"same turn", 0, ErrConflict},
		{"skips a turn", 2, ErrConflict},
		{"next turn", 1, nil},
		{"replayed turn", 1, ErrConflict},
	}
	for _, tt := range tests {
		next := c.clone()
		next.State.TurnCount = tt.turn
		if err := m.Save(ctx, next); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestConversation_RecordKeepsTail(t *testing.T) {
	c := NewConversation(0)
	for i := range MaxRecent + 3 {
		c.Record(engine.Exchange{Message: string(rune('a' + i)), Reply: "ok."})
	}
	if len(c.Recent) != MaxRecent {
		t.Fatalf("kept %d exchanges, want %d", len(c.Recent), MaxRecent)
	}
	if c.Recent[0].Message != "d" {
		t.Errorf("oldest kept = %q, want %q", c.Recent[0].Message, "d")
	}
	if c.Recent[MaxRecent-1].Message != string(rune('a'+MaxRecent+2)) {
		t.Errorf("newest kept = %q", c.Recent[MaxRecent-1].Message)
	}
}
