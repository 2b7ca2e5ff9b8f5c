package reply

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator returns scripted replies in order and records every request.
type fakeGenerator struct {
	replies  []string
	err      error
	requests []Request
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.requests) > len(f.replies) {
		return "", errors.New("fakeGenerator: no more replies")
	}
	return f.replies[len(f.requests)-1], nil
}

var (
	coldState    = engine.ConversationState{InterestLevel: 2, TurnCount: 2, Phase: engine.PhaseHook}
	curiousState = engine.ConversationState{InterestLevel: 6, TurnCount: 5, Phase: engine.PhaseInvest}
)

func TestRespond_AcceptsFirstValidReply(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"  ok.  "}}
	r := NewResponder(rubric.Default(), gen, discardLogger())

	got, err := r.Respond(context.Background(), coldState, nil, "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok." {
		t.Errorf("reply = %q, want %q", got, "ok.")
	}
	if len(gen.requests) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.requests))
	}
	if gen.requests[0].Temperature != Temperature {
		t.Errorf("temperature = %v, want %v", gen.requests[0].Temperature, Temperature)
	}
}

func TestRespond_RetriesOnceWithViolations(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Why do you ask?", "none of your business."}}
	r := NewResponder(rubric.Default(), gen, discardLogger())

	got, err := r.Respond(context.Background(), coldState, nil, "where are you from")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "none of your business." {
		t.Errorf("reply = %q", got)
	}
	if len(gen.requests) != 2 {
		t.Fatalf("generator called %d times, want 2", len(gen.requests))
	}
	retry := gen.requests[1]
	if retry.Temperature != RetryTemperature {
		t.Errorf("retry temperature = %v, want %v", retry.Temperature, RetryTemperature)
	}
	if !strings.Contains(retry.System, "Why do you ask?") || !strings.Contains(retry.System, "asks a question") {
		t.Errorf("retry prompt should carry the bad reply and its violations:\n%s", retry.System)
	}
}

func TestRespond_ClampsAfterFailedRetry(t *testing.T) {
	gen := &fakeGenerator{replies: []string{
		"What? Who are you? Why are you talking to me?",
		"*sighs* [rolls eyes] Seriously? I am honestly not in the mood for this right now at all.",
	}}
	r := NewResponder(rubric.Default(), gen, discardLogger())

	got, err := r.Respond(context.Background(), coldState, nil, "hey gorgeous")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gen.requests) != 2 {
		t.Fatalf("generator called %d times, want exactly 2", len(gen.requests))
	}
	if got != "*sighs* Seriously I am honestly not in the" {
		t.Errorf("reply = %q", got)
	}
	if strings.Contains(got, "?") {
		t.Errorf("cold reply %q contains a question mark", got)
	}
}

func TestRespond_GeneratorErrorPropagates(t *testing.T) {
	boom := errors.New("upstream timeout")
	gen := &fakeGenerator{err: boom}
	r := NewResponder(rubric.Default(), gen, discardLogger())

	_, err := r.Respond(context.Background(), curiousState, nil, "hi")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if len(gen.requests) != 1 {
		t.Errorf("generator called %d times; network failures are not retried", len(gen.requests))
	}
}

func TestRespond_SendsHistory(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"Haha, fair enough. What about you?"}}
	r := NewResponder(rubric.Default(), gen, discardLogger())

	recent := []engine.Exchange{{Message: "hi", Reply: "hey."}}
	if _, err := r.Respond(context.Background(), curiousState, recent, "you look like a climber"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := gen.requests[0].Messages
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "hey." {
		t.Errorf("history reply = %+v", msgs[1])
	}
	if msgs[2].Role != "user" || msgs[2].Content != "you look like a climber" {
		t.Errorf("new message = %+v", msgs[2])
	}
}

func TestAcceptOrRepair(t *testing.T) {
	r := NewResponder(rubric.Default(), nil, discardLogger())

	tests := []struct {
		name      string
		candidate string
		state     engine.ConversationState
		want      string
	}{
		{"valid kept", "Ha. Maybe.", curiousState, "Ha. Maybe."},
		{"cold question stripped", "why?", coldState, "why"},
		{"empty falls back to example line", "", coldState, "sure."},
		{"only punctuation falls back", "???", coldState, "sure."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.AcceptOrRepair(tt.candidate, tt.state); got != tt.want {
				t.Errorf("AcceptOrRepair(%q) = %q, want %q", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestStylePrompt(t *testing.T) {
	r := rubric.Default()

	early := StylePrompt(r, engine.ConversationState{InterestLevel: 8, TurnCount: 2})
	if !strings.Contains(early, "Do not flirt at all.") {
		t.Error("romance should be suppressed in the first turns")
	}
	if !strings.Contains(early, "Between 6 and 35 words") {
		t.Errorf("interested word range missing:\n%s", early)
	}

	later := StylePrompt(r, engine.ConversationState{InterestLevel: 8, TurnCount: 6})
	if !strings.Contains(later, "Flirt a little about 30% of the time.") {
		t.Errorf("flirt rate missing after suppression window:\n%s", later)
	}

	cold := StylePrompt(r, engine.ConversationState{InterestLevel: 2, TurnCount: 9, ExitRisk: 2})
	for _, want := range []string{"Never ask a question.", "Do not flirt at all.", "close to leaving", "- mm."} {
		if !strings.Contains(cold, want) {
			t.Errorf("cold prompt missing %q:\n%s", want, cold)
		}
	}
}
