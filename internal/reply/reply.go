// Package reply produces the simulated partner's text for a turn: generate,
// validate, retry once with the violations, then clamp.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/anthropic"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/textguard"
)

// Sampling temperatures for the first attempt and the single retry.
const (
	Temperature      = 0.9
	RetryTemperature = 0.5
)

const maxTokens = 200

// Request is one generation call.
type Request struct {
	System      string
	Messages    []anthropic.Message
	Temperature float64
}

// Generator produces a raw candidate reply.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// LLM generates replies with the Anthropic API.
type LLM struct {
	client *anthropic.Client
}

func NewLLM(client *anthropic.Client) *LLM {
	return &LLM{client: client}
}

func (g *LLM) Generate(ctx context.Context, req Request) (string, error) {
	return g.client.Send(ctx, anthropic.Params{
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	})
}

type Responder struct {
	rubric *rubric.Rubric
	gen    Generator
	logger *slog.Logger
}

func NewResponder(r *rubric.Rubric, gen Generator, logger *slog.Logger) *Responder {
	return &Responder{rubric: r, gen: gen, logger: logger}
}

// Respond generates her reply to message for state s, which is the state
// after the turn was applied. Generator errors are returned; text that breaks
// the envelope never is.
func (r *Responder) Respond(ctx context.Context, s engine.ConversationState, recent []engine.Exchange, message string) (string, error) {
	system := StylePrompt(r.rubric, s)
	messages := transcript(recent, message)
	profile := r.rubric.ProfileOf(s.Bucket())

	temps := []float64{Temperature, RetryTemperature}
	var candidate string
	var violations []textguard.Violation
	for attempt, temp := range temps {
		prompt := system
		if attempt > 0 {
			prompt += retryNote(candidate, violations)
		}
		text, err := r.gen.Generate(ctx, Request{System: prompt, Messages: messages, Temperature: temp})
		if err != nil {
			return "", fmt.Errorf("generate reply: %w", err)
		}
		candidate = strings.TrimSpace(text)
		violations = textguard.Validate(candidate, profile, r.rubric.Limits)
		if len(violations) == 0 {
			return candidate, nil
		}
		r.logger.Warn("reply broke style envelope",
			"attempt", attempt+1,
			"bucket", s.Bucket(),
			"violations", textguard.Strings(violations),
		)
	}
	return r.AcceptOrRepair(candidate, s), nil
}

// AcceptOrRepair returns candidate if it fits the state's bucket, otherwise
// its clamped form. A candidate that clamps to nothing is replaced by one of
// the bucket's example lines.
func (r *Responder) AcceptOrRepair(candidate string, s engine.ConversationState) string {
	profile := r.rubric.ProfileOf(s.Bucket())
	out, _ := textguard.Repair(candidate, profile, r.rubric.Limits)
	if out != "" {
		return out
	}
	if len(profile.ExampleLines) == 0 {
		return ""
	}
	line := profile.ExampleLines[s.TurnCount%len(profile.ExampleLines)]
	return textguard.Clamp(line, profile, r.rubric.Limits)
}

// transcript renders history as alternating user/assistant turns followed by
// the new message.
func transcript(recent []engine.Exchange, message string) []anthropic.Message {
	out := make([]anthropic.Message, 0, 2*len(recent)+1)
	for _, ex := range recent {
		out = append(out,
			anthropic.Message{Role: "user", Content: ex.Message},
			anthropic.Message{Role: "assistant", Content: ex.Reply},
		)
	}
	return append(out, anthropic.Message{Role: "user", Content: message})
}
