// Package evaluator asks an LLM judge to rate one user message and turns the
// verdict into an engine.EvaluationResult.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/anthropic"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

const maxTokens = 512

// Input is everything the judge sees for one turn.
type Input struct {
	State   engine.ConversationState
	Recent  []engine.Exchange
	Message string
}

type Evaluator struct {
	llm        *anthropic.Client
	rubric     *rubric.Rubric
	trajectory bool
	logger     *slog.Logger
}

// New creates an evaluator. With trajectory set the judge is also asked for
// a whole-conversation interest estimate, which switches the engine to
// trajectory mode for that turn.
func New(llm *anthropic.Client, r *rubric.Rubric, trajectory bool, logger *slog.Logger) *Evaluator {
	return &Evaluator{llm: llm, rubric: r, trajectory: trajectory, logger: logger}
}

type verdict struct {
	Score           *int     `json:"score"`
	Quality         string   `json:"quality"`
	Tags            []string `json:"tags"`
	TrajectoryScore *int     `json:"trajectory_score"`
	Reason          string   `json:"reason"`
}

// Evaluate rates in.Message. LLM and parse failures are returned unchanged
// so the caller can leave the conversation untouched.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (engine.EvaluationResult, error) {
	messages := []anthropic.Message{
		{Role: "user", Content: e.userPrompt(in)},
	}

	raw, err := e.llm.Send(ctx, anthropic.Params{
		System:      e.systemPrompt(),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return engine.EvaluationResult{}, fmt.Errorf("llm evaluation: %w", err)
	}

	v, err := parseVerdict(raw)
	if err != nil {
		e.logger.Error("failed to parse judge verdict", "error", err, "raw", raw)
		return engine.EvaluationResult{}, fmt.Errorf("parse verdict: %w", err)
	}
	if !e.trajectory {
		v.TrajectoryScore = nil
	}

	res := v.result()
	e.logger.Debug("message judged",
		"turn", in.State.TurnCount+1,
		"score", res.Score,
		"quality", res.Quality,
		"tags", res.Tags,
		"trajectory", v.TrajectoryScore != nil,
		"reason", v.Reason,
	)
	return res, nil
}

func (e *Evaluator) systemPrompt() string {
	names := make([]string, 0, len(e.rubric.Tags))
	for name := range e.rubric.Tags {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %s\n", name, e.rubric.Tags[name].Description)
	}

	extra := ""
	if e.trajectory {
		extra = trajectorySection
	}
	return fmt.Sprintf(systemPrompt, sb.String(), extra)
}

func (e *Evaluator) userPrompt(in Input) string {
	var sb strings.Builder
	if len(in.Recent) == 0 {
		sb.WriteString("(nothing yet; this is the opener)")
	}
	for i, ex := range in.Recent {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "User: %s\nHer: %s", ex.Message, ex.Reply)
	}

	schema := legacySchema
	if e.trajectory {
		schema = trajectorySchema
	}
	s := in.State
	return fmt.Sprintf(userPrompt, s.TurnCount+1, s.Phase, s.InterestLevel, s.ExitRisk, sb.String(), in.Message, schema)
}

// parseVerdict accepts the bare JSON object or one wrapped in prose or
// markdown fences.
func parseVerdict(raw string) (verdict, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return verdict{}, errors.New("no JSON object in response")
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return verdict{}, err
	}
	if v.Score == nil {
		return verdict{}, errors.New("verdict has no score")
	}
	return v, nil
}

// result clamps the verdict into the engine's input domain. Tags are
// normalized but not filtered; the engine ignores names it does not know.
func (v verdict) result() engine.EvaluationResult {
	tags := make([]string, 0, len(v.Tags))
	for _, t := range v.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}

	var traj *int
	if v.TrajectoryScore != nil {
		ts := clamp(*v.TrajectoryScore)
		traj = &ts
	}

	return engine.EvaluationResult{
		Score:    clamp(*v.Score),
		Quality:  rubric.ParseQuality(strings.ToLower(strings.TrimSpace(v.Quality))),
		Tags:     tags,
		Strategy: engine.StrategyFor(traj),
	}
}

func clamp(v int) int {
	return min(max(v, 1), 10)
}
