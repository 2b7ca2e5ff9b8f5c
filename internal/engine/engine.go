// Package engine advances the simulated partner's interest and exit risk one
// turn at a time and decides when she ends the conversation.
//
// Every method is a pure function of its arguments. Callers own the
// ConversationState and must serialize turns for the same conversation.
package engine

import (
	"fmt"

	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

// Engine applies a rubric. It holds no per-conversation state and is safe
// for concurrent use.
type Engine struct {
	rubric       *rubric.Rubric
	realismNotch int
}

// New creates an engine. realismNotch is added to every turn's exit-risk
// change; 0 is the normal difficulty.
func New(r *rubric.Rubric, realismNotch int) *Engine {
	if r == nil {
		r = rubric.Default()
	}
	return &Engine{rubric: r, realismNotch: realismNotch}
}

// Rubric returns the tables the engine applies.
func (e *Engine) Rubric() *rubric.Rubric {
	return e.rubric
}

// Turn is the result of one accepted user turn.
type Turn struct {
	State  ConversationState
	Ended  bool
	Reason string
}

// AdvanceTurn applies one evaluation to prev and returns the next state.
// An ended state is returned unchanged together with ErrConversationEnded.
func (e *Engine) AdvanceTurn(prev ConversationState, ev EvaluationResult) (Turn, error) {
	if prev.IsEnded {
		return Turn{State: prev, Ended: true, Reason: prev.EndReason}, ErrConversationEnded
	}
	ev = ev.normalized()

	next := prev.Clone()
	next.TurnCount++
	next.NeutralStreak = streak(prev.NeutralStreak, ev.Score >= 5)
	next.HighStreak = streak(prev.HighStreak, ev.Score >= 7)

	tags := e.applicableTags(ev.Tags)
	next.ExitRisk = e.exitRisk(prev.ExitRisk, ev.Quality, tags)

	var interest int
	switch s := ev.Strategy.(type) {
	case Trajectory:
		// Tags are already reflected in the trajectory score.
		interest = s.Score + e.rubric.LineDelta(ev.Score)
	case Legacy:
		interest = prev.InterestLevel + e.legacyDelta(prev.Phase, next.NeutralStreak, ev.Score, tags)
	default:
		panic(fmt.Sprintf("engine: unhandled strategy %T", s))
	}
	interest = e.CapPacing(interest, next.TurnCount)
	next.InterestLevel = clamp(interest, 1, 10)
	next.Phase = nextPhase(prev.Phase, next)

	reason, ended := e.Terminate(next.InterestLevel, next.ExitRisk, next.TurnCount, ev.Quality)
	if ended {
		next.IsEnded = true
		next.EndReason = reason
	}
	return Turn{State: next, Ended: ended, Reason: reason}, nil
}

// CapPacing limits interest during the opening turns. The first band whose
// TurnMax is at least turn applies; past the last band interest is uncapped.
func (e *Engine) CapPacing(interest, turn int) int {
	for _, band := range e.rubric.Pacing {
		if band.TurnMax >= turn {
			return min(interest, band.MaxInterest)
		}
	}
	return interest
}

// Terminate runs the ordered termination rules; the first match wins.
func (e *Engine) Terminate(interest, exitRisk, turn int, q rubric.Quality) (string, bool) {
	for _, rule := range e.rubric.Termination {
		if rule.Matches(interest, exitRisk, turn, q) {
			return rule.Reason, true
		}
	}
	return "", false
}

// applicableTags resolves the first MaxTags distinct known tags. Unknown tags
// are skipped without error.
func (e *Engine) applicableTags(tags []string) []rubric.TagEffect {
	var out []rubric.TagEffect
	seen := make(map[string]bool, len(tags))
	for _, name := range tags {
		if len(out) == MaxTags {
			break
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if eff, ok := e.rubric.Tag(name); ok {
			out = append(out, eff)
		}
	}
	return out
}

func (e *Engine) exitRisk(prev int, q rubric.Quality, tags []rubric.TagEffect) int {
	delta := 0
	for _, t := range tags {
		delta += t.ExitRiskDelta
	}
	delta += e.rubric.QualityExitRisk[q]
	if !q.Negative() {
		delta--
	}
	delta += e.realismNotch
	return clamp(prev+delta, 0, 3)
}

func (e *Engine) legacyDelta(phase Phase, neutralStreak, score int, tags []rubric.TagEffect) int {
	delta := e.rubric.ScoreDelta(score)
	// Established phases floor a 3-4 score at zero.
	if phase.Established() && score >= 3 && score <= 4 && delta < 0 {
		delta = 0
	}
	for _, t := range tags {
		delta += t.InterestDelta
	}
	if neutralStreak >= 3 && score >= 5 && score <= 6 {
		delta++
	}
	return delta
}

func streak(prev int, hit bool) int {
	if hit {
		return prev + 1
	}
	return 0
}

// nextPhase only moves forward, except that an established phase falls back
// to vibe once interest drops to 4 or below.
func nextPhase(prev Phase, s ConversationState) Phase {
	if prev.Established() && s.InterestLevel <= 4 {
		return PhaseVibe
	}

	candidate := PhaseOpener
	switch {
	case s.InterestLevel >= 8 && s.HighStreak >= 2 && s.TurnCount >= 4:
		candidate = PhaseClose
	case s.InterestLevel >= 6 && s.TurnCount >= 4:
		candidate = PhaseInvest
	case s.TurnCount >= 3:
		candidate = PhaseVibe
	case s.TurnCount >= 1:
		candidate = PhaseHook
	}
	if candidate.rank() > prev.rank() {
		return candidate
	}
	return prev
}
