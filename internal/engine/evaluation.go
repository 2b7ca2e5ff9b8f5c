package engine

import "github.com/MikeSquared-Agency/rapport/internal/rubric"

// MaxTags is how many known tags a single evaluation can contribute.
const MaxTags = 2

// Strategy selects how interest is recomputed for a turn. The only
// implementations are Legacy and Trajectory.
type Strategy interface {
	strategy()
}

// Legacy accumulates score and tag deltas onto the previous interest.
type Legacy struct{}

// Trajectory re-anchors interest on a judge's whole-conversation estimate.
type Trajectory struct {
	Score int
}

func (Legacy) strategy()     {}
func (Trajectory) strategy() {}

// StrategyFor picks Trajectory when the judge supplied a trajectory score.
func StrategyFor(trajectoryScore *int) Strategy {
	if trajectoryScore == nil {
		return Legacy{}
	}
	return Trajectory{Score: *trajectoryScore}
}

// EvaluationResult is the judge's verdict on one user message.
type EvaluationResult struct {
	Score    int
	Quality  rubric.Quality
	Tags     []string
	Strategy Strategy
}

// normalized clamps out-of-contract values at the boundary so nothing
// undefined reaches the update rules.
func (ev EvaluationResult) normalized() EvaluationResult {
	out := ev
	out.Score = clamp(ev.Score, 1, 10)
	out.Quality = rubric.ParseQuality(string(ev.Quality))
	switch s := ev.Strategy.(type) {
	case Trajectory:
		out.Strategy = Trajectory{Score: clamp(s.Score, 1, 10)}
	case nil:
		out.Strategy = Legacy{}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
