// Package rubric holds the static tables that drive the interest simulation:
// per-bucket behavioural envelopes, score and tag deltas, pacing caps and the
// ordered termination rules.
package rubric

import (
	"errors"
	"fmt"
	"sort"
)

// Bucket is one of four ordered interest categories.
type Bucket string

const (
	Cold       Bucket = "cold"
	Guarded    Bucket = "guarded"
	Curious    Bucket = "curious"
	Interested Bucket = "interested"
)

// Buckets lists every bucket from coldest to warmest.
var Buckets = []Bucket{Cold, Guarded, Curious, Interested}

// BucketOf maps an interest level to its bucket. Values below 1 are treated
// as cold and values above 10 as interested, so every int has a bucket.
func BucketOf(interest int) Bucket {
	switch {
	case interest <= 3:
		return Cold
	case interest <= 5:
		return Guarded
	case interest <= 7:
		return Curious
	default:
		return Interested
	}
}

// Quality is the evaluator's coarse read of a user message.
type Quality string

const (
	Positive  Quality = "positive"
	Neutral   Quality = "neutral"
	Deflect   Quality = "deflect"
	Skeptical Quality = "skeptical"
)

// ParseQuality normalises an evaluator label. Unknown labels read as neutral.
func ParseQuality(s string) Quality {
	switch Quality(s) {
	case Positive, Neutral, Deflect, Skeptical:
		return Quality(s)
	default:
		return Neutral
	}
}

func validQuality(q Quality) bool {
	switch q {
	case Positive, Neutral, Deflect, Skeptical:
		return true
	}
	return false
}

// Negative reports whether the quality raises tension.
func (q Quality) Negative() bool {
	return q == Deflect || q == Skeptical
}

// WordCount bounds the length of a reply in words.
type WordCount struct {
	Min  int `yaml:"min" json:"min"`
	Max  int `yaml:"max" json:"max"`
	Mean int `yaml:"mean" json:"mean"`
}

// StyleRates are target frequencies of the non-engaging reply styles.
type StyleRates struct {
	Deflect float64 `yaml:"deflect" json:"deflect"`
	Busy    float64 `yaml:"busy" json:"busy"`
	Test    float64 `yaml:"test" json:"test"`
	Exit    float64 `yaml:"exit" json:"exit"`
}

// Profile is the behavioural envelope of one bucket.
type Profile struct {
	WordCount     WordCount  `yaml:"word_count" json:"word_count"`
	ShouldAskBack bool       `yaml:"should_ask_back" json:"should_ask_back"`
	StyleRates    StyleRates `yaml:"style_rates" json:"style_rates"`
	FlirtRate     float64    `yaml:"flirt_rate" json:"flirt_rate"`
	StyleNote     string     `yaml:"style_note" json:"style_note"`
	ExampleLines  []string   `yaml:"example_lines,omitempty" json:"example_lines,omitempty"`
}

// GlobalLimits apply to every bucket.
type GlobalLimits struct {
	MaxSentences           int `yaml:"max_sentences" json:"max_sentences"`
	MaxActions             int `yaml:"max_actions" json:"max_actions"`
	RomanceSuppressedTurns int `yaml:"romance_suppressed_turns" json:"romance_suppressed_turns"`
}

// TagEffect is the fixed consequence of an evaluator tag.
type TagEffect struct {
	InterestDelta int    `yaml:"interest_delta" json:"interest_delta"`
	ExitRiskDelta int    `yaml:"exit_risk_delta" json:"exit_risk_delta"`
	Description   string `yaml:"description" json:"description"`
}

// ScoreBand maps an inclusive score range to an interest delta.
type ScoreBand struct {
	MinScore int `yaml:"min_score" json:"min_score"`
	MaxScore int `yaml:"max_score" json:"max_score"`
	Delta    int `yaml:"delta" json:"delta"`
}

// PacingBand caps interest while the turn number is at most TurnMax.
type PacingBand struct {
	TurnMax     int `yaml:"turn_max" json:"turn_max"`
	MaxInterest int `yaml:"max_interest" json:"max_interest"`
}

// TerminationRule ends the conversation when every condition holds.
// Zero-valued conditions and an empty Quality match anything.
type TerminationRule struct {
	MaxInterest int     `yaml:"max_interest" json:"max_interest"`
	MinExitRisk int     `yaml:"min_exit_risk" json:"min_exit_risk"`
	MinTurn     int     `yaml:"min_turn" json:"min_turn"`
	Quality     Quality `yaml:"quality,omitempty" json:"quality,omitempty"`
	Reason      string  `yaml:"reason" json:"reason"`
}

// Matches reports whether the rule fires for the given post-update values.
func (r TerminationRule) Matches(interest, exitRisk, turn int, q Quality) bool {
	if r.MaxInterest > 0 && interest > r.MaxInterest {
		return false
	}
	if exitRisk < r.MinExitRisk || turn < r.MinTurn {
		return false
	}
	return r.Quality == "" || r.Quality == q
}

// Rubric bundles every table the engine reads. Treat it as immutable once
// handed to an engine.
type Rubric struct {
	Profiles        map[Bucket]Profile   `yaml:"profiles" json:"profiles"`
	Limits          GlobalLimits         `yaml:"limits" json:"limits"`
	ScoreBands      []ScoreBand          `yaml:"score_bands" json:"score_bands"`
	TrajectoryBands []ScoreBand          `yaml:"trajectory_bands" json:"trajectory_bands"`
	Tags            map[string]TagEffect `yaml:"tags" json:"tags"`
	QualityExitRisk map[Quality]int      `yaml:"quality_exit_risk" json:"quality_exit_risk"`
	Pacing          []PacingBand         `yaml:"pacing" json:"pacing"`
	Termination     []TerminationRule    `yaml:"termination" json:"termination"`
	CannedLines     map[string][]string  `yaml:"canned_lines" json:"canned_lines"`
}

// ProfileOf returns the envelope for a bucket.
func (r *Rubric) ProfileOf(b Bucket) Profile {
	return r.Profiles[b]
}

// Tag looks up a tag effect. Unknown tags have no effect.
func (r *Rubric) Tag(name string) (TagEffect, bool) {
	eff, ok := r.Tags[name]
	return eff, ok
}

// ScoreDelta is the legacy-mode interest delta for a score.
func (r *Rubric) ScoreDelta(score int) int {
	return bandDelta(r.ScoreBands, score)
}

// LineDelta is the trajectory-mode nudge for a score.
func (r *Rubric) LineDelta(score int) int {
	return bandDelta(r.TrajectoryBands, score)
}

func bandDelta(bands []ScoreBand, score int) int {
	for _, b := range bands {
		if score >= b.MinScore && score <= b.MaxScore {
			return b.Delta
		}
	}
	return 0
}

// Validate checks the structural invariants of the tables.
func (r *Rubric) Validate() error {
	var errs []error

	for _, b := range Buckets {
		p, ok := r.Profiles[b]
		if !ok {
			errs = append(errs, fmt.Errorf("profile %s: missing", b))
			continue
		}
		if p.WordCount.Max < 1 {
			errs = append(errs, fmt.Errorf("profile %s: word_count.max must be >= 1", b))
		}
		if p.WordCount.Min > p.WordCount.Max {
			errs = append(errs, fmt.Errorf("profile %s: word_count.min %d > max %d", b, p.WordCount.Min, p.WordCount.Max))
		}
	}
	if r.Profiles[Cold].ShouldAskBack {
		errs = append(errs, errors.New("profile cold: should_ask_back must be false"))
	}

	if r.Limits.MaxSentences < 1 {
		errs = append(errs, errors.New("limits: max_sentences must be >= 1"))
	}
	if r.Limits.MaxActions < 0 {
		errs = append(errs, errors.New("limits: max_actions must be >= 0"))
	}

	if err := validateBands("score_bands", r.ScoreBands); err != nil {
		errs = append(errs, err)
	}
	if err := validateBands("trajectory_bands", r.TrajectoryBands); err != nil {
		errs = append(errs, err)
	}

	prev := 0
	for i, p := range r.Pacing {
		if p.TurnMax <= prev {
			errs = append(errs, fmt.Errorf("pacing[%d]: turn_max %d not increasing", i, p.TurnMax))
		}
		if p.MaxInterest < 1 || p.MaxInterest > 10 {
			errs = append(errs, fmt.Errorf("pacing[%d]: max_interest %d outside [1,10]", i, p.MaxInterest))
		}
		prev = p.TurnMax
	}

	if len(r.Termination) == 0 {
		errs = append(errs, errors.New("termination: no rules"))
	}
	for i, t := range r.Termination {
		if t.Reason == "" {
			errs = append(errs, fmt.Errorf("termination[%d]: empty reason", i))
		}
		if t.Quality != "" && !validQuality(t.Quality) {
			errs = append(errs, fmt.Errorf("termination[%d]: unknown quality %q", i, t.Quality))
		}
		if t.MaxInterest == 0 && t.MinExitRisk == 0 && t.MinTurn == 0 && t.Quality == "" {
			errs = append(errs, fmt.Errorf("termination[%d]: rule has no conditions", i))
		}
	}

	var unknown []string
	for q := range r.QualityExitRisk {
		if !validQuality(q) {
			unknown = append(unknown, string(q))
		}
	}
	sort.Strings(unknown)
	for _, q := range unknown {
		errs = append(errs, fmt.Errorf("quality_exit_risk: unknown quality %q", q))
	}

	return errors.Join(errs...)
}

// validateBands requires the bands, in order, to tile 1..10 exactly.
func validateBands(name string, bands []ScoreBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("%s: empty", name)
	}
	sorted := make([]ScoreBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })

	next := 1
	for _, b := range sorted {
		if b.MinScore > b.MaxScore {
			return fmt.Errorf("%s: band %d-%d inverted", name, b.MinScore, b.MaxScore)
		}
		if b.MinScore != next {
			return fmt.Errorf("%s: expected band starting at %d, got %d", name, next, b.MinScore)
		}
		next = b.MaxScore + 1
	}
	if next != 11 {
		return fmt.Errorf("%s: bands end at %d, want 10", name, next-1)
	}
	return nil
}
