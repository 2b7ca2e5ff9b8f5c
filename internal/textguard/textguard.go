// Package textguard checks generated replies against a bucket's envelope and
// deterministically rewrites replies that do not fit.
package textguard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

// Rule identifies which constraint a reply broke.
type Rule string

const (
	RuleEmpty     Rule = "empty"
	RuleWords     Rule = "too_many_words"
	RuleSentences Rule = "too_many_sentences"
	RuleActions   Rule = "too_many_actions"
	RuleQuestion  Rule = "asked_question"
)

// Violation is one broken constraint. Got and Limit are zero for rules that
// are not counts.
type Violation struct {
	Rule  Rule
	Got   int
	Limit int
}

func (v Violation) String() string {
	switch v.Rule {
	case RuleEmpty:
		return "reply is empty"
	case RuleWords:
		return fmt.Sprintf("too many words (%d, max %d)", v.Got, v.Limit)
	case RuleSentences:
		return fmt.Sprintf("too many sentences (%d, max %d)", v.Got, v.Limit)
	case RuleActions:
		return fmt.Sprintf("too many action markers (%d, max %d)", v.Got, v.Limit)
	case RuleQuestion:
		return "asks a question; she does not ask anything back right now"
	default:
		return string(v.Rule)
	}
}

// Strings renders violations for prompts and logs.
func Strings(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

// actionRe matches stage directions: [laughs] or *laughs*.
var actionRe = regexp.MustCompile(`\[[^\]]*\]|\*[^*\n]+\*`)

// sentenceRe matches a run of text up to and including its terminators, or a
// trailing run with no terminator.
var sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)

// Validate reports every constraint text breaks for profile p. A nil result
// means the reply is acceptable as is.
func Validate(text string, p rubric.Profile, l rubric.GlobalLimits) []Violation {
	if strings.TrimSpace(text) == "" {
		return []Violation{{Rule: RuleEmpty}}
	}

	var out []Violation
	if n := WordCount(text); n > p.WordCount.Max {
		out = append(out, Violation{Rule: RuleWords, Got: n, Limit: p.WordCount.Max})
	}
	if n := len(sentences(text)); n > l.MaxSentences {
		out = append(out, Violation{Rule: RuleSentences, Got: n, Limit: l.MaxSentences})
	}
	if n := len(actionRe.FindAllStringIndex(text, -1)); n > l.MaxActions {
		out = append(out, Violation{Rule: RuleActions, Got: n, Limit: l.MaxActions})
	}
	if !p.ShouldAskBack && strings.Contains(text, "?") {
		out = append(out, Violation{Rule: RuleQuestion})
	}
	return out
}

// Clamp rewrites text to fit p. It keeps the first action marker, the first
// MaxSentences sentences and at most WordCount.Max words, strips every '?'
// when the bucket never asks back, and collapses whitespace. The result may
// end mid-sentence.
func Clamp(text string, p rubric.Profile, l rubric.GlobalLimits) string {
	text = keepFirstAction(text, l.MaxActions)

	parts := sentences(text)
	if len(parts) > l.MaxSentences {
		parts = parts[:max(l.MaxSentences, 1)]
	}
	text = strings.Join(parts, " ")

	if !p.ShouldAskBack {
		text = strings.ReplaceAll(text, "?", "")
	}

	words := strings.Fields(text)
	if len(words) > p.WordCount.Max {
		words = words[:p.WordCount.Max]
	}
	return strings.Join(words, " ")
}

// Repair returns text unchanged when it validates, otherwise its clamped form.
// The violations found on the original text are returned either way.
func Repair(text string, p rubric.Profile, l rubric.GlobalLimits) (string, []Violation) {
	vs := Validate(text, p, l)
	if len(vs) == 0 {
		return text, nil
	}
	return Clamp(text, p, l), vs
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// sentences splits text on . ! and ? and drops pieces with no words.
func sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if strings.Trim(s, ".!? \t\n") == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func keepFirstAction(text string, maxActions int) string {
	seen := 0
	return actionRe.ReplaceAllStringFunc(text, func(m string) string {
		seen++
		if seen > 1 || maxActions == 0 {
			return ""
		}
		return m
	})
}
