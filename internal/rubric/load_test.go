package rubric

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse_Empty(t *testing.T) {
	r, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Tags) != len(Default().Tags) {
		t.Errorf("empty override changed tag table")
	}
}

func TestParse_MergesTagsAndLimits(t *testing.T) {
	doc := `
limits:
  max_sentences: 2
  max_actions: 0
  romance_suppressed_turns: 5
tags:
  negging:
    interest_delta: -2
    exit_risk_delta: 1
    description: backhanded compliment
  tease:
    interest_delta: 2
    exit_risk_delta: 0
`
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Limits.MaxSentences != 2 || r.Limits.RomanceSuppressedTurns != 5 {
		t.Errorf("limits not applied: %+v", r.Limits)
	}
	if eff, ok := r.Tag("negging"); !ok || eff.InterestDelta != -2 {
		t.Errorf("new tag not merged: %+v", eff)
	}
	if eff, _ := r.Tag("tease"); eff.InterestDelta != 2 {
		t.Errorf("override tag not applied: %+v", eff)
	}
	if _, ok := r.Tag("creepy"); !ok {
		t.Error("built-in tags dropped by merge")
	}
}

func TestParse_ReplacesProfile(t *testing.T) {
	doc := `
profiles:
  guarded:
    word_count: {min: 1, max: 6, mean: 3}
    should_ask_back: true
    style_note: terse
`
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := r.ProfileOf(Guarded).WordCount.Max; got != 6 {
		t.Errorf("guarded max = %d, want 6", got)
	}
	if got := r.ProfileOf(Curious).WordCount.Max; got != 25 {
		t.Errorf("curious profile should be untouched, max = %d", got)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantSub string
	}{
		{"unknown field", "colour: blue\n", "parse"},
		{"unknown bucket", "profiles:\n  lukewarm:\n    word_count: {min: 1, max: 2}\n", "unknown bucket"},
		{"gappy bands", "score_bands:\n  - {min_score: 1, max_score: 4, delta: -1}\n  - {min_score: 6, max_score: 10, delta: 1}\n", "score_bands"},
		{"inverted word count", "profiles:\n  cold:\n    word_count: {min: 9, max: 2}\n", "word_count.min"},
		{"termination quality typo", "termination:\n  - {max_interest: 3, quality: deflekt, reason: cooled}\n", "unknown quality"},
		{"termination always fires", "termination:\n  - {reason: always}\n", "no conditions"},
		{"exit risk quality typo", "quality_exit_risk: {skeptic: 1}\n", "quality_exit_risk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rubric.yaml")
	if err := os.WriteFile(path, []byte("limits: {max_sentences: 4, max_actions: 2, romance_suppressed_turns: 1}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Limits.MaxSentences != 4 {
		t.Errorf("max_sentences = %d, want 4", r.Limits.MaxSentences)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Limits != Default().Limits {
		t.Error("empty path should return built-in rubric")
	}
}

func TestMarshal_RoundTripsThroughParse(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Parse(data); err != nil {
		t.Fatalf("marshalled rubric does not parse back: %v", err)
	}
}
