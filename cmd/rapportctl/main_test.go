package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/rapport/internal/config"
	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

// run executes rapportctl with args and returns stdout.
func run(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const endingScript = `seed: 0
turns:
  - {score: 7, quality: neutral}
  - {score: 1, quality: skeptical, tags: [creepy]}
  - {score: 9, quality: positive}
`

func TestSimulate_JSON(t *testing.T) {
	path := writeFile(t, "script.yaml", endingScript)

	out, err := run(t, config.Config{}, "simulate", "--json", path)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var turns []simulatedTurn
	if err := json.Unmarshal([]byte(out), &turns); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}

	if turns[0].Interest != 5 || turns[0].ExitRisk != 0 || turns[0].Bucket != rubric.Guarded || turns[0].Ended {
		t.Errorf("turn 1: %+v", turns[0])
	}
	if !turns[1].Ended || turns[1].Reason != rubric.ReasonDone {
		t.Errorf("turn 2 should end the conversation: %+v", turns[1])
	}
	if turns[1].Line != "I have to go. Bye." {
		t.Errorf("turn 2 exit line: got %q", turns[1].Line)
	}
	if !turns[2].Blocked || turns[2].Line != engine.BlockedResponse {
		t.Errorf("turn 3 should be blocked: %+v", turns[2])
	}
}

func TestSimulate_Text(t *testing.T) {
	path := writeFile(t, "script.yaml", endingScript)

	out, err := run(t, config.Config{}, "simulate", path)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for _, want := range []string{"turn 1  score=7", "ended (" + rubric.ReasonDone + ")", "turn 3  blocked"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimulate_Trajectory(t *testing.T) {
	path := writeFile(t, "script.yaml", "turns:\n  - {score: 5, quality: neutral, trajectory: 3}\n")

	out, err := run(t, config.Config{}, "simulate", "--json", path)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var turns []simulatedTurn
	json.Unmarshal([]byte(out), &turns)
	if len(turns) != 1 || turns[0].Interest != 3 || turns[0].Bucket != rubric.Cold {
		t.Errorf("interest should re-anchor on the trajectory score: %+v", turns)
	}
}

func TestSimulate_HelpExample(t *testing.T) {
	doc := strings.TrimPrefix(strings.ReplaceAll(exampleScript, "\n  ", "\n"), "  ")
	path := writeFile(t, "example.yaml", doc)

	var sc script
	if err := yaml.Unmarshal([]byte(doc), &sc); err != nil {
		t.Fatalf("help example is not valid YAML: %v", err)
	}
	r := rubric.Default()
	for i, turn := range sc.Turns {
		for _, tag := range turn.Tags {
			if _, ok := r.Tag(tag); !ok {
				t.Errorf("turn %d: help example uses unknown tag %q", i+1, tag)
			}
		}
	}

	if _, err := run(t, config.Config{}, "simulate", path); err != nil {
		t.Fatalf("simulate help example: %v", err)
	}
}

func TestSimulate_Errors(t *testing.T) {
	if _, err := run(t, config.Config{}, "simulate", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing script")
	}
	bad := writeFile(t, "bad.yaml", "turns: [not: a: list")
	if _, err := run(t, config.Config{}, "simulate", bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := run(t, config.Config{}, "simulate"); err == nil {
		t.Error("expected error without a script argument")
	}
}

func TestCheck(t *testing.T) {
	out, err := run(t, config.Config{}, "check", "--json", "--interest", "2", "Oh wow, that's such a fun question! What about you?")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var res checkResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Bucket != rubric.Cold {
		t.Errorf("expected cold bucket, got %s", res.Bucket)
	}
	if len(res.Violations) == 0 {
		t.Error("expected violations for an eager cold reply")
	}
	if strings.Contains(res.Clamped, "?") {
		t.Errorf("cold clamp must drop questions: %q", res.Clamped)
	}
	if n := len(strings.Fields(res.Clamped)); n > 8 {
		t.Errorf("cold clamp must keep at most 8 words, got %d", n)
	}
}

func TestCheck_Clean(t *testing.T) {
	out, err := run(t, config.Config{}, "check", "--interest", "6", "Ha, fair enough. What do you do?")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("expected ok for a reply inside the curious envelope:\n%s", out)
	}
}

func TestRubric(t *testing.T) {
	out, err := run(t, config.Config{}, "rubric")
	if err != nil {
		t.Fatalf("rubric: %v", err)
	}
	for _, want := range []string{"score_bands:", "creepy:", "max_sentences: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("rubric output missing %q", want)
		}
	}
}

func TestRubric_Override(t *testing.T) {
	override := writeFile(t, "rubric.yaml", "tags:\n  negging:\n    interest_delta: -2\n    exit_risk_delta: 1\n")

	out, err := run(t, config.Config{}, "rubric", "--json", "--rubric", override)
	if err != nil {
		t.Fatalf("rubric: %v", err)
	}
	var r rubric.Rubric
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if r.Tags["negging"].InterestDelta != -2 {
		t.Errorf("override tag missing: %+v", r.Tags["negging"])
	}
	if _, ok := r.Tags["creepy"]; !ok {
		t.Error("built-in tags should survive an override")
	}
}

func TestStart(t *testing.T) {
	cfg := config.Config{SessionDB: filepath.Join(t.TempDir(), "sessions.db")}

	out, err := run(t, cfg, "start", "--json", "--seed", "3")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	var res struct {
		ID    string                   `json:"id"`
		State engine.ConversationState `json:"state"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.ID == "" || res.State.Seed != 3 || res.State.InterestLevel != engine.DefaultInterest {
		t.Errorf("unexpected start output: %+v", res)
	}
}

func TestSay_RequiresAPIKey(t *testing.T) {
	cfg := config.Config{SessionDB: filepath.Join(t.TempDir(), "sessions.db")}
	if _, err := run(t, cfg, "say", "hello"); err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestSay_NoConversations(t *testing.T) {
	cfg := config.Config{
		SessionDB:       filepath.Join(t.TempDir(), "sessions.db"),
		AnthropicAPIKey: "sk-test",
	}
	if _, err := run(t, cfg, "say", "hello"); err == nil || !strings.Contains(err.Error(), "rapportctl start") {
		t.Errorf("expected hint to start a conversation, got %v", err)
	}
}
