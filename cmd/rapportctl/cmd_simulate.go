package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

// script is a scripted conversation: the judge's verdicts, in order.
type script struct {
	Seed  int64        `yaml:"seed"`
	Turns []scriptTurn `yaml:"turns"`
}

type scriptTurn struct {
	Score      int      `yaml:"score"`
	Quality    string   `yaml:"quality"`
	Tags       []string `yaml:"tags"`
	Trajectory *int     `yaml:"trajectory"`
}

// simulatedTurn is one line of simulate output.
type simulatedTurn struct {
	Turn     int           `json:"turn"`
	Score    int           `json:"score"`
	Quality  string        `json:"quality"`
	Tags     []string      `json:"tags,omitempty"`
	Interest int           `json:"interest"`
	ExitRisk int           `json:"exit_risk"`
	Bucket   rubric.Bucket `json:"bucket"`
	Phase    engine.Phase  `json:"phase"`
	Ended    bool          `json:"ended,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Line     string        `json:"line,omitempty"`
	Blocked  bool          `json:"blocked,omitempty"`
}

// exampleScript is shown in the simulate help text.
const exampleScript = `  seed: 3
  turns:
    - {score: 7, quality: positive, tags: [humor]}
    - {score: 4, quality: deflect}
    - {score: 8, quality: positive, trajectory: 7}
`

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate <script.yaml>",
		Short: "Replay scripted evaluations through the engine",
		Long: `Replay scripted evaluations through the engine without calling any model.

The script lists the judge's verdict for each user turn:

` + exampleScript + `
Turns after the conversation ends are reported as blocked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			var sc script
			if err := yaml.Unmarshal(data, &sc); err != nil {
				return fmt.Errorf("parse script %s: %w", args[0], err)
			}

			results, err := simulate(eng, sc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return writeJSON(out, results)
			}
			for _, r := range results {
				if r.Blocked {
					fmt.Fprintf(out, "turn %d  blocked: %s\n", r.Turn, r.Line)
					continue
				}
				fmt.Fprintf(out, "turn %d  score=%d quality=%s  interest=%d exit_risk=%d bucket=%s phase=%s\n",
					r.Turn, r.Score, r.Quality, r.Interest, r.ExitRisk, r.Bucket, r.Phase)
				if r.Ended {
					fmt.Fprintf(out, "        ended (%s): %s\n", r.Reason, r.Line)
				}
			}
			return nil
		},
	}
}

func simulate(eng *engine.Engine, sc script) ([]simulatedTurn, error) {
	state := engine.StartConversation(sc.Seed)
	results := make([]simulatedTurn, 0, len(sc.Turns))

	for i, t := range sc.Turns {
		ev := engine.EvaluationResult{
			Score:    t.Score,
			Quality:  rubric.Quality(t.Quality),
			Tags:     t.Tags,
			Strategy: engine.StrategyFor(t.Trajectory),
		}
		turn, err := eng.AdvanceTurn(state, ev)
		if errors.Is(err, engine.ErrConversationEnded) {
			results = append(results, simulatedTurn{Turn: i + 1, Blocked: true, Line: engine.BlockedResponse})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i+1, err)
		}

		state = turn.State
		r := simulatedTurn{
			Turn:     state.TurnCount,
			Score:    t.Score,
			Quality:  t.Quality,
			Tags:     t.Tags,
			Interest: state.InterestLevel,
			ExitRisk: state.ExitRisk,
			Bucket:   state.Bucket(),
			Phase:    state.Phase,
			Ended:    turn.Ended,
			Reason:   turn.Reason,
		}
		if turn.Ended {
			r.Line, state = eng.PickLine(state, rubric.StyleExit)
		}
		results = append(results, r)
	}
	return results, nil
}
