package rubric

// Reply styles with canned lines.
const (
	StyleDeflect = "deflect"
	StyleBusy    = "busy"
	StyleTest    = "test"
	StyleExit    = "exit"
)

// Termination reasons of the built-in rules.
const (
	ReasonDone       = "she is done / uncomfortable"
	ReasonAnnoyed    = "low interest + annoyance"
	ReasonNotWarming = "cold and not warming up"
)

// Default returns a fresh copy of the built-in rubric. Callers may mutate the
// result without affecting later calls.
func Default() *Rubric {
	return &Rubric{
		Profiles: map[Bucket]Profile{
			Cold: {
				WordCount:     WordCount{Min: 1, Max: 8, Mean: 4},
				ShouldAskBack: false,
				StyleRates:    StyleRates{Deflect: 0.40, Busy: 0.30, Test: 0.15, Exit: 0.15},
				FlirtRate:     0,
				StyleNote:     "Flat and distracted. One short line, no follow-up, never asks anything back.",
				ExampleLines:  []string{"mm.", "ok.", "sure.", "I'm kind of busy."},
			},
			Guarded: {
				WordCount:     WordCount{Min: 2, Max: 15, Mean: 8},
				ShouldAskBack: true,
				StyleRates:    StyleRates{Deflect: 0.25, Busy: 0.10, Test: 0.30, Exit: 0.05},
				FlirtRate:     0.05,
				StyleNote:     "Polite but reserved. Short answers, the odd light test, rarely asks back.",
				ExampleLines:  []string{"Haha maybe.", "Why do you ask?", "I'm just waiting for a friend."},
			},
			Curious: {
				WordCount:     WordCount{Min: 4, Max: 25, Mean: 12},
				ShouldAskBack: true,
				StyleRates:    StyleRates{Deflect: 0.10, Busy: 0.05, Test: 0.25, Exit: 0},
				FlirtRate:     0.15,
				StyleNote:     "Engaged and a little playful. Gives some detail, sometimes asks back, still tests.",
				ExampleLines:  []string{"Okay that's actually funny.", "Wait, how did you guess that?", "You're kind of weird. I like it."},
			},
			Interested: {
				WordCount:     WordCount{Min: 6, Max: 35, Mean: 18},
				ShouldAskBack: true,
				StyleRates:    StyleRates{Deflect: 0.05, Busy: 0, Test: 0.15, Exit: 0},
				FlirtRate:     0.30,
				StyleNote:     "Warm and invested. Shares things about herself, teases back and keeps the thread going.",
				ExampleLines:  []string{"Okay you have my attention.", "I was literally just thinking that.", "So what's your deal, really?"},
			},
		},
		Limits: GlobalLimits{
			MaxSentences:           3,
			MaxActions:             1,
			RomanceSuppressedTurns: 3,
		},
		ScoreBands: []ScoreBand{
			{MinScore: 1, MaxScore: 2, Delta: -2},
			{MinScore: 3, MaxScore: 4, Delta: -1},
			{MinScore: 5, MaxScore: 6, Delta: 0},
			{MinScore: 7, MaxScore: 8, Delta: 1},
			{MinScore: 9, MaxScore: 10, Delta: 2},
		},
		TrajectoryBands: []ScoreBand{
			{MinScore: 1, MaxScore: 2, Delta: -2},
			{MinScore: 3, MaxScore: 4, Delta: -1},
			{MinScore: 5, MaxScore: 6, Delta: 0},
			{MinScore: 7, MaxScore: 8, Delta: 1},
			{MinScore: 9, MaxScore: 10, Delta: 1},
		},
		Tags: map[string]TagEffect{
			"threading":           {InterestDelta: 1, ExitRiskDelta: 0, Description: "picked up a thread from what she said"},
			"cold_read":           {InterestDelta: 1, ExitRiskDelta: 0, Description: "confident assumption about her"},
			"tease":               {InterestDelta: 1, ExitRiskDelta: 0, Description: "playful tease"},
			"push_pull":           {InterestDelta: 1, ExitRiskDelta: 0, Description: "mixed signal that builds tension"},
			"callback":            {InterestDelta: 1, ExitRiskDelta: 0, Description: "referenced an earlier joke or detail"},
			"humor":               {InterestDelta: 1, ExitRiskDelta: -1, Description: "made her laugh"},
			"statement_of_intent": {InterestDelta: 1, ExitRiskDelta: 0, Description: "clear, calm statement of interest"},
			"interview_question":  {InterestDelta: -1, ExitRiskDelta: 0, Description: "generic interview-style question"},
			"generic_opener":      {InterestDelta: -1, ExitRiskDelta: 0, Description: "canned or generic line"},
			"over_investing":      {InterestDelta: -1, ExitRiskDelta: 0, Description: "wall of text or too much effort"},
			"self_deprecating":    {InterestDelta: -1, ExitRiskDelta: 0, Description: "put himself down"},
			"needy":               {InterestDelta: -1, ExitRiskDelta: 1, Description: "seeking approval"},
			"logistics_too_soon":  {InterestDelta: -1, ExitRiskDelta: 1, Description: "asked for number or date before any rapport"},
			"sexual_too_soon":     {InterestDelta: -2, ExitRiskDelta: 2, Description: "sexual comment before any rapport"},
			"ignored_soft_exit":   {InterestDelta: -2, ExitRiskDelta: 2, Description: "kept going after she signalled she wanted out"},
			"disrespect":          {InterestDelta: -3, ExitRiskDelta: 2, Description: "insult or demeaning remark"},
			"creepy":              {InterestDelta: -3, ExitRiskDelta: 3, Description: "made her feel unsafe"},
		},
		QualityExitRisk: map[Quality]int{
			Positive:  -1,
			Neutral:   0,
			Deflect:   1,
			Skeptical: 1,
		},
		Pacing: []PacingBand{
			{TurnMax: 2, MaxInterest: 6},
			{TurnMax: 4, MaxInterest: 7},
			{TurnMax: 6, MaxInterest: 8},
		},
		Termination: []TerminationRule{
			{MinExitRisk: 3, Reason: ReasonDone},
			{MaxInterest: 2, MinExitRisk: 2, Reason: ReasonAnnoyed},
			{MaxInterest: 3, MinTurn: 3, Quality: Deflect, Reason: ReasonNotWarming},
		},
		CannedLines: map[string][]string{
			StyleDeflect: {"Anyway.", "Hm, not sure.", "Maybe, who knows."},
			StyleBusy:    {"Sorry, I'm in the middle of something.", "Can't really talk right now.", "My friend's waiting for me."},
			StyleTest:    {"Do you say that to everyone?", "Is that your usual line?", "Bold of you."},
			StyleExit:    {"I have to go. Bye.", "Okay, I'm going to head off.", "Nice talking to you. Bye."},
		},
	}
}
