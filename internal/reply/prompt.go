package reply

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/textguard"
)

const persona = `You are a woman in her late twenties who has just been approached by a stranger. You are not an assistant. Reply in character, in plain text, as you would out loud.`

// StylePrompt builds the system prompt for the state's bucket.
func StylePrompt(r *rubric.Rubric, s engine.ConversationState) string {
	p := r.ProfileOf(s.Bucket())
	l := r.Limits

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n## How you feel right now\n")
	sb.WriteString(p.StyleNote)
	sb.WriteString("\n")
	if s.ExitRisk >= 2 {
		sb.WriteString("You are close to leaving and it shows.\n")
	}

	sb.WriteString("\n## Shape of your reply\n")
	fmt.Fprintf(&sb, "- Between %d and %d words, usually around %d.\n", p.WordCount.Min, p.WordCount.Max, p.WordCount.Mean)
	fmt.Fprintf(&sb, "- At most %d sentences.\n", l.MaxSentences)
	if l.MaxActions == 0 {
		sb.WriteString("- No action descriptions.\n")
	} else {
		fmt.Fprintf(&sb, "- At most %d action in brackets, like [laughs].\n", l.MaxActions)
	}
	if p.ShouldAskBack {
		sb.WriteString("- You may ask something back if it feels natural.\n")
	} else {
		sb.WriteString("- Never ask a question. No question marks.\n")
	}

	sb.WriteString("\n## Tendencies\n")
	fmt.Fprintf(&sb, "- Deflect or change the subject about %s of the time.\n", pct(p.StyleRates.Deflect))
	fmt.Fprintf(&sb, "- Say you are busy about %s of the time.\n", pct(p.StyleRates.Busy))
	fmt.Fprintf(&sb, "- Test him with a light challenge about %s of the time.\n", pct(p.StyleRates.Test))
	if p.StyleRates.Exit > 0 {
		fmt.Fprintf(&sb, "- Hint that you might leave about %s of the time.\n", pct(p.StyleRates.Exit))
	}
	if s.TurnCount <= l.RomanceSuppressedTurns || p.FlirtRate == 0 {
		sb.WriteString("- Do not flirt at all.\n")
	} else {
		fmt.Fprintf(&sb, "- Flirt a little about %s of the time.\n", pct(p.FlirtRate))
	}

	if len(p.ExampleLines) > 0 {
		sb.WriteString("\n## Lines in your voice\n")
		for _, line := range p.ExampleLines {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	return sb.String()
}

// retryNote is appended to the style prompt when the first reply broke the
// envelope.
func retryNote(previous string, vs []textguard.Violation) string {
	var sb strings.Builder
	sb.WriteString("\n## Rewrite\nYour last reply was:\n")
	sb.WriteString(previous)
	sb.WriteString("\nIt broke these rules:\n")
	for _, v := range textguard.Strings(vs) {
		fmt.Fprintf(&sb, "- %s\n", v)
	}
	sb.WriteString("Reply again, fixing every one of them.\n")
	return sb.String()
}

func pct(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}
