package engine

import (
	"errors"
	"maps"
	"slices"

	"github.com/MikeSquared-Agency/rapport/internal/rubric"
)

// ErrConversationEnded is returned for any turn submitted after the
// simulated partner has left.
var ErrConversationEnded = errors.New("conversation already ended")

// BlockedResponse is the fixed reply for turns on an ended conversation.
const BlockedResponse = "She's already left the conversation."

// Starting values for a new conversation.
const (
	DefaultInterest = 4
	DefaultExitRisk = 0
)

// Phase is the coarse stage of the interaction.
type Phase string

const (
	PhaseOpener Phase = "opener"
	PhaseHook   Phase = "hook"
	PhaseVibe   Phase = "vibe"
	PhaseInvest Phase = "invest"
	PhaseClose  Phase = "close"
)

func (p Phase) rank() int {
	switch p {
	case PhaseHook:
		return 1
	case PhaseVibe:
		return 2
	case PhaseInvest:
		return 3
	case PhaseClose:
		return 4
	default:
		return 0
	}
}

// Established reports whether the phase counts as an established rapport.
func (p Phase) Established() bool {
	return p == PhaseInvest || p == PhaseClose
}

// ConversationState is the simulated partner's state for one conversation.
// It is a value: the engine never mutates a state it was given.
type ConversationState struct {
	InterestLevel int              `json:"interest_level"`
	ExitRisk      int              `json:"exit_risk"`
	TurnCount     int              `json:"turn_count"`
	NeutralStreak int              `json:"neutral_streak"`
	HighStreak    int              `json:"high_streak"`
	Phase         Phase            `json:"phase"`
	IsEnded       bool             `json:"is_ended"`
	EndReason     string           `json:"end_reason,omitempty"`
	Seed          int64            `json:"seed"`
	UsedResponses map[string][]int `json:"used_responses,omitempty"`
}

// Exchange is one user message and the reply it got.
type Exchange struct {
	Message string `json:"message"`
	Reply   string `json:"reply"`
}

// StartConversation returns the fixed opening state. The seed only rotates
// which canned lines come first.
func StartConversation(seed int64) ConversationState {
	return ConversationState{
		InterestLevel: DefaultInterest,
		ExitRisk:      DefaultExitRisk,
		Phase:         PhaseOpener,
		Seed:          seed,
	}
}

// IsBlocked reports whether further turns must be rejected.
func IsBlocked(s ConversationState) bool {
	return s.IsEnded
}

// Bucket is the interest bucket of the state.
func (s ConversationState) Bucket() rubric.Bucket {
	return rubric.BucketOf(s.InterestLevel)
}

// Clone returns a deep copy.
func (s ConversationState) Clone() ConversationState {
	out := s
	if s.UsedResponses != nil {
		out.UsedResponses = maps.Clone(s.UsedResponses)
		for k, v := range out.UsedResponses {
			out.UsedResponses[k] = slices.Clone(v)
		}
	}
	return out
}
