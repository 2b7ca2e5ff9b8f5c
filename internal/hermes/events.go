package hermes

// Subjects carrying conversation traffic.
const (
	SubjectTurnSubmit        = "rapport.turn.submit"
	SubjectTurnCompleted     = "rapport.turn.completed"
	SubjectTurnRejected      = "rapport.turn.rejected"
	SubjectConversationEnded = "rapport.conversation.ended"
	SubjectRegistered        = "swarm.agent.rapport.registered"
)

// Registered announces a running service instance.
type Registered struct {
	Timestamp  string `json:"timestamp"`
	Port       int    `json:"port"`
	Rubric     string `json:"rubric"`
	Trajectory bool   `json:"trajectory"`
}

// TurnSubmitted asks the service to process one user message.
type TurnSubmitted struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// TurnCompleted is published after a turn has been applied and persisted.
type TurnCompleted struct {
	ConversationID string `json:"conversation_id"`
	Turn           int    `json:"turn"`
	Bucket         string `json:"bucket"`
	Phase          string `json:"phase"`
	Interest       int    `json:"interest"`
	ExitRisk       int    `json:"exit_risk"`
	Reply          string `json:"reply"`
	Ended          bool   `json:"ended"`
}

// ConversationEnded is published once, on the turn that ends a conversation.
type ConversationEnded struct {
	ConversationID string `json:"conversation_id"`
	Reason         string `json:"reason"`
	Turn           int    `json:"turn"`
}

// TurnRejected answers a submitted turn that could not be applied. Reply
// carries the blocked response for ended conversations.
type TurnRejected struct {
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error"`
	Reply          string `json:"reply,omitempty"`
}
