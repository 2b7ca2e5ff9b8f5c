package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/evaluator"
	"github.com/MikeSquared-Agency/rapport/internal/hermes"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

var (
	// ErrUpstream wraps judge and generator failures. The conversation is
	// left exactly as it was.
	ErrUpstream = errors.New("upstream call failed")
	// ErrEmptyMessage rejects blank user turns before anything is called.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong rejects user turns over MaxMessageLength runes.
	ErrMessageTooLong = errors.New("message is too long")
)

// MaxMessageLength caps one user message, in runes, after trimming.
const MaxMessageLength = 2000

// natsTurnTimeout bounds a turn submitted over NATS, which has no caller
// context of its own.
const natsTurnTimeout = 2 * time.Minute

// Store persists conversations.
type Store interface {
	Create(ctx context.Context, c *store.Conversation) error
	Get(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	Save(ctx context.Context, c *store.Conversation) error
}

// Evaluator rates one user message.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluator.Input) (engine.EvaluationResult, error)
}

// Responder writes her reply for an already advanced state.
type Responder interface {
	Respond(ctx context.Context, s engine.ConversationState, recent []engine.Exchange, message string) (string, error)
}

// Publisher emits turn events. It may be nil.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs conversation turns: load, judge, advance, reply, persist,
// publish.
type Processor struct {
	store     Store
	engine    *engine.Engine
	judge     Evaluator
	replies   Responder
	publisher Publisher
	logger    *slog.Logger

	locks *keyedMutex
}

func New(s Store, e *engine.Engine, judge Evaluator, replies Responder, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		store:     s,
		engine:    e,
		judge:     judge,
		replies:   replies,
		publisher: pub,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// Result is the outcome of one submitted turn.
type Result struct {
	Conversation *store.Conversation
	Reply        string
	Ended        bool
	Reason       string
}

// Start creates and persists a new conversation.
func (p *Processor) Start(ctx context.Context, seed int64) (*store.Conversation, error) {
	c := store.NewConversation(seed)
	if err := p.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	p.logger.Info("conversation started", "conversation_id", c.ID, "seed", seed)
	return c, nil
}

// Get loads a conversation.
func (p *Processor) Get(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	return p.store.Get(ctx, id)
}

// Turn applies one user message to conversation id. For an ended conversation
// it returns engine.ErrConversationEnded together with the blocked response
// and never calls the judge. On any failure nothing is saved. If another
// writer advanced or ended the conversation while this turn was in flight the
// error wraps store.ErrConflict and the turn is not applied.
func (p *Processor) Turn(ctx context.Context, id uuid.UUID, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	unlock := p.locks.Lock(id)
	defer unlock()

	conv, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if engine.IsBlocked(conv.State) {
		p.logger.Info("turn rejected, conversation ended", "conversation_id", id, "reason", conv.State.EndReason)
		return &Result{Conversation: conv, Reply: engine.BlockedResponse, Ended: true, Reason: conv.State.EndReason}, engine.ErrConversationEnded
	}

	ev, err := p.judge.Evaluate(ctx, evaluator.Input{State: conv.State, Recent: conv.Recent, Message: message})
	if err != nil {
		return nil, fmt.Errorf("evaluate turn: %w: %w", ErrUpstream, err)
	}

	turn, err := p.engine.AdvanceTurn(conv.State, ev)
	if err != nil {
		return nil, fmt.Errorf("advance turn: %w", err)
	}

	next := turn.State
	var reply string
	if turn.Ended {
		reply, next = p.engine.PickLine(next, rubric.StyleExit)
	} else {
		reply, err = p.replies.Respond(ctx, next, conv.Recent, message)
		if err != nil {
			return nil, fmt.Errorf("generate reply: %w: %w", ErrUpstream, err)
		}
	}

	conv.State = next
	conv.Record(engine.Exchange{Message: message, Reply: reply})
	if err := p.store.Save(ctx, conv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			p.logger.Warn("turn discarded, conversation changed concurrently", "conversation_id", id, "turn", next.TurnCount)
		}
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	p.logger.Info("turn processed",
		"conversation_id", id,
		"turn", next.TurnCount,
		"score", ev.Score,
		"quality", ev.Quality,
		"tags", ev.Tags,
		"interest", next.InterestLevel,
		"exit_risk", next.ExitRisk,
		"bucket", next.Bucket(),
		"phase", next.Phase,
		"ended", turn.Ended,
	)
	p.publishTurn(conv, reply, turn)

	return &Result{Conversation: conv, Reply: reply, Ended: turn.Ended, Reason: turn.Reason}, nil
}

func (p *Processor) publishTurn(conv *store.Conversation, reply string, turn engine.Turn) {
	if p.publisher == nil {
		return
	}
	s := conv.State
	id := conv.ID.String()

	if err := p.publisher.Publish(hermes.SubjectTurnCompleted, hermes.TurnCompleted{
		ConversationID: id,
		Turn:           s.TurnCount,
		Bucket:         string(s.Bucket()),
		Phase:          string(s.Phase),
		Interest:       s.InterestLevel,
		ExitRisk:       s.ExitRisk,
		Reply:          reply,
		Ended:          turn.Ended,
	}); err != nil {
		p.logger.Warn("failed to publish turn", "conversation_id", id, "error", err)
	}

	if !turn.Ended {
		return
	}
	if err := p.publisher.Publish(hermes.SubjectConversationEnded, hermes.ConversationEnded{
		ConversationID: id,
		Reason:         turn.Reason,
		Turn:           s.TurnCount,
	}); err != nil {
		p.logger.Warn("failed to publish conversation end", "conversation_id", id, "error", err)
	}
}

// HandleTurnSubmitted is the NATS handler for rapport.turn.submit. Failures
// are answered on rapport.turn.rejected.
func (p *Processor) HandleTurnSubmitted(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), natsTurnTimeout)
	defer cancel()

	var evt hermes.TurnSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse turn event", "subject", subject, "error", err)
		return
	}

	id, err := uuid.Parse(evt.ConversationID)
	if err != nil {
		p.logger.Error("invalid conversation id", "conversation_id", evt.ConversationID, "error", err)
		p.reject(evt.ConversationID, err, "")
		return
	}

	res, err := p.Turn(ctx, id, evt.Message)
	switch {
	case errors.Is(err, engine.ErrConversationEnded):
		p.reject(evt.ConversationID, err, res.Reply)
	case err != nil:
		p.logger.Error("turn failed", "conversation_id", evt.ConversationID, "error", err)
		p.reject(evt.ConversationID, err, "")
	}
}

func (p *Processor) reject(conversationID string, err error, reply string) {
	if p.publisher == nil {
		return
	}
	if perr := p.publisher.Publish(hermes.SubjectTurnRejected, hermes.TurnRejected{
		ConversationID: conversationID,
		Error:          err.Error(),
		Reply:          reply,
	}); perr != nil {
		p.logger.Warn("failed to publish rejection", "conversation_id", conversationID, "error", perr)
	}
}
