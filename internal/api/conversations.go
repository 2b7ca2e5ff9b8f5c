package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rapport/internal/engine"
	"github.com/MikeSquared-Agency/rapport/internal/processor"
	"github.com/MikeSquared-Agency/rapport/internal/rubric"
	"github.com/MikeSquared-Agency/rapport/internal/store"
)

// maxBodyBytes caps request bodies. Messages are limited further by
// processor.MaxMessageLength.
const maxBodyBytes = 64 << 10

// StartRequest is the optional body of POST /api/v1/conversations.
type StartRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// ConversationResponse describes a conversation.
type ConversationResponse struct {
	ID      uuid.UUID                `json:"id"`
	State   engine.ConversationState `json:"state"`
	Bucket  rubric.Bucket            `json:"bucket"`
	Blocked bool                     `json:"blocked"`
	Recent  []engine.Exchange        `json:"recent,omitempty"`
}

// TurnRequest is the body of POST /api/v1/conversations/{id}/turns.
type TurnRequest struct {
	Message string `json:"message"`
}

// TurnResponse is her answer to one turn.
type TurnResponse struct {
	Reply  string                   `json:"reply"`
	State  engine.ConversationState `json:"state"`
	Ended  bool                     `json:"ended"`
	Reason string                   `json:"reason,omitempty"`
}

// startConversation handles POST /api/v1/conversations
func (s *Server) startConversation(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBodyError(w, err)
		return
	}
	seed := rand.Int64()
	if req.Seed != nil {
		seed = *req.Seed
	}

	c, err := s.convs.Start(r.Context(), seed)
	if err != nil {
		s.logger.Error("start conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not start conversation")
		return
	}
	writeJSON(w, http.StatusCreated, describe(c))
}

// getConversation handles GET /api/v1/conversations/{id}
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := s.convs.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("load conversation failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load conversation")
		return
	}
	writeJSON(w, http.StatusOK, describe(c))
}

// submitTurn handles POST /api/v1/conversations/{id}/turns
func (s *Server) submitTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req TurnRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	res, err := s.convs.Turn(r.Context(), id, req.Message)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, TurnResponse{
			Reply:  res.Reply,
			State:  res.Conversation.State,
			Ended:  res.Ended,
			Reason: res.Reason,
		})
	case errors.Is(err, engine.ErrConversationEnded):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": err.Error(),
			"reply": res.Reply,
			"state": res.Conversation.State,
		})
	case errors.Is(err, processor.ErrEmptyMessage), errors.Is(err, processor.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		s.logger.Warn("turn lost a concurrent write", "conversation_id", id, "error", err)
		writeError(w, http.StatusConflict, "conversation changed concurrently; the turn was not applied")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
	case errors.Is(err, processor.ErrUpstream):
		s.logger.Error("turn failed upstream", "conversation_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "upstream call failed; the turn was not applied")
	default:
		s.logger.Error("turn failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "turn failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}

func describe(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:      c.ID,
		State:   c.State,
		Bucket:  c.State.Bucket(),
		Blocked: engine.IsBlocked(c.State),
		Recent:  c.Recent,
	}
}
