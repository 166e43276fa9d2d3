package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mindhaven/crisis-api/api"
	"github.com/mindhaven/crisis-api/chat"
	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/models"
)

// SessionHandler is a struct that holds the session service and pipeline
type SessionHandler struct {
	Sessions    *chat.Sessions
	Coordinator *chat.Coordinator
}

// defaultMessageLimit caps history reads when the client omits ?limit.
const defaultMessageLimit = 50

type sessionCreateRequest struct {
	OwnerUserID string             `json:"ownerUserId"`
	Kind        models.SessionKind `json:"kind"`
	PersonaID   string             `json:"personaId"`
}

type messageCreateRequest struct {
	SenderID string `json:"senderId"`
	Body     string `json:"body"`
}

// SessionCreateHandler creates a new chat session
func (s SessionHandler) SessionCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode session request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := s.Sessions.Create(ctx, req.OwnerUserID, req.Kind, req.PersonaID)
	if err != nil {
		errorStatus("failed to create session", w, err)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// SessionByIDHandler returns a session by ID
func (s SessionHandler) SessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		errorStatus("failed to get session by ID", w, err)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// SessionsByUserIDHandler returns all sessions owned by the given user
func (s SessionHandler) SessionsByUserIDHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	sessions, err := s.Sessions.ForUser(ctx, userID)
	if err != nil {
		errorStatus("failed to get sessions by user ID", w, err)
		return
	}

	b, err := json.Marshal(sessions)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// SessionPauseHandler pauses an active session
func (s SessionHandler) SessionPauseHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionTransition(w, r, s.Sessions.Pause, "failed to pause session")
}

// SessionResumeHandler resumes a paused session
func (s SessionHandler) SessionResumeHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionTransition(w, r, s.Sessions.Resume, "failed to resume session")
}

// SessionEndHandler ends a session
func (s SessionHandler) SessionEndHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionTransition(w, r, s.Sessions.End, "failed to end session")
}

func (s SessionHandler) sessionTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID string) (*models.Session, error), message string) {
	sessionID := mux.Vars(r)["session_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	session, err := op(ctx, sessionID)
	if err != nil {
		errorStatus(message, w, err)
		return
	}

	b, err := json.Marshal(session)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// MessagesBySessionIDHandler returns recent messages for a session, oldest
// first. The limit query param caps the page size.
func (s SessionHandler) MessagesBySessionIDHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	limit := int64(defaultMessageLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	messages, err := s.Coordinator.History(ctx, sessionID, limit)
	if err != nil {
		errorStatus("failed to get messages by session ID", w, err)
		return
	}

	b, err := json.Marshal(messages)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// MessageCreateHandler runs one message through the escalation pipeline and
// returns the persisted message plus any AI reply and alert.
func (s SessionHandler) MessageCreateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	var req messageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode message request", http.StatusBadRequest, w, err)
		return
	}

	result, err := s.Coordinator.OnIncomingMessage(r.Context(), sessionID, req.SenderID, req.Body)
	if err != nil {
		errorStatus("failed to process message", w, err)
		return
	}

	b, err := json.Marshal(result)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}
