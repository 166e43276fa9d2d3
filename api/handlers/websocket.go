package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/api"
	"github.com/mindhaven/crisis-api/chat"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"
)

// historyReplaySize is how many recent messages a chat socket gets on connect.
const historyReplaySize = 50

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin dashboards connect here; auth happens via token payloads
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SocketHandler holds the hub and pipeline for the realtime endpoints
type SocketHandler struct {
	Hub         *dispatch.Hub
	Coordinator *chat.Coordinator
}

// inboundFrame is what chat clients send over the socket.
type inboundFrame struct {
	Type     string `json:"type"` // "message" or "typing"
	SenderID string `json:"senderId"`
	Body     string `json:"body,omitempty"`
	UserName string `json:"userName,omitempty"`
	IsTyping bool   `json:"isTyping,omitempty"`
}

// ChatSocketHandler upgrades the connection, joins the session room, replays
// recent history and then pumps inbound frames through the pipeline.
func (s SocketHandler) ChatSocketHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	client := dispatch.NewClient(s.Hub, conn)
	client.Join(dispatch.ChatRoom(sessionID))

	// replay before the write pump starts so history lands first
	ctx, cancel := api.WithQueryTimeout(r.Context())
	history, err := s.Coordinator.History(ctx, sessionID, historyReplaySize)
	cancel()
	if err != nil {
		zap.S().Warnw("failed to load chat history for replay", "session_id", sessionID, "error", err)
	} else if len(history) > 0 {
		client.Enqueue(models.NewEvent(models.EventChatHistory, history))
	}

	go client.WritePump()
	client.ReadPump(func(data []byte) {
		s.handleChatFrame(sessionID, data)
	})
}

func (s SocketHandler) handleChatFrame(sessionID string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		zap.S().Debugw("dropping malformed socket frame", "session_id", sessionID, "error", err)
		return
	}

	switch frame.Type {
	case "typing":
		s.Coordinator.RelayTyping(sessionID, frame.SenderID, frame.UserName, frame.IsTyping)
	case "message":
		if _, err := s.Coordinator.OnIncomingMessage(context.Background(), sessionID, frame.SenderID, frame.Body); err != nil {
			zap.S().Warnw("socket message rejected",
				"session_id", sessionID, "sender_id", frame.SenderID, "error", err)
		}
	default:
		// ignore unknown frame types so clients can ship new ones first
	}
}

// NotificationsSocketHandler streams a user's personal notification room
func (s SocketHandler) NotificationsSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	s.readOnlySocket(w, r, dispatch.NotificationRoom(userID))
}

// CrisisMonitorSocketHandler streams the shared crisis alert room staff watch
func (s SocketHandler) CrisisMonitorSocketHandler(w http.ResponseWriter, r *http.Request) {
	s.readOnlySocket(w, r, dispatch.CrisisMonitorRoom)
}

// AdminDashboardSocketHandler streams the admin overview room
func (s SocketHandler) AdminDashboardSocketHandler(w http.ResponseWriter, r *http.Request) {
	s.readOnlySocket(w, r, dispatch.AdminDashboardRoom)
}

func (s SocketHandler) readOnlySocket(w http.ResponseWriter, r *http.Request, roomID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "room", roomID, "error", err)
		return
	}

	client := dispatch.NewClient(s.Hub, conn)
	client.Join(roomID)
	go client.WritePump()
	// inbound frames on monitor sockets are ignored; the pump only handles
	// pings and close
	client.ReadPump(func([]byte) {})
}
