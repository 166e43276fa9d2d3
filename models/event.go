package models

import "time"

// Event types published to realtime rooms. Consumers must ignore types they
// do not recognize so new ones can be added without breaking old clients.
const (
	EventMessageCreated = "message_created"
	EventAIReply        = "ai_reply"
	EventAlertCreated   = "alert_created"
	EventAlertUpdated   = "alert_updated"
	EventTyping         = "typing"
	EventSupportMessage = "support_message"
	EventChatHistory    = "chat_history"
)

// Event is the versioned envelope for everything published to a room.
type Event struct {
	Type      string      `json:"type"`
	Version   int         `json:"version"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent wraps a payload in the current envelope version.
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Version:   1,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// TypingPayload is relayed to a session room when a participant is typing.
type TypingPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
	IsTyping  bool   `json:"isTyping"`
}

// SupportPayload carries the supportive notice sent to a user's notification
// room when crisis indicators are detected in their message.
type SupportPayload struct {
	CrisisLevel int    `json:"crisisLevel"`
	Body        string `json:"body"`
}
