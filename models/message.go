package models

import "time"

// MessageKind identifies who produced a message.
type MessageKind string

// Message kinds stored in the messages collection.
const (
	MessageKindUser   MessageKind = "user"
	MessageKindAI     MessageKind = "ai"
	MessageKindSystem MessageKind = "system"
)

// Message holds the structure for the messages collection in mongo.
// Messages are immutable once created except for the crisis annotations,
// which the scorer fills in before the insert.
type Message struct {
	ID             string      `json:"_id" bson:"_id"`
	SessionID      string      `json:"sessionId" bson:"sessionId"`
	SenderID       string      `json:"senderId" bson:"senderId"` // empty for AI/system messages
	Body           string      `json:"body" bson:"body"`
	Kind           MessageKind `json:"kind" bson:"kind"`
	CrisisFlag     bool        `json:"crisisFlag" bson:"crisisFlag"`
	CrisisKeywords []string    `json:"crisisKeywords" bson:"crisisKeywords"`
	ProviderID     string      `json:"providerId,omitempty" bson:"providerId,omitempty"` // backend that served an AI reply
	CreatedAt      time.Time   `json:"createdAt" bson:"createdAt"`
}
