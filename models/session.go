package models

import "time"

// SessionKind identifies the conversation type.
type SessionKind string

// Session kinds stored in the sessions collection.
const (
	SessionKindAIChat        SessionKind = "ai_chat"
	SessionKindCounselorChat SessionKind = "counselor_chat"
)

// SessionState is the lifecycle state of a chat session.
type SessionState string

// Session lifecycle states. Ended and post-escalation resolution are
// terminal; a new session must be created to resume chatting.
const (
	SessionActive          SessionState = "active"
	SessionPaused          SessionState = "paused"
	SessionEnded           SessionState = "ended"
	SessionCrisisEscalated SessionState = "crisis_escalated"
)

// Session holds the structure for the sessions collection in mongo.
// CrisisLevel is a high-water mark: the pipeline only ever raises it.
type Session struct {
	ID             string       `json:"_id" bson:"_id"`
	OwnerUserID    string       `json:"ownerUserId" bson:"ownerUserId"`
	CounselorID    string       `json:"counselorId,omitempty" bson:"counselorId,omitempty"`
	PersonaID      string       `json:"personaId,omitempty" bson:"personaId,omitempty"`
	Kind           SessionKind  `json:"kind" bson:"kind"`
	State          SessionState `json:"state" bson:"state"`
	CrisisLevel    int          `json:"crisisLevel" bson:"crisisLevel"`
	CrisisKeywords []string     `json:"crisisKeywords" bson:"crisisKeywords"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
	LastMessageAt  time.Time    `json:"lastMessageAt" bson:"lastMessageAt"`
	EndedAt        *time.Time   `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

// Terminal reports whether the session can no longer accept state
// transitions. An escalated session still accepts messages; only an ended
// one does not.
func (s SessionState) Terminal() bool {
	return s == SessionEnded || s == SessionCrisisEscalated
}
