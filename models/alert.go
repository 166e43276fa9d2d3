package models

import "time"

// AlertStatus is the lifecycle state of a crisis alert.
type AlertStatus string

// Alert lifecycle states.
const (
	AlertOpen          AlertStatus = "open"
	AlertAcknowledged  AlertStatus = "acknowledged"
	AlertInProgress    AlertStatus = "in_progress"
	AlertResolved      AlertStatus = "resolved"
	AlertFalsePositive AlertStatus = "false_positive"
	AlertEscalated     AlertStatus = "escalated"
)

// AlertSource identifies how an alert was raised.
type AlertSource string

// Alert sources.
const (
	SourceAutomatic       AlertSource = "automatic"
	SourceSelfReport      AlertSource = "self_report"
	SourceStaffAssessment AlertSource = "staff_assessment"
)

// Alert holds the structure for the alerts collection in mongo.
// At most one alert per (user, session) pair may be live (open, acknowledged,
// in_progress or escalated) at a time; duplicate detections merge into it.
type Alert struct {
	ID                  string      `json:"_id" bson:"_id"`
	UserID              string      `json:"userId" bson:"userId"`
	SessionID           string      `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	MessageID           string      `json:"messageId,omitempty" bson:"messageId,omitempty"`
	Severity            int         `json:"severity" bson:"severity"`
	Status              AlertStatus `json:"status" bson:"status"`
	Source              AlertSource `json:"source" bson:"source"`
	Description         string      `json:"description" bson:"description"`
	MatchedKeywords     []string    `json:"matchedKeywords" bson:"matchedKeywords"`
	RequiresImmediate   bool        `json:"requiresImmediate" bson:"requiresImmediate"`
	AssignedResponderID string      `json:"assignedResponderId,omitempty" bson:"assignedResponderId,omitempty"`
	ResolutionNotes     string      `json:"resolutionNotes,omitempty" bson:"resolutionNotes,omitempty"`
	CreatedAt           time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt" bson:"updatedAt"`
	AcknowledgedAt      *time.Time  `json:"acknowledgedAt,omitempty" bson:"acknowledgedAt,omitempty"`
	ResolvedAt          *time.Time  `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

// Live reports whether the status participates in dedup and notification.
func (s AlertStatus) Live() bool {
	switch s {
	case AlertOpen, AlertAcknowledged, AlertInProgress, AlertEscalated:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertFalsePositive
}

// LiveStatuses is the status set used by the dedup lookup.
var LiveStatuses = []AlertStatus{AlertOpen, AlertAcknowledged, AlertInProgress, AlertEscalated}

// ResponseTime is the time from creation to acknowledgment. Derived, never stored.
func (a *Alert) ResponseTime() (time.Duration, bool) {
	if a.AcknowledgedAt == nil {
		return 0, false
	}
	return a.AcknowledgedAt.Sub(a.CreatedAt), true
}

// ResolutionTime is the time from creation to resolution. Derived, never stored.
func (a *Alert) ResolutionTime() (time.Duration, bool) {
	if a.ResolvedAt == nil {
		return 0, false
	}
	return a.ResolvedAt.Sub(a.CreatedAt), true
}
