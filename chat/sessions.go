// Package chat owns conversation sessions and the escalation pipeline that
// turns an inbound message into persistence, risk scoring, alerting, an AI
// reply, and realtime fan-out.
package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/models"
)

// sessionValidFrom maps each target state to the source states allowed to
// reach it. Ended and crisis_escalated are terminal; resuming requires a new
// session.
var sessionValidFrom = map[models.SessionState][]models.SessionState{
	models.SessionActive:          {models.SessionPaused},
	models.SessionPaused:          {models.SessionActive},
	models.SessionEnded:           {models.SessionActive, models.SessionPaused},
	models.SessionCrisisEscalated: {models.SessionActive, models.SessionPaused},
}

// Sessions is the session state machine backed by the durable store.
type Sessions struct {
	store databases.SessionDatabase

	// test seam
	now func() time.Time
}

// NewSessions builds a session service over store.
func NewSessions(store databases.SessionDatabase) *Sessions {
	return &Sessions{store: store, now: time.Now}
}

// Create opens a new active session for owner.
func (s *Sessions) Create(ctx context.Context, ownerID string, kind models.SessionKind, personaID string) (*models.Session, error) {
	if ownerID == "" {
		return nil, &models.ValidationError{Field: "ownerUserId", Reason: "must not be empty"}
	}
	if kind == "" {
		kind = models.SessionKindAIChat
	}
	now := s.now().UTC()
	session := &models.Session{
		ID:            uuid.NewString(),
		OwnerUserID:   ownerID,
		PersonaID:     personaID,
		Kind:          kind,
		State:         models.SessionActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.store.InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get loads a session by id.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.store.FindOne(ctx, bson.M{"_id": sessionID})
}

// ForUser lists a user's sessions, newest first is left to the caller's sort.
func (s *Sessions) ForUser(ctx context.Context, userID string) ([]models.Session, error) {
	return s.store.Find(ctx, bson.M{"ownerUserId": userID})
}

// Pause suspends an active session.
func (s *Sessions) Pause(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, models.SessionPaused, bson.M{})
}

// Resume reactivates a paused session.
func (s *Sessions) Resume(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, models.SessionActive, bson.M{})
}

// End closes the session by explicit action or idle timeout.
func (s *Sessions) End(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, models.SessionEnded, bson.M{"endedAt": s.now().UTC()})
}

// Escalate moves the session to crisis_escalated. Driven only by the alert
// pipeline when severity reaches the immediate-intervention threshold.
func (s *Sessions) Escalate(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.transition(ctx, sessionID, models.SessionCrisisEscalated, bson.M{})
}

// RaiseCrisisLevel lifts the session's high-water crisis level and merges in
// the matched keywords. $max guarantees the level never decreases regardless
// of write order.
func (s *Sessions) RaiseCrisisLevel(ctx context.Context, sessionID string, level int, keywords []string) error {
	update := bson.M{
		"$max": bson.M{"crisisLevel": level},
		"$set": bson.M{"updatedAt": s.now().UTC()},
	}
	if len(keywords) > 0 {
		update["$addToSet"] = bson.M{"crisisKeywords": bson.M{"$each": keywords}}
	}
	_, err := s.store.UpdateOne(ctx, bson.M{"_id": sessionID}, update)
	return err
}

// IdleBefore lists sessions still accepting messages whose last activity is
// older than cutoff. Feeds the idle-timeout sweep.
func (s *Sessions) IdleBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	return s.store.Find(ctx, bson.M{
		"state":         bson.M{"$in": []models.SessionState{models.SessionActive, models.SessionPaused}},
		"lastMessageAt": bson.M{"$lt": cutoff},
	})
}

// TouchLastMessage records message activity for the idle-timeout sweep.
func (s *Sessions) TouchLastMessage(ctx context.Context, sessionID string) error {
	now := s.now().UTC()
	_, err := s.store.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"lastMessageAt": now, "updatedAt": now}},
	)
	return err
}

func (s *Sessions) transition(ctx context.Context, sessionID string, to models.SessionState, set bson.M) (*models.Session, error) {
	if sessionID == "" {
		return nil, &models.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}
	set["state"] = to
	set["updatedAt"] = s.now().UTC()

	res, err := s.store.UpdateOne(ctx,
		bson.M{"_id": sessionID, "state": bson.M{"$in": sessionValidFrom[to]}},
		bson.M{"$set": set},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		current, ferr := s.store.FindOne(ctx, bson.M{"_id": sessionID})
		if ferr != nil {
			return nil, ferr
		}
		if current.State == to {
			// concurrent duplicate of the same transition, treat as done
			return current, nil
		}
		return nil, &models.InvalidTransition{Entity: "session", From: string(current.State), To: string(to)}
	}
	return s.store.FindOne(ctx, bson.M{"_id": sessionID})
}
