// Package alerts owns the crisis alert state machine: creation with
// per-(user, session) deduplication, responder assignment, and resolution.
// All transitions are applied with status-guarded updates so concurrent staff
// actions cannot double-apply.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/models"
)

// Detection is the input to CreateOrMerge, produced by the risk scorer or a
// self-report/staff form.
type Detection struct {
	UserID    string
	SessionID string
	MessageID string
	Severity  int
	Keywords  []string
	Source    models.AlertSource
}

// Lifecycle manages crisis alerts against the durable store.
type Lifecycle struct {
	store              databases.AlertDatabase
	immediateThreshold int
	locks              *keyedMutex

	// test seam
	now func() time.Time
}

// NewLifecycle builds an alert lifecycle. immediateThreshold is the severity
// at or above which an alert requires immediate intervention.
func NewLifecycle(store databases.AlertDatabase, immediateThreshold int) *Lifecycle {
	if immediateThreshold <= 0 {
		immediateThreshold = 8
	}
	return &Lifecycle{
		store:              store,
		immediateThreshold: immediateThreshold,
		locks:              newKeyedMutex(),
		now:                time.Now,
	}
}

// CreateOrMerge either opens a new alert for (user, session) or merges the
// detection into the existing live one: keyword sets are unioned, severity is
// raised to the max, and status flips to escalated when the merge crosses the
// immediate-intervention threshold. The second return value reports whether a
// new alert row was created.
func (l *Lifecycle) CreateOrMerge(ctx context.Context, det Detection) (*models.Alert, bool, error) {
	if det.UserID == "" {
		return nil, false, &models.ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	// serialize per pair so a burst of qualifying messages yields one row
	unlock := l.locks.lock(det.UserID + "|" + det.SessionID)
	defer unlock()

	existing, err := l.store.FindLive(ctx, det.UserID, det.SessionID)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, err
		}
		return l.create(ctx, det)
	}
	merged, err := l.merge(ctx, existing, det)
	return merged, false, err
}

func (l *Lifecycle) create(ctx context.Context, det Detection) (*models.Alert, bool, error) {
	now := l.now().UTC()
	alert := &models.Alert{
		ID:                uuid.NewString(),
		UserID:            det.UserID,
		SessionID:         det.SessionID,
		MessageID:         det.MessageID,
		Severity:          det.Severity,
		Status:            models.AlertOpen,
		Source:            det.Source,
		Description:       fmt.Sprintf("crisis indicators detected (severity %d)", det.Severity),
		MatchedKeywords:   det.Keywords,
		RequiresImmediate: det.Severity >= l.immediateThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.store.InsertOne(ctx, alert); err != nil {
		return nil, false, err
	}
	return alert, true, nil
}

func (l *Lifecycle) merge(ctx context.Context, existing *models.Alert, det Detection) (*models.Alert, error) {
	severity := existing.Severity
	if det.Severity > severity {
		severity = det.Severity
	}
	status := existing.Status
	crossed := existing.Severity < l.immediateThreshold && severity >= l.immediateThreshold
	if crossed {
		status = models.AlertEscalated
	}

	set := bson.M{
		"severity":          severity,
		"status":            status,
		"matchedKeywords":   union(existing.MatchedKeywords, det.Keywords),
		"requiresImmediate": severity >= l.immediateThreshold,
		"updatedAt":         l.now().UTC(),
	}
	if det.MessageID != "" {
		set["messageId"] = det.MessageID
	}
	if _, err := l.store.UpdateOne(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}); err != nil {
		return nil, err
	}
	return l.store.FindOne(ctx, bson.M{"_id": existing.ID})
}

// validFrom maps each target status to the source states that may reach it.
var validFrom = map[models.AlertStatus][]models.AlertStatus{
	models.AlertAcknowledged:  {models.AlertOpen, models.AlertEscalated},
	models.AlertInProgress:    {models.AlertAcknowledged},
	models.AlertResolved:      {models.AlertOpen, models.AlertAcknowledged, models.AlertInProgress, models.AlertEscalated},
	models.AlertFalsePositive: {models.AlertAcknowledged, models.AlertInProgress},
	models.AlertEscalated:     {models.AlertOpen, models.AlertAcknowledged, models.AlertInProgress},
}

// Acknowledge assigns the alert to a responder. Valid only from open or
// escalated; under concurrent acknowledgments exactly one caller wins and the
// rest receive InvalidTransition.
func (l *Lifecycle) Acknowledge(ctx context.Context, alertID, responderID string) (*models.Alert, error) {
	if responderID == "" {
		return nil, &models.ValidationError{Field: "responderId", Reason: "must not be empty"}
	}
	now := l.now().UTC()
	return l.transition(ctx, alertID, models.AlertAcknowledged, bson.M{
		"assignedResponderId": responderID,
		"acknowledgedAt":      now,
	}, false)
}

// Start moves an acknowledged alert to in_progress.
func (l *Lifecycle) Start(ctx context.Context, alertID string) (*models.Alert, error) {
	return l.transition(ctx, alertID, models.AlertInProgress, bson.M{}, false)
}

// Resolve closes the alert with notes. Valid from any non-terminal state and
// idempotent: resolving an already-resolved alert returns it unchanged.
func (l *Lifecycle) Resolve(ctx context.Context, alertID, notes string) (*models.Alert, error) {
	return l.transition(ctx, alertID, models.AlertResolved, bson.M{
		"resolutionNotes": notes,
		"resolvedAt":      l.now().UTC(),
	}, true)
}

// FalsePositive closes the alert as a non-crisis after responder review.
func (l *Lifecycle) FalsePositive(ctx context.Context, alertID, notes string) (*models.Alert, error) {
	return l.transition(ctx, alertID, models.AlertFalsePositive, bson.M{
		"resolutionNotes": notes,
		"resolvedAt":      l.now().UTC(),
	}, false)
}

// Escalate flags the alert as requiring immediate attention, by explicit
// staff action. Severity-driven escalation happens inside CreateOrMerge.
func (l *Lifecycle) Escalate(ctx context.Context, alertID string) (*models.Alert, error) {
	return l.transition(ctx, alertID, models.AlertEscalated, bson.M{
		"requiresImmediate": true,
	}, false)
}

// transition applies a status-guarded update. The status filter doubles as a
// compare-and-swap: of two racing actors only one matches the document, the
// other gets InvalidTransition built from the then-current status.
func (l *Lifecycle) transition(ctx context.Context, alertID string, to models.AlertStatus, set bson.M, idempotent bool) (*models.Alert, error) {
	if alertID == "" {
		return nil, &models.ValidationError{Field: "alertId", Reason: "must not be empty"}
	}
	set["status"] = to
	set["updatedAt"] = l.now().UTC()

	res, err := l.store.UpdateOne(ctx,
		bson.M{"_id": alertID, "status": bson.M{"$in": validFrom[to]}},
		bson.M{"$set": set},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		current, ferr := l.store.FindOne(ctx, bson.M{"_id": alertID})
		if ferr != nil {
			return nil, ferr
		}
		if idempotent && current.Status == to {
			return current, nil
		}
		return nil, &models.InvalidTransition{Entity: "alert", From: string(current.Status), To: string(to)}
	}
	return l.store.FindOne(ctx, bson.M{"_id": alertID})
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
