package chat

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/ai"
	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/crisis"
	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"
)

// Notifier pushes immediate-intervention alerts to staff outside the realtime
// rooms (email). Implementations log their own failures; a broken notifier
// must never fail the pipeline.
type Notifier interface {
	NotifyImmediate(ctx context.Context, alert *models.Alert)
}

// historyWindow is how many prior messages feed the AI prompt.
const historyWindow = 10

// Coordinator is the escalation pipeline: one inbound message in, persisted
// message plus optional alert and AI reply out, with realtime fan-out along
// the way.
type Coordinator struct {
	sessions *Sessions
	messages databases.MessageDatabase
	alerts   *alerts.Lifecycle
	scorer   *crisis.Scorer
	ai       *ai.Orchestrator
	hub      *dispatch.Hub
	notifier Notifier

	// locks serializes writes per session so room order matches
	// persistence order under concurrent sends
	locks sync.Map // sessionID -> *sync.Mutex

	// test seam
	now func() time.Time
}

// NewCoordinator wires the pipeline. notifier may be nil when email delivery
// is disabled.
func NewCoordinator(
	sessions *Sessions,
	messages databases.MessageDatabase,
	lifecycle *alerts.Lifecycle,
	scorer *crisis.Scorer,
	orchestrator *ai.Orchestrator,
	hub *dispatch.Hub,
	notifier Notifier,
) *Coordinator {
	return &Coordinator{
		sessions: sessions,
		messages: messages,
		alerts:   lifecycle,
		scorer:   scorer,
		ai:       orchestrator,
		hub:      hub,
		notifier: notifier,
		now:      time.Now,
	}
}

// IncomingResult is the outcome of one pipeline run. Reply is nil for
// counselor sessions, Alert is nil when no crisis was detected.
type IncomingResult struct {
	Message *models.Message `json:"message"`
	Reply   *models.Message `json:"reply,omitempty"`
	Alert   *models.Alert   `json:"alert,omitempty"`
}

// OnIncomingMessage runs the full pipeline for one user message. The caller
// always gets either an AI reply or the persona fallback for AI sessions;
// provider failures never surface here. Alert-path failures are logged and
// dropped so the chat keeps flowing.
func (c *Coordinator) OnIncomingMessage(ctx context.Context, sessionID, senderID, text string) (*IncomingResult, error) {
	if sessionID == "" {
		return nil, &models.ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}
	if senderID == "" {
		return nil, &models.ValidationError{Field: "senderId", Reason: "must not be empty"}
	}
	if text == "" {
		return nil, &models.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	session, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// an escalated session keeps the conversation open. The student most
	// needs to be heard after escalation, and follow-up messages still feed
	// the alert merge. Only an ended session stops accepting messages.
	if session.State == models.SessionEnded {
		return nil, &models.ValidationError{Field: "sessionId", Reason: "session has ended"}
	}

	score := c.scorer.Score(text)

	// kick off reply generation early; it is pure text work plus network
	// I/O, independent of the alert outcome
	var replyCh chan ai.Result
	if session.Kind == models.SessionKindAIChat {
		history, herr := c.history(ctx, sessionID)
		if herr != nil {
			zap.S().Warnw("failed to load history for prompt", "sessionId", sessionID, "error", herr)
		}
		replyCh = make(chan ai.Result, 1)
		go func() {
			replyCh <- c.ai.Generate(ctx, ai.Request{
				Message:   text,
				PersonaID: session.PersonaID,
				History:   history,
			})
		}()
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		SenderID:       senderID,
		Body:           text,
		Kind:           models.MessageKindUser,
		CrisisFlag:     score.IsCrisis,
		CrisisKeywords: score.Matched,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.persistAndBroadcast(ctx, msg, models.EventMessageCreated); err != nil {
		return nil, err
	}
	if err := c.sessions.TouchLastMessage(ctx, sessionID); err != nil {
		zap.S().Warnw("failed to touch session", "sessionId", sessionID, "error", err)
	}

	result := &IncomingResult{Message: msg}

	if score.IsCrisis {
		result.Alert = c.raiseAlert(ctx, session, msg, score)
	}

	if replyCh != nil {
		gen := <-replyCh
		reply := gen.Reply
		if score.RequiresImmediate {
			reply = ai.WithCrisisFooter(reply)
		}
		replyMsg := &models.Message{
			ID:         uuid.NewString(),
			SessionID:  sessionID,
			Body:       reply,
			Kind:       models.MessageKindAI,
			ProviderID: gen.ProviderID,
			CreatedAt:  c.now().UTC(),
		}
		if err := c.persistAndBroadcast(ctx, replyMsg, models.EventAIReply); err != nil {
			zap.S().Errorw("failed to persist ai reply", "sessionId", sessionID, "error", err)
		} else {
			result.Reply = replyMsg
		}
	}

	return result, nil
}

// raiseAlert runs the alert half of the pipeline. Every failure here is
// logged and swallowed: a broken alert write must not block the sender's
// acknowledgment or the AI reply.
func (c *Coordinator) raiseAlert(ctx context.Context, session *models.Session, msg *models.Message, score crisis.Result) *models.Alert {
	severity := int(math.Round(score.Score))

	alert, created, err := c.alerts.CreateOrMerge(ctx, alerts.Detection{
		UserID:    session.OwnerUserID,
		SessionID: session.ID,
		MessageID: msg.ID,
		Severity:  severity,
		Keywords:  score.Matched,
		Source:    models.SourceAutomatic,
	})
	if err != nil {
		zap.S().Errorw("failed to create or merge alert",
			"sessionId", session.ID, "userId", session.OwnerUserID, "error", err)
		return nil
	}

	if err := c.sessions.RaiseCrisisLevel(ctx, session.ID, severity, score.Matched); err != nil {
		zap.S().Warnw("failed to raise session crisis level", "sessionId", session.ID, "error", err)
	}
	if alert.RequiresImmediate {
		if _, err := c.sessions.Escalate(ctx, session.ID); err != nil {
			zap.S().Warnw("failed to escalate session", "sessionId", session.ID, "error", err)
		}
	}

	eventType := models.EventAlertUpdated
	if created {
		eventType = models.EventAlertCreated
	}
	ev := models.NewEvent(eventType, alert)
	c.hub.Publish(dispatch.CrisisMonitorRoom, ev)
	c.hub.Publish(dispatch.AdminDashboardRoom, ev)
	if alert.AssignedResponderID != "" {
		c.hub.Publish(dispatch.NotificationRoom(alert.AssignedResponderID), ev)
	}

	// a supportive nudge to the student, never the raw alert
	c.hub.Publish(dispatch.NotificationRoom(session.OwnerUserID),
		models.NewEvent(models.EventSupportMessage, models.SupportPayload{
			CrisisLevel: severity,
			Body:        "We noticed you might be going through a difficult time. Support is available whenever you need it.",
		}))

	if alert.RequiresImmediate && c.notifier != nil {
		go func(a models.Alert) {
			nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			c.notifier.NotifyImmediate(nctx, &a)
		}(*alert)
	}

	return alert
}

// persistAndBroadcast writes the message and publishes it to the session room
// under the per-session lock, so room order always matches store order.
func (c *Coordinator) persistAndBroadcast(ctx context.Context, msg *models.Message, eventType string) error {
	muAny, _ := c.locks.LoadOrStore(msg.SessionID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	if err := c.messages.InsertOne(ctx, msg); err != nil {
		return err
	}
	c.hub.Publish(dispatch.ChatRoom(msg.SessionID), models.NewEvent(eventType, msg))
	return nil
}

// history returns the most recent messages as prompt turns, oldest first.
func (c *Coordinator) history(ctx context.Context, sessionID string) ([]ai.Turn, error) {
	msgs, err := c.messages.RecentBySession(ctx, sessionID, historyWindow)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := "assistant"
		if m.Kind == models.MessageKindUser {
			role = "user"
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Body})
	}
	return turns, nil
}

// RelayTyping broadcasts a typing indicator to the session room. Not
// persisted.
func (c *Coordinator) RelayTyping(sessionID, userID, userName string, isTyping bool) {
	c.hub.Publish(dispatch.ChatRoom(sessionID), models.NewEvent(models.EventTyping, models.TypingPayload{
		SessionID: sessionID,
		UserID:    userID,
		UserName:  userName,
		IsTyping:  isTyping,
	}))
}

// History exposes replay for reconnecting clients, last n messages oldest
// first.
func (c *Coordinator) History(ctx context.Context, sessionID string, n int64) ([]models.Message, error) {
	return c.messages.RecentBySession(ctx, sessionID, n)
}
