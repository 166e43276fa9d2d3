package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mindhaven/crisis-api/ai"
	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/crisis"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"
)

type stubProvider struct {
	id    string
	reply string
	err   error
}

func (s *stubProvider) ID() string { return s.id }

func (s *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type recordingSubscriber struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingSubscriber) Enqueue(ev models.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingSubscriber) Close() {}

func (r *recordingSubscriber) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (r *recordingNotifier) NotifyImmediate(ctx context.Context, alert *models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

type pipeline struct {
	coordinator *Coordinator
	sessions    *Sessions
	alertStore  *fakeAlertStore
	hub         *dispatch.Hub
	notifier    *recordingNotifier
}

func newPipeline(provider ai.Provider) *pipeline {
	sessions := NewSessions(newFakeSessionStore())
	alertStore := newFakeAlertStore()
	hub := dispatch.NewHub()
	notifier := &recordingNotifier{}

	coordinator := NewCoordinator(
		sessions,
		newFakeMessageStore(),
		alerts.NewLifecycle(alertStore, 8),
		crisis.New(0),
		ai.NewOrchestrator([]ai.Provider{provider}, time.Second, time.Minute, "priya"),
		hub,
		notifier,
	)
	return &pipeline{
		coordinator: coordinator,
		sessions:    sessions,
		alertStore:  alertStore,
		hub:         hub,
		notifier:    notifier,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSevereMessageEscalatesEndToEnd(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "I'm here with you."})
	ctx := context.Background()
	session, err := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "priya")
	assert.NoError(t, err)

	monitor := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.CrisisMonitorRoom, monitor)
	room := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.ChatRoom(session.ID), room)

	res, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I want to kill myself")
	assert.NoError(t, err)

	assert.True(t, res.Message.CrisisFlag)
	assert.Contains(t, res.Message.CrisisKeywords, "kill myself")

	assert.NotNil(t, res.Alert)
	assert.Equal(t, models.AlertOpen, res.Alert.Status)
	assert.GreaterOrEqual(t, res.Alert.Severity, 9)
	assert.True(t, res.Alert.RequiresImmediate)

	escalated, err := p.sessions.Get(ctx, session.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SessionCrisisEscalated, escalated.State)
	assert.GreaterOrEqual(t, escalated.CrisisLevel, 9)

	assert.Contains(t, monitor.types(), models.EventAlertCreated)
	assert.Contains(t, room.types(), models.EventMessageCreated)
	assert.Contains(t, room.types(), models.EventAIReply)

	assert.NotNil(t, res.Reply)
	assert.Contains(t, res.Reply.Body, "IMMEDIATE SUPPORT AVAILABLE")
	assert.Equal(t, "gemini", res.Reply.ProviderID)

	waitFor(t, func() bool { return p.notifier.count() == 1 })
}

func TestMildMessageProducesNoAlert(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "Exams can be a lot. What's on your plate?"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "arjun")

	monitor := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.CrisisMonitorRoom, monitor)

	res, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I'm a bit stressed about exams")
	assert.NoError(t, err)

	assert.False(t, res.Message.CrisisFlag)
	assert.Nil(t, res.Alert)
	assert.Zero(t, p.alertStore.count())
	assert.Empty(t, monitor.types())

	still, _ := p.sessions.Get(ctx, session.ID)
	assert.Equal(t, models.SessionActive, still.State)

	assert.NotNil(t, res.Reply)
	assert.NotContains(t, res.Reply.Body, "IMMEDIATE SUPPORT AVAILABLE")
}

func TestProviderFailureStillReplies(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", err: errors.New("upstream down")})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "priya")

	res, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "rough day today")

	assert.NoError(t, err)
	assert.NotNil(t, res.Reply)
	assert.Equal(t, ai.FallbackProviderID, res.Reply.ProviderID)
	assert.NotEmpty(t, res.Reply.Body)
}

func TestDuplicateCrisisMessagesMergeIntoOneAlert(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "priya")

	first, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "everything is hopeless")
	assert.NoError(t, err)
	second, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I give up, nobody cares")
	assert.NoError(t, err)

	assert.Equal(t, 1, p.alertStore.count())
	assert.Equal(t, first.Alert.ID, second.Alert.ID)
	assert.Subset(t, second.Alert.MatchedKeywords, []string{"hopeless", "give up"})
}

func TestCounselorSessionGetsNoAIReply(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "should not appear"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindCounselorChat, "")

	res, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "hello there")

	assert.NoError(t, err)
	assert.Nil(t, res.Reply)
}

func TestEndedSessionRejectsMessages(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "")
	_, err := p.sessions.End(ctx, session.ID)
	assert.NoError(t, err)

	_, err = p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "anyone there?")

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEscalatedSessionKeepsConversationOpen(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "I'm here with you."})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "priya")

	first, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I want to kill myself")
	assert.NoError(t, err)
	assert.NotNil(t, first.Alert)

	escalated, err := p.sessions.Get(ctx, session.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SessionCrisisEscalated, escalated.State)
	// terminal for state transitions, not for the conversation
	assert.True(t, escalated.State.Terminal())

	// the follow-up is where the most important signal arrives; it must
	// still be stored, scored, merged into the alert, and answered
	second, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I am ready to die, I have the pills here")
	assert.NoError(t, err)
	assert.NotNil(t, second.Message)
	assert.True(t, second.Message.CrisisFlag)
	assert.NotNil(t, second.Reply)
	assert.Contains(t, second.Reply.Body, "IMMEDIATE SUPPORT AVAILABLE")

	assert.Equal(t, 1, p.alertStore.count())
	assert.NotNil(t, second.Alert)
	assert.Equal(t, first.Alert.ID, second.Alert.ID)
	assert.Contains(t, second.Alert.MatchedKeywords, "ready to die")
}

func TestValidationRejectsEmptyInput(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	ctx := context.Background()

	for _, tc := range []struct{ sessionID, senderID, text string }{
		{"", "user-1", "hi"},
		{"session-1", "", "hi"},
		{"session-1", "user-1", ""},
	} {
		_, err := p.coordinator.OnIncomingMessage(ctx, tc.sessionID, tc.senderID, tc.text)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestSupportMessageSentToStudent(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindAIChat, "priya")

	notif := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.NotificationRoom("user-1"), notif)

	_, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "I feel so hopeless")
	assert.NoError(t, err)

	assert.Contains(t, notif.types(), models.EventSupportMessage)
}

func TestMessageOrderPreservedUnderConcurrentSends(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	ctx := context.Background()
	session, _ := p.sessions.Create(ctx, "user-1", models.SessionKindCounselorChat, "")

	room := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.ChatRoom(session.ID), room)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.coordinator.OnIncomingMessage(ctx, session.ID, "user-1", "message "+string(rune('a'+i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// every publish carries a persisted message; order in the room matches
	// store order because both happen under the per-session lock
	history, err := p.coordinator.History(ctx, session.ID, 50)
	assert.NoError(t, err)
	assert.Len(t, history, 10)

	room.mu.Lock()
	defer room.mu.Unlock()
	assert.Len(t, room.events, 10)
	for i, ev := range room.events {
		msg := ev.Data.(*models.Message)
		assert.Equal(t, history[i].ID, msg.ID)
	}
}

func TestRelayTyping(t *testing.T) {
	p := newPipeline(&stubProvider{id: "gemini", reply: "ok"})
	room := &recordingSubscriber{}
	p.hub.Subscribe(dispatch.ChatRoom("s1"), room)

	p.coordinator.RelayTyping("s1", "user-1", "Asha", true)

	assert.Equal(t, []string{models.EventTyping}, room.types())
	payload := room.events[0].Data.(models.TypingPayload)
	assert.True(t, payload.IsTyping)
	assert.True(t, strings.HasPrefix(payload.UserID, "user-"))
}
