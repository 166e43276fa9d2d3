package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/chat"
	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/databases/mocks"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"
)

type recordingNotifier struct {
	alerts []*models.Alert
}

func (n *recordingNotifier) NotifyImmediate(ctx context.Context, alert *models.Alert) {
	n.alerts = append(n.alerts, alert)
}

func newTestScheduler(sessionDB *mocks.SessionDatabase, alertDB *mocks.AlertDatabase, lockDB *mocks.SchedulerLockDatabase, notifier chat.Notifier) *Scheduler {
	conf := config.Config{
		SessionIdleTimeout: 2 * time.Hour,
		AckEscalationAfter: 15 * time.Minute,
	}
	return New(conf,
		chat.NewSessions(sessionDB),
		alerts.NewLifecycle(alertDB, 8),
		alertDB, lockDB, dispatch.NewHub(), notifier)
}

func TestNewRegistersBothSweeps(t *testing.T) {
	s := newTestScheduler(&mocks.SessionDatabase{}, &mocks.AlertDatabase{}, &mocks.SchedulerLockDatabase{}, nil)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestSweepIdleSessionsEndsStaleOnes(t *testing.T) {
	sessionDB := &mocks.SessionDatabase{}
	stale := models.Session{ID: "s1", State: models.SessionActive}
	ended := &models.Session{ID: "s1", State: models.SessionEnded}

	sessionDB.On("Find", mock.Anything, mock.Anything).Return([]models.Session{stale}, nil)
	sessionDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	sessionDB.On("FindOne", mock.Anything, mock.Anything).Return(ended, nil)

	s := newTestScheduler(sessionDB, &mocks.AlertDatabase{}, &mocks.SchedulerLockDatabase{}, nil)

	err := s.SweepIdleSessions(context.Background())
	assert.NoError(t, err)
	sessionDB.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepIdleSessionsToleratesRacingTransition(t *testing.T) {
	sessionDB := &mocks.SessionDatabase{}
	stale := models.Session{ID: "s1", State: models.SessionActive}
	escalated := &models.Session{ID: "s1", State: models.SessionCrisisEscalated}

	sessionDB.On("Find", mock.Anything, mock.Anything).Return([]models.Session{stale}, nil)
	// CAS misses because the session escalated between query and update
	sessionDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	sessionDB.On("FindOne", mock.Anything, mock.Anything).Return(escalated, nil)

	s := newTestScheduler(sessionDB, &mocks.AlertDatabase{}, &mocks.SchedulerLockDatabase{}, nil)

	// the sweep logs the miss and keeps going
	err := s.SweepIdleSessions(context.Background())
	assert.NoError(t, err)
}

func TestSweepUnackedAlertsEscalatesAndNotifies(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	stale := models.Alert{ID: "a1", Status: models.AlertOpen, Severity: 9, RequiresImmediate: true}
	escalated := &models.Alert{ID: "a1", Status: models.AlertEscalated, Severity: 9, RequiresImmediate: true}

	alertDB.On("Find", mock.Anything, mock.Anything).Return([]models.Alert{stale}, nil)
	alertDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	alertDB.On("FindOne", mock.Anything, mock.Anything).Return(escalated, nil)

	notifier := &recordingNotifier{}
	s := newTestScheduler(&mocks.SessionDatabase{}, alertDB, &mocks.SchedulerLockDatabase{}, notifier)

	err := s.SweepUnackedAlerts(context.Background())
	assert.NoError(t, err)
	assert.Len(t, notifier.alerts, 1)
	assert.Equal(t, models.AlertEscalated, notifier.alerts[0].Status)
}

func TestSweepUnackedAlertsSkipsAcknowledgedRace(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	stale := models.Alert{ID: "a1", Status: models.AlertOpen, RequiresImmediate: true}
	acked := &models.Alert{ID: "a1", Status: models.AlertAcknowledged}

	alertDB.On("Find", mock.Anything, mock.Anything).Return([]models.Alert{stale}, nil)
	// escalated <- acknowledged is a legal transition, so emulate the CAS
	// rejecting for another reason: responder resolved it first
	alertDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	alertDB.On("FindOne", mock.Anything, mock.Anything).Return(acked, nil)

	notifier := &recordingNotifier{}
	s := newTestScheduler(&mocks.SessionDatabase{}, alertDB, &mocks.SchedulerLockDatabase{}, notifier)

	err := s.SweepUnackedAlerts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, notifier.alerts)
}

func TestRunLockedSkipsWhenLockHeldElsewhere(t *testing.T) {
	lockDB := &mocks.SchedulerLockDatabase{}
	lockDB.On("TryAcquireLock", mock.Anything, idleSweepJob, mock.Anything, mock.Anything).Return(false, nil)

	s := newTestScheduler(&mocks.SessionDatabase{}, &mocks.AlertDatabase{}, lockDB, nil)

	ran := false
	s.runLocked(idleSweepJob, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.False(t, ran)
	lockDB.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunLockedAcquiresRunsAndReleases(t *testing.T) {
	lockDB := &mocks.SchedulerLockDatabase{}
	lockDB.On("TryAcquireLock", mock.Anything, unackedSweepJob, mock.Anything, mock.Anything).Return(true, nil)
	lockDB.On("ReleaseLock", mock.Anything, unackedSweepJob, mock.Anything).Return(nil)

	s := newTestScheduler(&mocks.SessionDatabase{}, &mocks.AlertDatabase{}, lockDB, nil)

	ran := false
	s.runLocked(unackedSweepJob, func(ctx context.Context) error {
		ran = true
		return errors.New("job error is logged, not propagated")
	})
	assert.True(t, ran)
	lockDB.AssertCalled(t, "ReleaseLock", mock.Anything, unackedSweepJob, mock.Anything)
}
