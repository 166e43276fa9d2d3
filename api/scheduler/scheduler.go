// Package scheduler runs the background sweeps that keep sessions and alerts
// from going stale: idle sessions get ended, and severe alerts nobody has
// acknowledged get escalated. Each job takes a distributed lock first so only
// one instance runs it.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/chat"
	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"
)

const (
	idleSweepJob    = "idle-session-sweep"
	unackedSweepJob = "unacked-alert-sweep"

	jobTimeout = 5 * time.Minute
	lockTTL    = 10 * time.Minute
)

// Scheduler holds the cron runner and the components the sweeps drive.
type Scheduler struct {
	Config    config.Config
	Sessions  *chat.Sessions
	Lifecycle *alerts.Lifecycle
	AlertDB   databases.AlertDatabase
	LockDB    databases.SchedulerLockDatabase
	Hub       *dispatch.Hub
	Notifier  chat.Notifier

	cron       *cron.Cron
	instanceID string

	// test seam
	now func() time.Time
}

// New builds the scheduler with both sweeps registered.
func New(
	conf config.Config,
	sessions *chat.Sessions,
	lifecycle *alerts.Lifecycle,
	alertDB databases.AlertDatabase,
	lockDB databases.SchedulerLockDatabase,
	hub *dispatch.Hub,
	notifier chat.Notifier,
) *Scheduler {
	s := &Scheduler{
		Config:     conf,
		Sessions:   sessions,
		Lifecycle:  lifecycle,
		AlertDB:    alertDB,
		LockDB:     lockDB,
		Hub:        hub,
		Notifier:   notifier,
		cron:       cron.New(cron.WithLocation(time.UTC)),
		instanceID: instanceID(),
		now:        time.Now,
	}

	if _, err := s.cron.AddFunc("*/5 * * * *", func() { s.runLocked(idleSweepJob, s.SweepIdleSessions) }); err != nil {
		zap.S().Errorw("failed to register idle session sweep", "error", err)
	}
	if _, err := s.cron.AddFunc("* * * * *", func() { s.runLocked(unackedSweepJob, s.SweepUnackedAlerts) }); err != nil {
		zap.S().Errorw("failed to register unacknowledged alert sweep", "error", err)
	}

	return s
}

// Start begins the cron schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	zap.S().Infow("scheduler started", "instance_id", s.instanceID)
}

// Stop halts the cron schedule and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Infow("scheduler stopped", "instance_id", s.instanceID)
}

// instanceID identifies this process for the distributed lock. Heroku-style
// platforms expose DYNO; anywhere else a nano timestamp is unique enough.
func instanceID() string {
	if dyno := os.Getenv("DYNO"); dyno != "" {
		return dyno
	}
	return fmt.Sprintf("instance-%d", time.Now().UnixNano())
}

// runLocked takes the job's distributed lock and runs fn under a deadline.
// Losing the lock race is the normal case on multi-instance deploys.
func (s *Scheduler) runLocked(jobName string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, jobName, s.instanceID, lockTTL)
	if err != nil {
		zap.S().Errorw("failed to acquire scheduler lock", "job", jobName, "error", err)
		return
	}
	if !acquired {
		zap.S().Debugw("scheduler lock held elsewhere, skipping", "job", jobName)
		return
	}
	defer func() {
		if err := s.LockDB.ReleaseLock(ctx, jobName, s.instanceID); err != nil {
			zap.S().Warnw("failed to release scheduler lock", "job", jobName, "error", err)
		}
	}()

	if err := fn(ctx); err != nil {
		zap.S().Errorw("scheduler job failed", "job", jobName, "error", err)
	}
}

// SweepIdleSessions ends sessions with no message activity inside the idle
// timeout window.
func (s *Scheduler) SweepIdleSessions(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.Config.SessionIdleTimeout)
	idle, err := s.Sessions.IdleBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	ended := 0
	for _, session := range idle {
		if _, err := s.Sessions.End(ctx, session.ID); err != nil {
			// a message or concurrent sweep may have moved the session
			// since the query; log and keep going
			zap.S().Warnw("failed to end idle session", "session_id", session.ID, "error", err)
			continue
		}
		ended++
	}
	if ended > 0 {
		zap.S().Infow("idle sessions ended", "count", ended, "cutoff", cutoff)
	}
	return nil
}

// SweepUnackedAlerts escalates open immediate-intervention alerts that have
// gone unacknowledged past the escalation window, then re-notifies staff.
func (s *Scheduler) SweepUnackedAlerts(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.Config.AckEscalationAfter)
	stale, err := s.AlertDB.Find(ctx, bson.M{
		"status":            models.AlertOpen,
		"requiresImmediate": true,
		"createdAt":         bson.M{"$lt": cutoff},
	})
	if err != nil {
		return err
	}

	for _, alert := range stale {
		escalated, err := s.Lifecycle.Escalate(ctx, alert.ID)
		if err != nil {
			// a responder may have acknowledged between query and escalate
			zap.S().Warnw("failed to escalate unacknowledged alert", "alert_id", alert.ID, "error", err)
			continue
		}
		zap.S().Warnw("alert escalated after acknowledgment window expired",
			"alert_id", escalated.ID, "severity", escalated.Severity, "created_at", escalated.CreatedAt)

		if s.Hub != nil {
			ev := models.NewEvent(models.EventAlertUpdated, escalated)
			s.Hub.Publish(dispatch.CrisisMonitorRoom, ev)
			s.Hub.Publish(dispatch.AdminDashboardRoom, ev)
		}
		if s.Notifier != nil {
			s.Notifier.NotifyImmediate(ctx, escalated)
		}
	}
	return nil
}
