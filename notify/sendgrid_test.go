package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/databases/mocks"
	"github.com/mindhaven/crisis-api/models"
)

func testAlert() *models.Alert {
	return &models.Alert{
		ID:                "a3a7e5d0-0000-0000-0000-000000000001",
		UserID:            "user-1",
		SessionID:         "session-1",
		Severity:          9,
		Status:            models.AlertOpen,
		Source:            models.SourceAutomatic,
		MatchedKeywords:   []string{"kill myself"},
		RequiresImmediate: true,
		CreatedAt:         time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestNotifyImmediateSendsToEveryResponder(t *testing.T) {
	userDB := &mocks.UserDatabase{}
	userDB.On("AvailableResponders", mock.Anything).Return([]models.User{
		{ID: "r1", Name: "Counselor One", Email: "one@mindhaven.app", Role: models.RoleCounselor},
		{ID: "r2", Name: "Admin Two", Email: "two@mindhaven.app", Role: models.RoleAdmin},
	}, nil)

	var mu sync.Mutex
	var sent []*mail.SGMailV3
	n := NewStaffNotifier(userDB, config.Config{
		SendgridFromEmail: "alerts@mindhaven.app",
		SendgridFromName:  "MindHaven Crisis Alerts",
	})
	n.send = func(ctx context.Context, m *mail.SGMailV3) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, m)
		return nil
	}

	n.NotifyImmediate(context.Background(), testAlert())

	assert.Len(t, sent, 2)
	assert.Equal(t, "one@mindhaven.app", sent[0].Personalizations[0].To[0].Address)
	assert.Equal(t, "two@mindhaven.app", sent[1].Personalizations[0].To[0].Address)
	assert.Contains(t, sent[0].Subject, "severity 9")
	assert.Equal(t, "alerts@mindhaven.app", sent[0].From.Address)
	assert.Contains(t, sent[0].Content[0].Value, "kill myself")
}

func TestNotifyImmediateSendFailureDoesNotAbortFanOut(t *testing.T) {
	userDB := &mocks.UserDatabase{}
	userDB.On("AvailableResponders", mock.Anything).Return([]models.User{
		{ID: "r1", Name: "Counselor One", Email: "one@mindhaven.app"},
		{ID: "r2", Name: "Counselor Two", Email: "two@mindhaven.app"},
	}, nil)

	var sent []string
	n := NewStaffNotifier(userDB, config.Config{})
	n.send = func(ctx context.Context, m *mail.SGMailV3) error {
		addr := m.Personalizations[0].To[0].Address
		if addr == "one@mindhaven.app" {
			return errors.New("sendgrid status 500")
		}
		sent = append(sent, addr)
		return nil
	}

	n.NotifyImmediate(context.Background(), testAlert())

	assert.Equal(t, []string{"two@mindhaven.app"}, sent)
}

func TestNotifyImmediateNoResponders(t *testing.T) {
	userDB := &mocks.UserDatabase{}
	userDB.On("AvailableResponders", mock.Anything).Return([]models.User{}, nil)

	called := false
	n := NewStaffNotifier(userDB, config.Config{})
	n.send = func(ctx context.Context, m *mail.SGMailV3) error {
		called = true
		return nil
	}

	n.NotifyImmediate(context.Background(), testAlert())
	assert.False(t, called)
}

func TestNotifyImmediateResponderLookupError(t *testing.T) {
	userDB := &mocks.UserDatabase{}
	userDB.On("AvailableResponders", mock.Anything).Return(nil, errors.New("mongo down"))

	called := false
	n := NewStaffNotifier(userDB, config.Config{})
	n.send = func(ctx context.Context, m *mail.SGMailV3) error {
		called = true
		return nil
	}

	// Never panics or propagates, only logs.
	n.NotifyImmediate(context.Background(), testAlert())
	assert.False(t, called)
}
