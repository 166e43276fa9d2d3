package notify

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/models"
	templates "github.com/mindhaven/crisis-api/templates/html"
)

// sendFunc posts a single email. Split out so tests can intercept sends.
type sendFunc func(ctx context.Context, m *mail.SGMailV3) error

// StaffNotifier emails every available responder when an alert requires
// immediate intervention. Send failures are logged and never propagated so
// the message pipeline is not blocked on the mail provider.
type StaffNotifier struct {
	DB     databases.UserDatabase
	Config config.Config

	send sendFunc
}

// NewStaffNotifier builds a notifier backed by sendgrid.
func NewStaffNotifier(db databases.UserDatabase, cfg config.Config) *StaffNotifier {
	return &StaffNotifier{
		DB:     db,
		Config: cfg,
		send:   sendgridSend,
	}
}

func sendgridSend(ctx context.Context, m *mail.SGMailV3) error {
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// NotifyImmediate fans an alert out to every available responder.
func (n *StaffNotifier) NotifyImmediate(ctx context.Context, alert *models.Alert) {
	responders, err := n.DB.AvailableResponders(ctx)
	if err != nil {
		zap.S().Errorw("failed to load available responders for alert notification",
			"alert_id", alert.ID, "error", err)
		return
	}
	if len(responders) == 0 {
		zap.S().Warnw("no available responders for immediate alert", "alert_id", alert.ID)
		return
	}

	subject := fmt.Sprintf("URGENT: Crisis alert requires immediate response (severity %d)", alert.Severity)
	body := alertBody(alert)
	htmlContent := templates.RenderGenericEmail(subject, body)

	from := mail.NewEmail(n.Config.SendgridFromName, n.Config.SendgridFromEmail)
	sent := 0
	for _, responder := range responders {
		to := mail.NewEmail(responder.Name, responder.Email)
		message := mail.NewSingleEmail(from, subject, to, body, htmlContent)
		if err := n.send(ctx, message); err != nil {
			zap.S().Errorw("failed to send alert email",
				"alert_id", alert.ID, "responder_id", responder.ID, "error", err)
			continue
		}
		sent++
	}
	zap.S().Infow("immediate alert notifications dispatched",
		"alert_id", alert.ID, "responders", len(responders), "sent", sent)
}

func alertBody(alert *models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A student message triggered a crisis alert that requires immediate attention.\n\n")
	fmt.Fprintf(&b, "Alert ID: %s\n", alert.ID)
	fmt.Fprintf(&b, "Severity: %d/10\n", alert.Severity)
	fmt.Fprintf(&b, "Status: %s\n", alert.Status)
	if len(alert.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "Indicators: %s\n", strings.Join(alert.MatchedKeywords, ", "))
	}
	fmt.Fprintf(&b, "Raised: %s\n\n", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("Please sign in to the crisis monitor dashboard and acknowledge this alert.")
	return b.String()
}
