package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/api"
	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/models"

	"go.mongodb.org/mongo-driver/bson"
)

// AlertHandler is a struct that holds the alert db and lifecycle
type AlertHandler struct {
	DB        databases.AlertDatabase
	Lifecycle *alerts.Lifecycle
	Hub       *dispatch.Hub
}

// defaultAlertLimit caps the monitoring list when the client omits ?limit.
const defaultAlertLimit = 100

type acknowledgeRequest struct {
	ResponderID string `json:"responderId"`
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// AlertsHandler returns live alerts, most severe and most recent first
func (a AlertHandler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultAlertLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := a.DB.Unresolved(ctx, limit)
	if err != nil {
		errorStatus("failed to get alerts", w, err)
		return
	}

	b, err := json.Marshal(list)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// AlertByIDHandler returns an alert by ID
func (a AlertHandler) AlertByIDHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.DB.FindOne(ctx, bson.M{"_id": alertID})
	if err != nil {
		errorStatus("failed to get alert by ID", w, err)
		return
	}

	b, err := json.Marshal(alert)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// AlertAcknowledgeHandler claims an alert for a responder
func (a AlertHandler) AlertAcknowledgeHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode acknowledge request", http.StatusBadRequest, w, err)
		return
	}
	if req.ResponderID == "" {
		config.ErrorStatus("responderId is required", http.StatusBadRequest, w, &models.ValidationError{Field: "responderId", Reason: "must not be empty"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.Lifecycle.Acknowledge(ctx, alertID, req.ResponderID)
	if err != nil {
		errorStatus("failed to acknowledge alert", w, err)
		return
	}
	a.writeAlert(w, alert)
}

// AlertStartHandler marks an acknowledged alert as being worked
func (a AlertHandler) AlertStartHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.Lifecycle.Start(ctx, alertID)
	if err != nil {
		errorStatus("failed to start alert", w, err)
		return
	}
	a.writeAlert(w, alert)
}

// AlertResolveHandler closes an alert with resolution notes
func (a AlertHandler) AlertResolveHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode resolve request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.Lifecycle.Resolve(ctx, alertID, req.Notes)
	if err != nil {
		errorStatus("failed to resolve alert", w, err)
		return
	}
	a.writeAlert(w, alert)
}

// AlertFalsePositiveHandler closes an alert as a false trigger
func (a AlertHandler) AlertFalsePositiveHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode false-positive request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.Lifecycle.FalsePositive(ctx, alertID, req.Notes)
	if err != nil {
		errorStatus("failed to mark alert false-positive", w, err)
		return
	}
	a.writeAlert(w, alert)
}

// AlertEscalateHandler raises an alert to immediate intervention
func (a AlertHandler) AlertEscalateHandler(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["alert_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	alert, err := a.Lifecycle.Escalate(ctx, alertID)
	if err != nil {
		errorStatus("failed to escalate alert", w, err)
		return
	}
	a.writeAlert(w, alert)
}

// writeAlert marshals the alert and fans the status change out to the
// monitoring rooms.
func (a AlertHandler) writeAlert(w http.ResponseWriter, alert *models.Alert) {
	if a.Hub != nil {
		ev := models.NewEvent(models.EventAlertUpdated, alert)
		a.Hub.Publish(dispatch.CrisisMonitorRoom, ev)
		a.Hub.Publish(dispatch.AdminDashboardRoom, ev)
	}

	b, err := json.Marshal(alert)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}
