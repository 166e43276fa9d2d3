package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/api/handlers"
	"github.com/mindhaven/crisis-api/databases/mocks"
	"github.com/mindhaven/crisis-api/models"
)

func TestAlertsHandlerSuccess(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	alertDB.On("Unresolved", mock.Anything, int64(100)).Return([]models.Alert{
		{ID: "a1", Severity: 9, Status: models.AlertOpen},
		{ID: "a2", Severity: 6, Status: models.AlertAcknowledged},
	}, nil)

	h := handlers.AlertHandler{DB: alertDB, Lifecycle: alerts.NewLifecycle(alertDB, 8)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	rr := httptest.NewRecorder()
	h.AlertsHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got []models.Alert
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
}

func TestAlertsHandlerHonorsLimitParam(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	alertDB.On("Unresolved", mock.Anything, int64(5)).Return([]models.Alert{}, nil)

	h := handlers.AlertHandler{DB: alertDB}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=5", nil)
	rr := httptest.NewRecorder()
	h.AlertsHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	alertDB.AssertCalled(t, "Unresolved", mock.Anything, int64(5))
}

func TestAlertByIDHandlerNotFound(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	alertDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	h := handlers.AlertHandler{DB: alertDB}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"alert_id": "missing"})
	rr := httptest.NewRecorder()
	h.AlertByIDHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAlertAcknowledgeHandlerRequiresResponder(t *testing.T) {
	h := handlers.AlertHandler{DB: &mocks.AlertDatabase{}, Lifecycle: alerts.NewLifecycle(&mocks.AlertDatabase{}, 8)}

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/alerts/a1/acknowledge", body)
	req = mux.SetURLVars(req, map[string]string{"alert_id": "a1"})
	rr := httptest.NewRecorder()
	h.AlertAcknowledgeHandler(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAlertAcknowledgeHandlerSuccess(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	acked := &models.Alert{ID: "a1", Status: models.AlertAcknowledged, AssignedResponderID: "r1"}
	alertDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)
	alertDB.On("FindOne", mock.Anything, mock.Anything).Return(acked, nil)

	h := handlers.AlertHandler{DB: alertDB, Lifecycle: alerts.NewLifecycle(alertDB, 8)}

	body := bytes.NewBufferString(`{"responderId": "r1"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/alerts/a1/acknowledge", body)
	req = mux.SetURLVars(req, map[string]string{"alert_id": "a1"})
	rr := httptest.NewRecorder()
	h.AlertAcknowledgeHandler(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got models.Alert
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, models.AlertAcknowledged, got.Status)
	assert.Equal(t, "r1", got.AssignedResponderID)
}

func TestAlertResolveHandlerInvalidTransitionConflicts(t *testing.T) {
	alertDB := &mocks.AlertDatabase{}
	falsePositive := &models.Alert{ID: "a1", Status: models.AlertFalsePositive}
	// CAS misses because the alert already closed as a false positive
	alertDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	alertDB.On("FindOne", mock.Anything, mock.Anything).Return(falsePositive, nil)

	h := handlers.AlertHandler{DB: alertDB, Lifecycle: alerts.NewLifecycle(alertDB, 8)}

	body := bytes.NewBufferString(`{"notes": "talked it through"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/alerts/a1/resolve", body)
	req = mux.SetURLVars(req, map[string]string{"alert_id": "a1"})
	rr := httptest.NewRecorder()
	h.AlertResolveHandler(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}
