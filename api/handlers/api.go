package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-api/ai"
	"github.com/mindhaven/crisis-api/alerts"
	"github.com/mindhaven/crisis-api/api"
	"github.com/mindhaven/crisis-api/api/scheduler"
	"github.com/mindhaven/crisis-api/chat"
	"github.com/mindhaven/crisis-api/config"
	"github.com/mindhaven/crisis-api/crisis"
	"github.com/mindhaven/crisis-api/databases"
	"github.com/mindhaven/crisis-api/dispatch"
	"github.com/mindhaven/crisis-api/notify"
)

// App stores the router, db connection and the wired pipeline components
type App struct {
	Router   *mux.Router
	Config   config.Config
	dbHelper databases.DatabaseHelper

	Hub         *dispatch.Hub
	Sessions    *chat.Sessions
	Coordinator *chat.Coordinator
	Lifecycle   *alerts.Lifecycle
	AlertDB     databases.AlertDatabase
	UserDB      databases.UserDatabase
	Scheduler   *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()

	s := SessionHandler{Sessions: a.Sessions, Coordinator: a.Coordinator}
	al := AlertHandler{DB: a.AlertDB, Lifecycle: a.Lifecycle, Hub: a.Hub}
	p := PersonaHandler{}
	ws := SocketHandler{Hub: a.Hub, Coordinator: a.Coordinator}
	m := api.MiddlewareDB{DB: a.UserDB}
	m.SetupGoGuardian()

	r.HandleFunc("/health", healthCheckHandler)

	// auth
	r.HandleFunc("/api/v1/auth/token", m.CreateToken).Methods("POST")
	r.Handle("/api/v1/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	// sessions
	apiCreate.Handle("/sessions", api.Middleware(http.HandlerFunc(s.SessionCreateHandler))).Methods("POST")
	apiCreate.Handle("/sessions/{session_id}", api.Middleware(http.HandlerFunc(s.SessionByIDHandler))).Methods("GET")
	apiCreate.Handle("/sessions/{session_id}/pause", api.Middleware(http.HandlerFunc(s.SessionPauseHandler))).Methods("POST")
	apiCreate.Handle("/sessions/{session_id}/resume", api.Middleware(http.HandlerFunc(s.SessionResumeHandler))).Methods("POST")
	apiCreate.Handle("/sessions/{session_id}/end", api.Middleware(http.HandlerFunc(s.SessionEndHandler))).Methods("POST")
	apiCreate.Handle("/sessions/{session_id}/messages", api.Middleware(http.HandlerFunc(s.MessagesBySessionIDHandler))).Methods("GET")
	apiCreate.Handle("/sessions/{session_id}/messages", api.Middleware(http.HandlerFunc(s.MessageCreateHandler))).Methods("POST")
	apiCreate.Handle("/users/{user_id}/sessions", api.Middleware(http.HandlerFunc(s.SessionsByUserIDHandler))).Methods("GET")

	// alerts
	apiCreate.Handle("/alerts", api.Middleware(http.HandlerFunc(al.AlertsHandler))).Methods("GET")
	apiCreate.Handle("/alerts/{alert_id}", api.Middleware(http.HandlerFunc(al.AlertByIDHandler))).Methods("GET")
	apiCreate.Handle("/alerts/{alert_id}/acknowledge", api.Middleware(http.HandlerFunc(al.AlertAcknowledgeHandler))).Methods("PUT")
	apiCreate.Handle("/alerts/{alert_id}/start", api.Middleware(http.HandlerFunc(al.AlertStartHandler))).Methods("PUT")
	apiCreate.Handle("/alerts/{alert_id}/resolve", api.Middleware(http.HandlerFunc(al.AlertResolveHandler))).Methods("PUT")
	apiCreate.Handle("/alerts/{alert_id}/false-positive", api.Middleware(http.HandlerFunc(al.AlertFalsePositiveHandler))).Methods("PUT")
	apiCreate.Handle("/alerts/{alert_id}/escalate", api.Middleware(http.HandlerFunc(al.AlertEscalateHandler))).Methods("PUT")

	// reference data
	apiCreate.Handle("/personas", api.Middleware(http.HandlerFunc(p.PersonasHandler))).Methods("GET")
	apiCreate.Handle("/helplines", api.Middleware(http.HandlerFunc(p.HelplinesHandler))).Methods("GET")

	// realtime
	r.HandleFunc("/ws/chat/{session_id}", ws.ChatSocketHandler)
	r.HandleFunc("/ws/notifications/{user_id}", ws.NotificationsSocketHandler)
	r.HandleFunc("/ws/crisis-monitor", ws.CrisisMonitorSocketHandler)
	r.HandleFunc("/ws/admin-dashboard", ws.AdminDashboardSocketHandler)

	return r
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"alive": true})
}

// Initialize connects to mongo, wires the detection pipeline and registers
// the routes
func (a *App) Initialize(conf config.Config) error {
	a.Config = conf

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().With(err).Error("error generating new client")
		return err
	}
	a.dbHelper = databases.NewDatabase(&a.Config, client)

	err = client.Connect()
	if err != nil {
		zap.S().With(err).Error("error connecting client")
		return err
	}
	zap.S().Info("mindhaven crisis-api has connected to the database")

	sessionDB := databases.NewSessionDatabase(a.dbHelper)
	messageDB := databases.NewMessageDatabase(a.dbHelper)
	alertDB := databases.NewAlertDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)
	lockDB := databases.NewSchedulerLockDatabase(a.dbHelper)

	scorer := crisis.New(a.Config.CrisisThreshold)
	providers := []ai.Provider{
		ai.NewGeminiProvider(a.Config.GeminiBaseURL, a.Config.GeminiAPIKey, ""),
		ai.NewOpenAIProvider(a.Config.OpenAIBaseURL, a.Config.OpenAIAPIKey, ""),
		ai.NewHuggingFaceProvider(a.Config.HFBaseURL, a.Config.HFAPIKey, ""),
	}
	orchestrator := ai.NewOrchestrator(providers, a.Config.ProviderTimeout, a.Config.ProviderCooldown, a.Config.DefaultPersona)

	a.Hub = dispatch.NewHub()
	a.Sessions = chat.NewSessions(sessionDB)
	a.Lifecycle = alerts.NewLifecycle(alertDB, int(a.Config.ImmediateThreshold))
	a.AlertDB = alertDB
	a.UserDB = userDB

	notifier := notify.NewStaffNotifier(userDB, a.Config)
	a.Coordinator = chat.NewCoordinator(a.Sessions, messageDB, a.Lifecycle, scorer, orchestrator, a.Hub, notifier)

	a.Scheduler = scheduler.New(a.Config, a.Sessions, a.Lifecycle, alertDB, lockDB, a.Hub, notifier)
	a.Scheduler.Start()

	// initialize routes
	a.initializeRoutes()

	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}
