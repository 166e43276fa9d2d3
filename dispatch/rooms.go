package dispatch

// Well-known room names. Per-session and per-user rooms are derived, the
// staff rooms are global.
const (
	CrisisMonitorRoom  = "crisis_alerts"
	AdminDashboardRoom = "admin_dashboard"
)

// ChatRoom is the per-session broadcast room.
func ChatRoom(sessionID string) string { return "chat_" + sessionID }

// NotificationRoom is the per-user notification room.
func NotificationRoom(userID string) string { return "notif_" + userID }
