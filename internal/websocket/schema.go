package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	// ActionPing asks for an immediate clock reading, e.g. after the tab
	// regains focus.
	ActionPing Action = "ping"
)

// Request is a message sent by the client.
type Request struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventEnded     Event = "ended"
	EventCancelled Event = "cancelled"
	EventError     Event = "error"
)

// ClockEvent carries the server's view of an assessment's timing. The stream
// closes after an ended or cancelled event.
type ClockEvent struct {
	Event          Event      `json:"event"`
	Status         string     `json:"status"`
	ServerTime     string     `json:"server_time"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	EndTime        *time.Time `json:"end_time"`
}

// Final reports whether the event ends the stream.
func (e ClockEvent) Final() bool {
	return e.Event == EventEnded || e.Event == EventCancelled
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
