package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/service"
	ws "github.com/queryproctor/backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the server clock to candidates taking an assessment.
type WSHandler struct {
	gate     *service.GateService
	interval time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler that re-evaluates the gate every interval.
func NewWSHandler(gate *service.GateService, interval time.Duration, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		gate:     gate,
		interval: interval,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ClockStream godoc
// WS /ws/v1/candidate/assessments/:id/clock?token=
// Sends a tick with the server time on connect, on every interval and on
// ping. When the window closes or the assessment is cancelled the final
// event is sent and the connection closed.
func (h *WSHandler) ClockStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	d := middleware.GetGateDecision(c)
	if claims == nil || d == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	assessmentID := d.Assessment.ID
	candidateID := claims.UserID
	wsLog := h.log.With().
		Str("candidate_id", candidateID.String()).
		Str("assessment_id", assessmentID.String()).
		Logger()
	wsLog.Info().Msg("Candidate connected to clock stream")

	// The stream context ends when the client goes away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pings := make(chan struct{}, 1)
	go h.readLoop(conn, wsLog, pings, cancel)

	if final := h.send(conn, wsLog, clockEvent(d)); final {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-pings:
		}

		ev, err := h.evaluate(ctx, assessmentID, candidateID)
		if err != nil {
			wsLog.Warn().Err(err).Msg("Clock stream gate evaluation failed")
			ws.WriteError(conn, "assessment is no longer available")
			ws.WriteClose(conn, "unavailable")
			return
		}
		if final := h.send(conn, wsLog, ev); final {
			return
		}
	}
}

// evaluate re-runs the gate. A schedule moved later while connected shows
// up as a tick with status not_started.
func (h *WSHandler) evaluate(ctx context.Context, assessmentID, candidateID uuid.UUID) (ws.ClockEvent, error) {
	d, err := h.gate.EvaluateStage(ctx, service.GateStageStream, assessmentID, candidateID)
	if err != nil {
		return ws.ClockEvent{}, err
	}
	return clockEvent(d), nil
}

// send writes ev and reports whether the stream is over.
func (h *WSHandler) send(conn *websocket.Conn, log zerolog.Logger, ev ws.ClockEvent) bool {
	if err := ws.WriteTyped(conn, ev); err != nil {
		log.Debug().Err(err).Msg("Clock stream write failed")
		return true
	}
	if ev.Final() {
		log.Info().Str("event", string(ev.Event)).Msg("Clock stream finished")
		ws.WriteClose(conn, string(ev.Event))
		return true
	}
	return false
}

// readLoop forwards pings and detects the client going away.
func (h *WSHandler) readLoop(conn *websocket.Conn, log zerolog.Logger, pings chan<- struct{}, gone context.CancelFunc) {
	defer gone()
	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}
		if msg.Action == ws.ActionPing {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

func clockEvent(d *service.GateDecision) ws.ClockEvent {
	p := d.Payload()
	ev := ws.ClockEvent{
		Event:          ws.EventTick,
		Status:         p.Status,
		ServerTime:     p.ServerTime,
		ScheduledStart: p.ScheduledStart,
		EndTime:        p.EndTime,
	}
	switch d.Outcome {
	case service.GateEnded:
		ev.Event = ws.EventEnded
	case service.GateCancelled:
		ev.Event = ws.EventCancelled
	}
	return ev
}
