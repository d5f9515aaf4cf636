package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/service"
	ws "github.com/queryproctor/backend/internal/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubEnrollments struct{ enrollment *model.Enrollment }

func (s *stubEnrollments) Get(_ context.Context, _, _ uuid.UUID) (*model.Enrollment, error) {
	return s.enrollment, nil
}

type stubAssessments struct{ assessment *model.Assessment }

func (s *stubAssessments) GetByID(_ context.Context, _ uuid.UUID) (*model.Assessment, error) {
	return s.assessment, nil
}

func TestFailService(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("get: %w", service.ErrNotOwner), http.StatusForbidden, "NOT_OWNER"},
		{service.ErrAssessmentInUse, http.StatusConflict, "DEPENDENCY_EXISTS"},
		{service.ErrInvitationExpired, http.StatusGone, "INVITATION_EXPIRED"},
		{service.ErrScheduleRequired, http.StatusBadRequest, "SCHEDULE_REQUIRED"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			failService(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "SQL_Joins_Midterm-submissions.xlsx", exportFilename("SQL Joins / Midterm"))
	assert.Equal(t, "assessment-submissions.xlsx", exportFilename("  "))
}

func TestClockStream(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start.Add(30 * time.Minute))
	candidateID := uuid.New()
	assessment := &model.Assessment{ID: uuid.New(), Name: "Aggregates", ScheduledStart: &start, DurationMinutes: 60}
	gate := service.NewGateService(
		&stubEnrollments{enrollment: &model.Enrollment{ID: uuid.New(), AssessmentID: assessment.ID, CandidateID: candidateID}},
		&stubAssessments{assessment: assessment},
		clk, zerolog.Nop(),
	)

	h := NewWSHandler(gate, 20*time.Millisecond, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/assessments/:id/clock",
		func(c *gin.Context) {
			c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeCandidate, UserID: candidateID})
			c.Next()
		},
		middleware.AssessmentGate(gate),
		h.ClockStream,
	)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assessments/" + assessment.ID.String() + "/clock"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first ws.ClockEvent
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, ws.EventTick, first.Event)
	assert.Equal(t, "active", first.Status)
	assert.Equal(t, "2025-03-01T10:30:00.000Z", first.ServerTime)
	require.NotNil(t, first.EndTime)
	assert.True(t, first.EndTime.Equal(start.Add(time.Hour)))

	clk.Set(start.Add(61 * time.Minute))

	var last ws.ClockEvent
	for last.Event != ws.EventEnded {
		require.NoError(t, conn.ReadJSON(&last))
	}
	assert.Equal(t, "ended", last.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestClockStream_RejectedBeforeStart(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	candidateID := uuid.New()
	assessment := &model.Assessment{ID: uuid.New(), Name: "Aggregates", ScheduledStart: &start, DurationMinutes: 60}
	gate := service.NewGateService(
		&stubEnrollments{enrollment: &model.Enrollment{ID: uuid.New(), AssessmentID: assessment.ID, CandidateID: candidateID}},
		&stubAssessments{assessment: assessment},
		clock.NewFake(start.Add(-time.Minute)), zerolog.Nop(),
	)

	h := NewWSHandler(gate, time.Second, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/assessments/:id/clock",
		func(c *gin.Context) {
			c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeCandidate, UserID: candidateID})
			c.Next()
		},
		middleware.AssessmentGate(gate),
		h.ClockStream,
	)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assessments/" + assessment.ID.String() + "/clock"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServerTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 250_000_000, time.FixedZone("WIB", 7*3600))
	h := NewSystemHandler(nil, nil, clock.NewFake(now), zerolog.Nop())

	r := gin.New()
	r.GET("/time", h.ServerTime)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/time", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"server_time":"2025-03-01T05:00:00.250Z"`), w.Body.String())
}

type ctxRecordingEnrollments struct {
	stubEnrollments
	mu   sync.Mutex
	last context.Context
}

func (s *ctxRecordingEnrollments) Get(ctx context.Context, a, c uuid.UUID) (*model.Enrollment, error) {
	s.mu.Lock()
	s.last = ctx
	s.mu.Unlock()
	return s.stubEnrollments.Get(ctx, a, c)
}

func (s *ctxRecordingEnrollments) lastCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func TestClockStream_ReadsEndWithTheConnection(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	candidateID := uuid.New()
	assessment := &model.Assessment{ID: uuid.New(), Name: "Aggregates", ScheduledStart: &start, DurationMinutes: 60}
	enrollments := &ctxRecordingEnrollments{stubEnrollments: stubEnrollments{
		enrollment: &model.Enrollment{ID: uuid.New(), AssessmentID: assessment.ID, CandidateID: candidateID},
	}}
	gate := service.NewGateService(enrollments, &stubAssessments{assessment: assessment},
		clock.NewFake(start.Add(time.Minute)), zerolog.Nop())

	h := NewWSHandler(gate, 10*time.Millisecond, zerolog.Nop(), nil)
	r := gin.New()
	r.GET("/ws/assessments/:id/clock",
		func(c *gin.Context) {
			c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeCandidate, UserID: candidateID})
			c.Next()
		},
		middleware.AssessmentGate(gate),
		h.ClockStream,
	)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assessments/" + assessment.ID.String() + "/clock"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The second tick comes from a re-evaluation inside the stream.
	var ev ws.ClockEvent
	require.NoError(t, conn.ReadJSON(&ev))
	require.NoError(t, conn.ReadJSON(&ev))
	streamCtx := enrollments.lastCtx()
	require.NotNil(t, streamCtx)
	require.NoError(t, streamCtx.Err())

	conn.Close()

	assert.Eventually(t, func() bool {
		return enrollments.lastCtx().Err() != nil
	}, 2*time.Second, 10*time.Millisecond)
}
