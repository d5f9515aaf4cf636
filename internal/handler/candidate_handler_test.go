package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/middleware"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/service"
	"github.com/queryproctor/backend/internal/validator"
)

type memSubmissions struct {
	mu          sync.Mutex
	submittedAt []time.Time
}

func (m *memSubmissions) Create(_ context.Context, enrollment *model.Enrollment, submittedAt time.Time, answers []model.AnswerRequest) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submittedAt = append(m.submittedAt, submittedAt)

	sub := &model.Submission{ID: uuid.New(), EnrollmentID: enrollment.ID, SubmittedAt: submittedAt}
	for _, a := range answers {
		sub.Details = append(sub.Details, model.SubmissionDetail{
			ID: uuid.New(), SubmissionID: sub.ID, AssessmentProblemID: a.AssessmentProblemID,
			CandidateAnswer: a.CandidateAnswer, Dialect: a.Dialect, Grade: model.GradeManual,
		})
	}
	return sub, nil
}

func (m *memSubmissions) ListReportsByAssessment(context.Context, uuid.UUID) ([]model.SubmissionReport, error) {
	return nil, nil
}

type submitFixture struct {
	clock  *clock.Fake
	store  *memSubmissions
	router *gin.Engine
	end    time.Time
	path   string
}

// newSubmitFixture serves the submit route behind the real gate. The clock
// moves by lag between the gate admitting the request and the handler.
func newSubmitFixture(t *testing.T, lag time.Duration) *submitFixture {
	t.Helper()
	validator.Setup()

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	candidateID := uuid.New()
	assessment := &model.Assessment{ID: uuid.New(), Name: "Aggregates", ScheduledStart: &start, DurationMinutes: 60}
	f := &submitFixture{
		clock: clock.NewFake(start),
		store: &memSubmissions{},
		end:   start.Add(time.Hour),
		path:  "/assessments/" + assessment.ID.String() + "/submissions",
	}

	gate := service.NewGateService(
		&stubEnrollments{enrollment: &model.Enrollment{ID: uuid.New(), AssessmentID: assessment.ID, CandidateID: candidateID}},
		&stubAssessments{assessment: assessment},
		f.clock, zerolog.Nop(),
	)
	submissions := service.NewSubmissionService(f.store, nil, gate, nil, nil, zerolog.Nop())
	h := NewCandidateHandler(nil, submissions)

	f.router = gin.New()
	f.router.POST("/assessments/:id/submissions",
		func(c *gin.Context) {
			c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeCandidate, UserID: candidateID})
			c.Next()
		},
		middleware.AssessmentGate(gate),
		func(c *gin.Context) {
			f.clock.Advance(lag)
			c.Next()
		},
		h.Submit,
	)
	return f
}

func (f *submitFixture) submit(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"answers":[{"assessment_problem_id":"` + uuid.NewString() + `","candidate_answer":"SELECT 1","dialect":"mysql"}]}`
	req := httptest.NewRequest(http.MethodPost, f.path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestSubmit_RacingTheEndIsRejected(t *testing.T) {
	f := newSubmitFixture(t, time.Millisecond)
	f.clock.Set(f.end)

	w := f.submit(t)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Status     string `json:"status"`
			ServerTime string `json:"server_time"`
		} `json:"data"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ASSESSMENT_ENDED", resp.Error.Code)
	assert.Equal(t, "ended", resp.Data.Status)
	assert.Equal(t, "2025-03-01T11:00:00.001Z", resp.Data.ServerTime)
	assert.Empty(t, f.store.submittedAt)
}

func TestSubmit_AtTheEndIsStored(t *testing.T) {
	f := newSubmitFixture(t, 0)
	f.clock.Set(f.end)

	w := f.submit(t)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, f.store.submittedAt, 1)
	assert.True(t, f.end.Equal(f.store.submittedAt[0]))
	assert.Contains(t, w.Body.String(), `"server_time":"2025-03-01T11:00:00.000Z"`)
}

func TestSubmit_UsesTheRecheckClockSample(t *testing.T) {
	f := newSubmitFixture(t, 2*time.Second)
	f.clock.Set(f.end.Add(-time.Minute))

	w := f.submit(t)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, f.store.submittedAt, 1)
	assert.True(t, f.end.Add(-58*time.Second).Equal(f.store.submittedAt[0]))
}
