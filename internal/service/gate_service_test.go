package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryproctor/backend/internal/clock"
	"github.com/queryproctor/backend/internal/metrics"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/timing"
)

type fakeEnrollments struct {
	enrollment *model.Enrollment
	err        error
	calls      int
}

func (f *fakeEnrollments) Get(_ context.Context, _, _ uuid.UUID) (*model.Enrollment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.enrollment, nil
}

type fakeAssessments struct {
	assessment *model.Assessment
	err        error
	calls      int
}

func (f *fakeAssessments) GetByID(_ context.Context, _ uuid.UUID) (*model.Assessment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.assessment, nil
}

type gateFixture struct {
	enrollments *fakeEnrollments
	assessments *fakeAssessments
	clock       *clock.Fake
	svc         *GateService
	start       time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assessmentID := uuid.New()

	f := &gateFixture{
		enrollments: &fakeEnrollments{enrollment: &model.Enrollment{ID: uuid.New(), AssessmentID: assessmentID, CandidateID: uuid.New()}},
		assessments: &fakeAssessments{assessment: &model.Assessment{
			ID: assessmentID, Name: "SQL Joins", ScheduledStart: &start, DurationMinutes: 60,
		}},
		clock: clock.NewFake(start.Add(30 * time.Minute)),
		start: start,
	}
	f.svc = NewGateService(f.enrollments, f.assessments, f.clock, zerolog.Nop())
	return f
}

func (f *gateFixture) evaluate(t *testing.T) (*GateDecision, error) {
	t.Helper()
	return f.svc.Evaluate(context.Background(), f.assessments.assessment.ID, f.enrollments.enrollment.CandidateID)
}

func TestGate_TimingOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   GateOutcome
	}{
		{"before start", -time.Second, GateNotStarted},
		{"at start", 0, GateAllowed},
		{"mid window", 30 * time.Minute, GateAllowed},
		{"at end", time.Hour, GateAllowed},
		{"after end", time.Hour + time.Millisecond, GateEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGateFixture(t)
			f.clock.Set(f.start.Add(tt.offset))

			d, err := f.evaluate(t)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.want == GateAllowed, d.Allowed())
			assert.True(t, f.clock.Now().Equal(d.ServerTime))
			require.NotNil(t, d.State.EndTime)
			assert.True(t, f.start.Add(time.Hour).Equal(*d.State.EndTime))
		})
	}
}

func TestGate_CancelledRejectsInsideWindow(t *testing.T) {
	f := newGateFixture(t)
	archived := f.start.Add(-time.Hour)
	f.assessments.assessment.ArchivedAt = &archived
	// Cancellation archives the enrollment as well.
	f.enrollments.enrollment.ArchivedAt = &archived

	d, err := f.evaluate(t)
	require.NoError(t, err)
	assert.Equal(t, GateCancelled, d.Outcome)
	assert.False(t, d.Allowed())
	assert.Equal(t, timing.StatusActive, d.State.Status)
	assert.Equal(t, "cancelled", d.Payload().Status)
}

func TestGate_CancelledTakesPrecedenceOverEnded(t *testing.T) {
	f := newGateFixture(t)
	archived := f.start
	f.assessments.assessment.ArchivedAt = &archived
	f.clock.Set(f.start.Add(48 * time.Hour))

	d, err := f.evaluate(t)
	require.NoError(t, err)
	assert.Equal(t, GateCancelled, d.Outcome)
}

func TestGate_Ungated(t *testing.T) {
	f := newGateFixture(t)
	f.assessments.assessment.ScheduledStart = nil
	f.clock.Set(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))

	d, err := f.evaluate(t)
	require.NoError(t, err)
	assert.Equal(t, GateAllowed, d.Outcome)
	assert.Nil(t, d.State.EndTime)
	assert.Nil(t, d.Payload().EndTime)
}

func TestGate_NotEnrolled(t *testing.T) {
	f := newGateFixture(t)
	f.enrollments.err = pgx.ErrNoRows

	_, err := f.evaluate(t)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	assert.Zero(t, f.assessments.calls)
}

func TestGate_ArchivedEnrollmentOfLiveAssessment(t *testing.T) {
	f := newGateFixture(t)
	archived := f.start
	f.enrollments.enrollment.ArchivedAt = &archived

	_, err := f.evaluate(t)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestGate_AssessmentMissing(t *testing.T) {
	f := newGateFixture(t)
	f.assessments.err = pgx.ErrNoRows

	_, err := f.evaluate(t)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGate_StorageErrorIsWrapped(t *testing.T) {
	f := newGateFixture(t)
	boom := errors.New("connection reset")
	f.assessments.err = boom

	_, err := f.evaluate(t)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGate_ReevaluatedOnEveryCall(t *testing.T) {
	f := newGateFixture(t)
	f.clock.Set(f.start.Add(59 * time.Minute))

	d, err := f.evaluate(t)
	require.NoError(t, err)
	assert.Equal(t, GateAllowed, d.Outcome)

	f.clock.Advance(2 * time.Minute)
	d, err = f.evaluate(t)
	require.NoError(t, err)
	assert.Equal(t, GateEnded, d.Outcome)
	assert.Equal(t, 2, f.assessments.calls)
}

func TestGate_PayloadCarriesServerTime(t *testing.T) {
	f := newGateFixture(t)
	f.clock.Set(time.Date(2025, 3, 1, 10, 15, 0, 123456789, time.UTC))

	d, err := f.evaluate(t)
	require.NoError(t, err)

	p := d.Payload()
	assert.Equal(t, "active", p.Status)
	assert.Equal(t, "SQL Joins", p.AssessmentName)
	assert.Equal(t, "2025-03-01T10:15:00.123Z", p.ServerTime)
	require.NotNil(t, p.ScheduledStart)
	assert.True(t, f.start.Equal(*p.ScheduledStart))
}

func TestGate_CountsOutcomes(t *testing.T) {
	f := newGateFixture(t)
	f.clock.Set(f.start.Add(-time.Minute))

	counter := func(stage GateStage) float64 {
		return testutil.ToFloat64(metrics.GateDecisions.WithLabelValues(string(GateNotStarted), string(stage)))
	}
	beforeRequest, beforeSubmit := counter(GateStageRequest), counter(GateStageSubmit)

	_, err := f.evaluate(t)
	require.NoError(t, err)
	_, err = f.svc.EvaluateStage(context.Background(), GateStageSubmit, f.assessments.assessment.ID, f.enrollments.enrollment.CandidateID)
	require.NoError(t, err)

	assert.Equal(t, beforeRequest+1, counter(GateStageRequest))
	assert.Equal(t, beforeSubmit+1, counter(GateStageSubmit))
}
