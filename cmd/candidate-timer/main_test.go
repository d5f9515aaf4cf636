package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryproctor/backend/internal/candidateclient"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/timer"
	"github.com/queryproctor/backend/internal/timing"
)

func scriptedFetch(views ...*candidateclient.View) (func(context.Context) (*candidateclient.View, error), *int) {
	calls := 0
	return func(context.Context) (*candidateclient.View, error) {
		if calls >= len(views) {
			return nil, errors.New("no more views")
		}
		v := views[calls]
		calls++
		if v == nil {
			return nil, errors.New("temporary failure")
		}
		return v, nil
	}, &calls
}

func TestAwaitStart_StopsOnCancellation(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	first := &candidateclient.View{Rejected: response.ErrAssessmentNotStarted, ScheduledStart: &start, EndTime: &end}
	tracker := timer.NewTracker(0, &start, "", &end)

	later, laterEnd := start.Add(3*time.Hour), end.Add(3*time.Hour)
	fetch, calls := scriptedFetch(
		nil,
		&candidateclient.View{Rejected: response.ErrAssessmentNotStarted, ScheduledStart: &later, EndTime: &laterEnd, Offset: timer.Offset(time.Second)},
		&candidateclient.View{Rejected: response.ErrAssessmentCancelled, AssessmentName: "Joins", ScheduledStart: &later, EndTime: &laterEnd},
	)

	view, err := awaitStart(context.Background(), first, time.Millisecond, fetch, tracker, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 3, *calls)
	assert.Equal(t, response.ErrAssessmentCancelled, view.Rejected)
	assert.Equal(t, "Joins", view.AssessmentName)

	// The moved schedule was applied to the countdown.
	d := tracker.Tick(start.Add(time.Hour))
	assert.Equal(t, timing.StatusNotStarted, d.Status)
	assert.Equal(t, "03:00:00", d.Remaining)
}

func TestAwaitStart_ReturnsOnceActive(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &candidateclient.View{Rejected: response.ErrAssessmentNotStarted, ScheduledStart: &start}
	fetch, calls := scriptedFetch(&candidateclient.View{ScheduledStart: &start, Status: "active"})

	view, err := awaitStart(context.Background(), first, time.Millisecond, fetch, timer.NewTracker(0, &start, "", nil), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	assert.Empty(t, view.Rejected)
}

func TestAwaitStart_Interrupted(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	first := &candidateclient.View{Rejected: response.ErrAssessmentNotStarted, ScheduledStart: &start}
	fetch, calls := scriptedFetch()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := awaitStart(ctx, first, time.Hour, fetch, timer.NewTracker(0, &start, "", nil), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, *calls)
}
