package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestEvaluate_Scenarios(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	schedule := Schedule{ScheduledStart: &start, DurationMinutes: 60}

	tests := []struct {
		name    string
		now     string
		want    Status
		wantEnd string
	}{
		{"before start", "2025-03-01T09:59:59Z", StatusNotStarted, "2025-03-01T11:00:00Z"},
		{"mid window", "2025-03-01T10:30:00Z", StatusActive, "2025-03-01T11:00:00Z"},
		{"after end", "2025-03-01T11:00:01Z", StatusEnded, "2025-03-01T11:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := Evaluate(mustTime(t, tt.now), schedule)
			assert.Equal(t, tt.want, st.Status)
			require.NotNil(t, st.EndTime)
			assert.True(t, mustTime(t, tt.wantEnd).Equal(*st.EndTime))
			require.NotNil(t, st.ScheduledStart)
			assert.True(t, start.Equal(*st.ScheduledStart))
		})
	}
}

func TestEvaluate_Ungated(t *testing.T) {
	for _, now := range []time.Time{time.Time{}, time.Unix(0, 0), time.Now()} {
		st := Evaluate(now, Schedule{DurationMinutes: 60})
		assert.Equal(t, StatusActive, st.Status)
		assert.Nil(t, st.EndTime)
		assert.Nil(t, st.ScheduledStart)
		assert.False(t, st.Gated())
	}
}

func TestEvaluate_Boundaries(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	end := start.Add(90 * time.Minute)
	schedule := Schedule{ScheduledStart: &start, DurationMinutes: 90}

	assert.Equal(t, StatusNotStarted, Evaluate(start.Add(-time.Millisecond), schedule).Status)
	assert.Equal(t, StatusActive, Evaluate(start, schedule).Status)
	assert.Equal(t, StatusActive, Evaluate(end, schedule).Status)
	assert.Equal(t, StatusEnded, Evaluate(end.Add(time.Millisecond), schedule).Status)
}

func TestEvaluate_Partition(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	schedule := Schedule{ScheduledStart: &start, DurationMinutes: 45}
	end := EndTime(start, 45)

	for offset := -2 * time.Hour; offset <= 2*time.Hour; offset += 7*time.Minute + 13*time.Second {
		now := start.Add(offset)
		st := Evaluate(now, schedule)

		inWindow := !now.Before(start) && !now.After(end)
		assert.Equal(t, inWindow, st.Status == StatusActive, "offset %s", offset)
		assert.Equal(t, now.Before(start), st.Status == StatusNotStarted, "offset %s", offset)
		assert.Equal(t, now.After(end), st.Status == StatusEnded, "offset %s", offset)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	schedule := Schedule{ScheduledStart: &start, DurationMinutes: 30}
	now := start.Add(10 * time.Minute)

	first := Evaluate(now, schedule)
	second := Evaluate(now, schedule)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, first.EndTime.Equal(*second.EndTime))
}

func TestEvaluate_DoesNotAliasInput(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	schedule := Schedule{ScheduledStart: &start, DurationMinutes: 30}

	st := Evaluate(start, schedule)
	*st.ScheduledStart = st.ScheduledStart.Add(time.Hour)
	assert.True(t, mustTime(t, "2025-03-01T10:00:00Z").Equal(start))
}

func TestState_ElapsedRemaining(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	st := Evaluate(start, Schedule{ScheduledStart: &start, DurationMinutes: 60})

	assert.Equal(t, time.Duration(0), st.Elapsed(start.Add(-time.Minute)))
	assert.Equal(t, 15*time.Minute, st.Elapsed(start.Add(15*time.Minute)))
	assert.Equal(t, 45*time.Minute, st.Remaining(start.Add(15*time.Minute)))
	assert.Equal(t, -5*time.Minute, st.Remaining(start.Add(65*time.Minute)))

	ungated := Evaluate(start, Schedule{})
	assert.Equal(t, time.Duration(0), ungated.Elapsed(start))
	assert.Equal(t, time.Duration(0), ungated.Remaining(start))
}

func TestEvaluateWindow(t *testing.T) {
	start := mustTime(t, "2025-03-01T10:00:00Z")
	end := start.Add(time.Hour)

	assert.Equal(t, StatusNotStarted, EvaluateWindow(start.Add(-time.Nanosecond), start, end))
	assert.Equal(t, StatusActive, EvaluateWindow(start, start, end))
	assert.Equal(t, StatusActive, EvaluateWindow(end, start, end))
	assert.Equal(t, StatusEnded, EvaluateWindow(end.Add(time.Nanosecond), start, end))
}
