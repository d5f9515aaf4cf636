package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryproctor/backend/internal/timing"
)

func TestParseDurationText(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1 hour 30 minutes", 90 * time.Minute},
		{"90 minutes", 90 * time.Minute},
		{"2 Hours", 2 * time.Hour},
		{"1hour 5minute", 65 * time.Minute},
		{"45 MINUTES", 45 * time.Minute},
		{"garbage", 0},
		{"", 0},
		{"3000000 hours", 0},
		{"99999999999999999999 minutes", 0},
		{"2562047 hours 153722867 minutes", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDurationText(tt.in))
		})
	}
	assert.Equal(t, int64(5_400_000), ParseDurationText("1 hour 30 minutes").Milliseconds())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "00:00:59", FormatClock(59*time.Second+999*time.Millisecond))
	assert.Equal(t, "01:30:00", FormatClock(90*time.Minute))
	assert.Equal(t, "00:10:00", FormatClock(-10*time.Minute))
	assert.Equal(t, "125:00:01", FormatClock(125*time.Hour+time.Second))
}

func TestOffset_CorrectsSkew(t *testing.T) {
	server := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	client := server.Add(-3 * time.Minute)

	off := NewOffset(server, client)
	for _, delta := range []time.Duration{0, time.Second, 17 * time.Minute} {
		assert.True(t, server.Add(delta).Equal(off.Apply(client.Add(delta))))
	}
}

// A client clock three minutes slow must show the server's remaining time.
func TestCompute_SlowClientClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	serverNow := start.Add(30 * time.Minute)
	clientNow := serverNow.Add(-3 * time.Minute)

	off := NewOffset(serverNow, clientNow)
	d := Compute(off.Apply(clientNow), &start, "1 hour", &end)

	assert.Equal(t, "00:30:00", d.Remaining)
	assert.Equal(t, "00:30:00", d.Elapsed)
	assert.False(t, d.IsOvertime)
	assert.Equal(t, timing.StatusActive, d.Status)
	assert.False(t, d.EditorLocked)
}

func TestCompute_Overtime(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour + 5*time.Minute + 30*time.Second)

	d := Compute(now, &start, "1 hour", nil)
	assert.True(t, d.IsOvertime)
	assert.Equal(t, "-00:05:30", d.Remaining)
	assert.Equal(t, "01:05:30", d.Elapsed)
	assert.Equal(t, timing.StatusEnded, d.Status)
	assert.True(t, d.EditorLocked)
}

func TestCompute_NotStartedClampsElapsed(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	d := Compute(start.Add(-10*time.Minute), &start, "30 minutes", nil)

	assert.Equal(t, "00:00:00", d.Elapsed)
	assert.Equal(t, "00:40:00", d.Remaining)
	assert.Equal(t, timing.StatusNotStarted, d.Status)
	assert.True(t, d.EditorLocked)
}

func TestCompute_NoStart(t *testing.T) {
	d := Compute(time.Now(), nil, "1 hour 30 minutes", nil)
	assert.Equal(t, "00:00:00", d.Elapsed)
	assert.Equal(t, "1 hour 30 minutes", d.Remaining)
	assert.Equal(t, timing.StatusActive, d.Status)
	assert.False(t, d.IsOvertime)
}

func TestCompute_EndDateWinsOverDurationText(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	d := Compute(start.Add(time.Hour), &start, "30 minutes", &end)
	assert.Equal(t, "01:00:00", d.Remaining)
}

func TestTracker_StatusNeverRegresses(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(0, &start, "10 minutes", nil)

	assert.Equal(t, timing.StatusActive, tr.Tick(start.Add(time.Minute)).Status)
	assert.Equal(t, timing.StatusEnded, tr.Tick(start.Add(11*time.Minute)).Status)

	// A recalibration that pulls the clock back does not reopen the editor.
	tr.Recalibrate(Offset(-5 * time.Minute))
	d := tr.Tick(start.Add(12 * time.Minute))
	assert.Equal(t, timing.StatusEnded, d.Status)
	assert.True(t, d.EditorLocked)
	assert.Equal(t, "00:03:00", d.Remaining)
}

func TestTracker_KeepsTickingInOvertime(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(0, &start, "1 minute", nil)

	first := tr.Tick(start.Add(2 * time.Minute))
	second := tr.Tick(start.Add(3 * time.Minute))
	assert.Equal(t, "-00:01:00", first.Remaining)
	assert.Equal(t, "-00:02:00", second.Remaining)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})

	go func() {
		Run(ctx, 5*time.Millisecond, func() { calls.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestTracker_Run(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(0, &start, "1 hour", nil)

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan Display, 1)

	go tr.Run(ctx, time.Hour, func() time.Time { return start.Add(time.Minute) }, func(d Display) {
		frames <- d
		cancel()
	})

	select {
	case d := <-frames:
		assert.Equal(t, "00:59:00", d.Remaining)
	case <-time.After(time.Second):
		t.Fatal("no frame rendered")
	}
}

func TestCompute_AgreesWithServerDecision(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	schedule := timing.Schedule{ScheduledStart: &start, DurationMinutes: 60}

	for _, offset := range []time.Duration{-time.Second, 0, time.Millisecond, 30 * time.Minute, time.Hour, time.Hour + time.Millisecond} {
		now := start.Add(offset)
		d := Compute(now, &start, "60 minutes", nil)
		assert.Equal(t, timing.Evaluate(now, schedule).Status, d.Status, "at %s", offset)
	}
}

func TestTracker_Reschedule(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	tr := NewTracker(0, &start, "60 minutes", &end)

	sameStart, sameEnd := start, end
	assert.False(t, tr.Reschedule(&sameStart, &sameEnd))

	assert.Equal(t, timing.StatusActive, tr.Tick(start.Add(time.Minute)).Status)

	// Moved two hours later: the display goes back to not started.
	later, laterEnd := start.Add(2*time.Hour), end.Add(2*time.Hour)
	require.True(t, tr.Reschedule(&later, &laterEnd))
	d := tr.Tick(start.Add(2 * time.Minute))
	assert.Equal(t, timing.StatusNotStarted, d.Status)
	assert.True(t, d.EditorLocked)
	assert.Equal(t, "02:58:00", d.Remaining)

	assert.True(t, tr.Reschedule(nil, nil))
	assert.Equal(t, timing.StatusActive, tr.Tick(start).Status)
}
