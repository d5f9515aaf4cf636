package timer

import (
	"context"
	"sync"
	"time"

	"github.com/queryproctor/backend/internal/timing"
)

var statusRank = map[timing.Status]int{
	timing.StatusNotStarted: 0,
	timing.StatusActive:     1,
	timing.StatusEnded:      2,
}

// Tracker holds the countdown for one assessment view. Its status only moves
// forward (not_started, active, ended) even if the corrected clock jumps back
// after a recalibration.
type Tracker struct {
	mu           sync.Mutex
	offset       Offset
	start        *time.Time
	end          *time.Time
	durationText string
	status       timing.Status
}

// NewTracker returns a tracker for the given schedule and skew.
func NewTracker(offset Offset, start *time.Time, durationText string, end *time.Time) *Tracker {
	return &Tracker{
		offset:       offset,
		start:        start,
		end:          end,
		durationText: durationText,
	}
}

// Recalibrate replaces the skew after a fresh server response.
func (t *Tracker) Recalibrate(offset Offset) {
	t.mu.Lock()
	t.offset = offset
	t.mu.Unlock()
}

// Reschedule applies a schedule read from the server and reports whether it
// differs from the current one. A changed schedule resets the status, so an
// assessment moved later shows as not started again.
func (t *Tracker) Reschedule(start, end *time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sameInstant(t.start, start) && sameInstant(t.end, end) {
		return false
	}
	t.start, t.end = start, end
	t.status = ""
	return true
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Tick renders the countdown at the given local time.
func (t *Tracker) Tick(localNow time.Time) Display {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := Compute(t.offset.Apply(localNow), t.start, t.durationText, t.end)
	if t.status != "" && statusRank[d.Status] < statusRank[t.status] {
		d.Status = t.status
		d.EditorLocked = d.Status != timing.StatusActive
	}
	t.status = d.Status
	return d
}

// Run renders the tracker every interval until ctx is cancelled. The first
// frame is rendered immediately.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, now func() time.Time, render func(Display)) {
	Run(ctx, interval, func() { render(t.Tick(now())) })
}

// Run calls fn immediately and then on every tick of a single ticker, which
// is stopped when ctx is cancelled.
func Run(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
