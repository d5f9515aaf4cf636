// Package timing decides whether a scheduled assessment is open.
//
// Every function here takes "now" as an argument. The package never reads a
// clock, so the same decision can be replayed on the server (with the server
// clock) and on a candidate's display (with a skew-corrected local clock).
package timing

import "time"

// Status is the timing phase of an assessment.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
)

// Schedule is the administrator-authored timing of an assessment.
// A nil ScheduledStart means the assessment is not time gated.
type Schedule struct {
	ScheduledStart  *time.Time
	DurationMinutes int
}

// State is the computed timing of an assessment at a given instant.
// It is never persisted.
type State struct {
	Status         Status     `json:"status"`
	ScheduledStart *time.Time `json:"scheduled_start"`
	EndTime        *time.Time `json:"end_time"`
}

// EndTime returns start plus the duration in whole minutes.
func EndTime(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// Evaluate returns the timing state of s at now.
//
// Both boundaries are inclusive: now == start and now == end are Active.
// An ungated schedule is always Active with no end time.
func Evaluate(now time.Time, s Schedule) State {
	if s.ScheduledStart == nil {
		return State{Status: StatusActive}
	}

	start := *s.ScheduledStart
	end := EndTime(start, s.DurationMinutes)
	return State{
		Status:         EvaluateWindow(now, start, end),
		ScheduledStart: &start,
		EndTime:        &end,
	}
}

// EvaluateWindow returns the status of the window [start, end] at now, with
// both boundaries inclusive.
func EvaluateWindow(now, start, end time.Time) Status {
	switch {
	case now.Before(start):
		return StatusNotStarted
	case now.After(end):
		return StatusEnded
	default:
		return StatusActive
	}
}

// Gated reports whether the state was computed from a scheduled start.
func (s State) Gated() bool {
	return s.ScheduledStart != nil
}

// Elapsed returns the time since the scheduled start, clamped at zero.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.ScheduledStart == nil {
		return 0
	}
	d := now.Sub(*s.ScheduledStart)
	if d < 0 {
		return 0
	}
	return d
}

// Remaining returns the time until the end. It is negative once the end has
// passed and zero for an ungated schedule.
func (s State) Remaining(now time.Time) time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(now)
}

// InstantLayout renders instants with millisecond precision.
const InstantLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatInstant renders t in UTC with InstantLayout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}
