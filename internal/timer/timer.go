// Package timer computes the candidate-facing countdown.
//
// The display is presentation only. It runs the same timing decision as the
// server against a skew-corrected local clock so the countdown agrees with the
// server's gate, but the server never trusts anything computed here.
package timer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/queryproctor/backend/internal/timing"
)

// Offset is serverTime minus clientTime, captured once per fetch.
type Offset time.Duration

// NewOffset captures the skew between a server timestamp and the local clock
// sampled when the response arrived.
func NewOffset(serverTime, localNow time.Time) Offset {
	return Offset(serverTime.Sub(localNow))
}

// Apply returns the local time corrected to server time.
func (o Offset) Apply(localNow time.Time) time.Time {
	return localNow.Add(time.Duration(o))
}

var (
	hoursPattern   = regexp.MustCompile(`(?i)(\d+)\s*hours?`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*minutes?`)
)

// ParseDurationText reads free text such as "1 hour 30 minutes" or
// "90 minutes". Hour and minute phrases are matched independently and a
// missing phrase counts as zero. Unrecognized text yields zero.
// Text whose total does not fit in a time.Duration is unrecognized.
func ParseDurationText(s string) time.Duration {
	hours, ok := phraseCount(hoursPattern, s, time.Hour)
	if !ok {
		return 0
	}
	minutes, ok := phraseCount(minutesPattern, s, time.Minute)
	if !ok {
		return 0
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if d < 0 {
		return 0
	}
	return d
}

// phraseCount returns the number in the first match of p, or zero when there
// is none. ok is false when n*unit would overflow.
func phraseCount(p *regexp.Regexp, s string, unit time.Duration) (n int64, ok bool) {
	m := p.FindStringSubmatch(s)
	if m == nil {
		return 0, true
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n > math.MaxInt64/int64(unit) {
		return 0, false
	}
	return n, true
}

// FormatClock renders d as HH:MM:SS using the floor of its whole seconds.
// Negative durations are formatted by magnitude; callers add the sign.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Display is one rendered frame of the countdown.
type Display struct {
	Elapsed      string        `json:"elapsed"`
	Remaining    string        `json:"remaining"`
	IsOvertime   bool          `json:"is_overtime"`
	Status       timing.Status `json:"status"`
	EditorLocked bool          `json:"editor_locked"`
}

// Compute renders the countdown at correctedNow.
//
// Without a start time the elapsed clock reads 00:00:00 and remaining shows
// durationText verbatim. When end is nil it is derived from the start plus
// the parsed duration text.
func Compute(correctedNow time.Time, start *time.Time, durationText string, end *time.Time) Display {
	if start == nil {
		return Display{
			Elapsed:   FormatClock(0),
			Remaining: durationText,
			Status:    timing.StatusActive,
		}
	}

	endAt := start.Add(ParseDurationText(durationText))
	if end != nil {
		endAt = *end
	}

	elapsed := correctedNow.Sub(*start)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := endAt.Sub(correctedNow)

	d := Display{
		Elapsed:    FormatClock(elapsed),
		Remaining:  FormatClock(remaining),
		IsOvertime: remaining < 0,
	}
	if d.IsOvertime {
		d.Remaining = "-" + d.Remaining
	}

	d.Status = timing.EvaluateWindow(correctedNow, *start, endAt)
	d.EditorLocked = d.Status != timing.StatusActive
	return d
}
