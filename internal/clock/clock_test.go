package clock

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f := NewFake(base)

	assert.True(t, base.Equal(f.Now()))

	f.Advance(90 * time.Second)
	assert.True(t, base.Add(90*time.Second).Equal(f.Now()))

	f.Set(base)
	assert.True(t, base.Equal(f.Now()))
}

func TestNTS_NowUsesMonotonicDelta(t *testing.T) {
	ntsTime := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &NTS{last: reading{nts: ntsTime, system: time.Now().Add(-time.Minute)}}

	now := c.Now()
	assert.False(t, now.Before(ntsTime.Add(time.Minute)))
	assert.True(t, now.Before(ntsTime.Add(2*time.Minute)))
}

func TestNTS_StaleFallsBackToSystem(t *testing.T) {
	var buf bytes.Buffer
	ntsTime := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &NTS{
		log:  zerolog.New(&buf),
		last: reading{nts: ntsTime, system: time.Now().Add(-ntsStaleThreshold - time.Second)},
	}

	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
	assert.Equal(t, 1, strings.Count(buf.String(), "falling back to the system clock"))

	c.staleWarned.Store(false)
	c.Now()
	assert.Equal(t, 2, strings.Count(buf.String(), "falling back to the system clock"))
}

func TestNewReading_AppliesOffset(t *testing.T) {
	system := time.Now()
	r := newReading(system, 1500*time.Millisecond)

	assert.Equal(t, 1500*time.Millisecond, r.nts.Sub(r.system))
	c := &NTS{last: r}
	assert.Equal(t, 1500*time.Millisecond, c.Offset())
}

func TestSystem(t *testing.T) {
	var c Clock = System{}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
