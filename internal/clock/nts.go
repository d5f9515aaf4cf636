package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beevik/nts"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/metrics"
)

const (
	ntsPollPeriod  = time.Hour
	ntsRetryPeriod = 5 * time.Minute

	// Consecutive failed polls tolerated before reconnecting, possibly to a
	// different server.
	ntsMaxFailures = 5

	// Readings older than this are ignored and the system clock is used.
	ntsStaleThreshold = 6 * time.Hour
)

// ErrNoNTSServer is returned when none of the configured servers answer.
var ErrNoNTSServer = errors.New("failed to connect to any NTS server")

type reading struct {
	nts    time.Time
	system time.Time
}

// newReading pairs a system clock sample with the NTS time implied by the
// round-trip corrected offset.
func newReading(system time.Time, offset time.Duration) reading {
	return reading{nts: system.Round(0).Add(offset), system: system}
}

// NTS is a Clock disciplined by Network Time Security. Now returns the last
// NTS reading advanced by the monotonic time elapsed since it was taken, so
// gating decisions do not depend on the host's realtime clock. When the
// reading goes stale it falls back to the system clock.
type NTS struct {
	addrs []string
	log   zerolog.Logger

	mu      sync.RWMutex
	last    reading
	session *nts.Session

	// staleWarned is set once a stale reading has been reported and cleared by
	// the next fresh reading.
	staleWarned atomic.Bool
}

// NewNTS connects to the first reachable server in addrs and takes an initial
// reading. Call Poll in a goroutine to keep the reading fresh.
func NewNTS(addrs []string, log zerolog.Logger) (*NTS, error) {
	c := &NTS{
		addrs: addrs,
		log:   log.With().Str("component", "nts_clock").Logger(),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	if err := c.pollOnce(); err != nil {
		return nil, err
	}
	return c, nil
}

// Now implements Clock.
func (c *NTS) Now() time.Time {
	c.mu.RLock()
	last := c.last
	c.mu.RUnlock()

	// time.Since uses the monotonic reading carried by last.system.
	delta := time.Since(last.system)
	if delta >= ntsStaleThreshold {
		if c.staleWarned.CompareAndSwap(false, true) {
			c.log.Warn().
				Dur("age", delta).
				Dur("last_offset", last.nts.Sub(last.system)).
				Msg("NTS reading is stale, falling back to the system clock")
		}
		return time.Now()
	}
	return last.nts.Add(delta)
}

// Offset returns the difference between NTS time and the system clock at the
// last reading.
func (c *NTS) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last.nts.Sub(c.last.system)
}

// Poll refreshes the reading until ctx is cancelled.
func (c *NTS) Poll(ctx context.Context) {
	failures := 0
	for {
		wait := ntsPollPeriod
		if failures > 0 {
			wait = ntsRetryPeriod
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		if failures > ntsMaxFailures {
			if err := c.connect(); err != nil {
				c.log.Error().Err(err).Msg("NTS reconnect failed")
				failures++
				continue
			}
		}

		if err := c.pollOnce(); err != nil {
			c.log.Warn().Err(err).Int("failures", failures+1).Msg("NTS poll failed")
			failures++
			continue
		}
		failures = 0
	}
}

func (c *NTS) connect() error {
	for _, addr := range c.addrs {
		session, err := nts.NewSession(addr)
		if err != nil {
			c.log.Warn().Err(err).Str("addr", addr).Msg("NTS connect failed")
			continue
		}
		c.mu.Lock()
		c.session = session
		c.mu.Unlock()
		c.log.Info().Str("addr", addr).Msg("NTS connected")
		return nil
	}
	return ErrNoNTSServer
}

func (c *NTS) pollOnce() error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()

	resp, err := session.Query()
	if err != nil {
		return fmt.Errorf("query NTS time: %w", err)
	}

	r := newReading(time.Now(), resp.ClockOffset)

	c.mu.Lock()
	c.last = r
	c.mu.Unlock()
	c.staleWarned.Store(false)

	metrics.ClockOffset.Set(r.nts.Sub(r.system).Seconds())
	c.log.Debug().Dur("offset", r.nts.Sub(r.system)).Msg("NTS reading updated")
	return nil
}
