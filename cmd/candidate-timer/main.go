// Command candidate-timer shows the countdown of an assessment in a terminal.
// It fetches the assessment through the gate with a candidate token and then
// follows the server clock stream while the assessment is open.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/queryproctor/backend/internal/candidateclient"
	"github.com/queryproctor/backend/internal/logger"
	"github.com/queryproctor/backend/internal/response"
	"github.com/queryproctor/backend/internal/timer"
	ws "github.com/queryproctor/backend/internal/websocket"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	token := flag.String("token", os.Getenv("QP_CANDIDATE_TOKEN"), "Candidate token (default $QP_CANDIDATE_TOKEN)")
	rawID := flag.String("assessment", "", "Assessment ID")
	interval := flag.Duration("interval", time.Second, "Redraw interval")
	refresh := flag.Duration("refresh", time.Minute, "Re-fetch interval while the assessment has not started")
	flag.Parse()

	log := logger.New(os.Stderr, "info", "pretty")

	assessmentID, err := uuid.Parse(*rawID)
	if err != nil || *token == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := candidateclient.New(*baseURL, *token)
	view, err := client.FetchAssessment(ctx, assessmentID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch assessment")
	}
	if view.Rejected == response.ErrAssessmentCancelled {
		fmt.Printf("%s has been cancelled.\n", view.AssessmentName)
		return
	}

	fmt.Printf("%s\n", view.AssessmentName)
	tracker := timer.NewTracker(view.Offset, view.ScheduledStart, view.DurationText(), view.EndTime)

	trackCtx, stopTracking := context.WithCancel(ctx)
	defer stopTracking()
	tracking := make(chan struct{})
	go func() {
		defer close(tracking)
		tracker.Run(trackCtx, *interval, time.Now, newRenderer(os.Stdout))
	}()
	halt := func() {
		stopTracking()
		<-tracking
		fmt.Println()
	}

	fetch := func(ctx context.Context) (*candidateclient.View, error) {
		return client.FetchAssessment(ctx, assessmentID)
	}
	view, err = awaitStart(ctx, view, *refresh, fetch, tracker, log)
	if err != nil {
		halt()
		return
	}

	cancelled := view.Rejected == response.ErrAssessmentCancelled
	if view.Rejected == "" {
		err = client.Stream(ctx, assessmentID, func(ev ws.ClockEvent, off timer.Offset) {
			tracker.Recalibrate(off)
			tracker.Reschedule(ev.ScheduledStart, ev.EndTime)
			if ev.Event == ws.EventCancelled {
				cancelled = true
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Clock stream closed")
		}
	}

	if cancelled {
		halt()
		fmt.Printf("%s has been cancelled.\n", view.AssessmentName)
		return
	}

	// The countdown keeps running in overtime until interrupted.
	<-ctx.Done()
	halt()
}

// awaitStart re-fetches the assessment every refresh while it has not
// started, applying the new offset and any schedule change. It returns the
// first view that is not a not-started rejection.
func awaitStart(
	ctx context.Context,
	view *candidateclient.View,
	refresh time.Duration,
	fetch func(context.Context) (*candidateclient.View, error),
	tracker *timer.Tracker,
	log zerolog.Logger,
) (*candidateclient.View, error) {
	for view.Rejected == response.ErrAssessmentNotStarted {
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-time.After(refresh):
		}

		next, err := fetch(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Refresh failed")
			continue
		}
		view = next
		tracker.Recalibrate(view.Offset)
		if tracker.Reschedule(view.ScheduledStart, view.EndTime) {
			log.Info().Msg("Assessment schedule changed")
		}
	}
	return view, nil
}

// newRenderer redraws a single line on a terminal and prints one line per
// frame otherwise.
func newRenderer(w io.Writer) func(timer.Display) {
	inPlace := false
	if f, ok := w.(*os.File); ok {
		inPlace = term.IsTerminal(int(f.Fd()))
	}

	return func(d timer.Display) {
		line := fmt.Sprintf("[%s] elapsed %s  remaining %s", d.Status, d.Elapsed, d.Remaining)
		if d.IsOvertime {
			line += "  OVERTIME"
		}
		if d.EditorLocked {
			line += "  (editor locked)"
		}
		if inPlace {
			fmt.Fprintf(w, "\r\033[K%s", line)
			return
		}
		fmt.Fprintln(w, line)
	}
}
