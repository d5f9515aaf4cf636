package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/mailer"
	"github.com/queryproctor/backend/internal/metrics"
)

const (
	MailPollTimeout   = 1 * time.Second
	MailRetryDelay    = 5 * time.Second
	MailMaxAttempts   = 5
	MailDrainTimeout  = 10 * time.Second
	mailSendTimeout   = 30 * time.Second
	mailResultSent    = "sent"
	mailResultRetry   = "retry"
	mailResultDropped = "dropped"
)

// MailWorker consumes the mail queue and delivers invitation and
// cancellation emails.
type MailWorker struct {
	mailer mailer.Mailer
	rdb    *redis.Client
	loc    *time.Location
	log    zerolog.Logger
}

// NewMailWorker creates a new MailWorker. Schedules in emails are shown in loc.
func NewMailWorker(m mailer.Mailer, rdb *redis.Client, loc *time.Location, log zerolog.Logger) *MailWorker {
	return &MailWorker{
		mailer: m,
		rdb:    rdb,
		loc:    loc,
		log:    log.With().Str("component", "mail_worker").Logger(),
	}
}

// Start begins the worker loop and returns after draining on shutdown.
func (w *MailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), MailDrainTimeout)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *MailWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, MailPollTimeout, config.WorkerKey.MailQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if retry := w.handle(ctx, result[1]); retry != nil {
		w.requeue(ctx, retry)
		time.Sleep(MailRetryDelay)
	}
}

// handle delivers one queued job. It returns the job to requeue when
// delivery failed and attempts remain.
func (w *MailWorker) handle(ctx context.Context, raw string) *mailer.Job {
	var job mailer.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return nil
	}

	jobLog := w.log.With().Str("kind", string(job.Kind)).Str("to", job.To).Logger()

	if err := w.send(ctx, &job); err != nil {
		job.Attempts++
		if job.Attempts >= MailMaxAttempts {
			metrics.MailsSent.WithLabelValues(string(job.Kind), mailResultDropped).Inc()
			jobLog.Error().Err(err).Int("attempts", job.Attempts).Msg("Mail dropped after repeated failures")
			return nil
		}
		metrics.MailsSent.WithLabelValues(string(job.Kind), mailResultRetry).Inc()
		jobLog.Warn().Err(err).Int("attempts", job.Attempts).Msg("Mail delivery failed, retrying")
		return &job
	}

	metrics.MailsSent.WithLabelValues(string(job.Kind), mailResultSent).Inc()
	jobLog.Debug().Msg("Mail delivered")
	return nil
}

func (w *MailWorker) send(ctx context.Context, job *mailer.Job) error {
	msg, err := job.Render(w.loc)
	if err != nil {
		// A job that cannot render will never succeed.
		job.Attempts = MailMaxAttempts
		return fmt.Errorf("render: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, mailSendTimeout)
	defer cancel()
	return w.mailer.Send(sendCtx, msg)
}

func (w *MailWorker) requeue(ctx context.Context, job *mailer.Job) {
	raw, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.MailQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("to", job.To).Msg("Failed to requeue mail")
	}
}

// drain delivers what is left in the queue until it is empty or ctx expires.
// Failed jobs go back to the queue for the next start.
func (w *MailWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.MailQueue).Result()
		if err != nil {
			break
		}
		if retry := w.handle(ctx, raw); retry != nil {
			w.requeue(context.Background(), retry)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
