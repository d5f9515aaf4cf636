package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/grading"
	"github.com/queryproctor/backend/internal/metrics"
	"github.com/queryproctor/backend/internal/model"
	"github.com/queryproctor/backend/internal/repository"
)

const (
	GradeBatchSize    = 50
	GradeBatchTimeout = 2 * time.Second
	GradePollTimeout  = 1 * time.Second
	GradeMaxAttempts  = 3
)

// DetailStore reads submission details and stores their grades.
type DetailStore interface {
	GetDetail(ctx context.Context, id uuid.UUID) (*model.SubmissionDetail, error)
	UpdateGrades(ctx context.Context, updates []repository.GradeUpdate) error
	UpdateGrade(ctx context.Context, u repository.GradeUpdate) error
	ListPendingDetailIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ProblemStore resolves the problem an answer belongs to.
type ProblemStore interface {
	GetByAssessmentProblemID(ctx context.Context, assessmentProblemID uuid.UUID) (*model.Problem, error)
}

// GradingWorker consumes the grading queue, runs answers against their
// problem schema and writes the grades in batches.
type GradingWorker struct {
	details  DetailStore
	problems ProblemStore
	runner   grading.Runner
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewGradingWorker(details DetailStore, problems ProblemStore, runner grading.Runner, rdb *redis.Client, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		details:  details,
		problems: problems,
		runner:   runner,
		rdb:      rdb,
		log:      log.With().Str("component", "grading_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start queues every detail still pending from earlier runs, then grades
// jobs in batches until ctx is cancelled.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")
	w.sweep(ctx)

	batch := make([]grading.Job, 0, GradeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradeBatchSize || time.Since(lastFlush) >= GradeBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.GradingQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var job grading.Job
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, job)
		}
	}
}

// sweep re-queues details left pending by a crash or a failed enqueue.
// Details already graded are skipped when dequeued, so duplicates are harmless.
func (w *GradingWorker) sweep(ctx context.Context) {
	ids, err := w.details.ListPendingDetailIDs(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Pending sweep failed")
		return
	}
	if len(ids) == 0 {
		return
	}

	jobs := make([]grading.Job, len(ids))
	for i, id := range ids {
		jobs[i] = grading.Job{DetailID: id}
	}
	w.push(ctx, jobs)
	w.log.Info().Int("count", len(ids)).Msg("Queued pending answers")
}

// ----------------------------------------------------------------
// Batch grading
// ----------------------------------------------------------------

func (w *GradingWorker) flush(ctx context.Context, batch []grading.Job) {
	if len(batch) == 0 {
		return
	}

	updates, retry := w.grade(ctx, batch)
	for _, u := range w.persist(ctx, updates) {
		retry = append(retry, jobFor(batch, u.DetailID))
	}
	w.requeue(ctx, retry)
}

// grade computes the grade of every pending detail in the batch. Jobs that
// hit a storage error are returned for retry.
func (w *GradingWorker) grade(ctx context.Context, batch []grading.Job) ([]repository.GradeUpdate, []grading.Job) {
	var (
		updates  []repository.GradeUpdate
		retry    []grading.Job
		problems = make(map[uuid.UUID]*model.Problem)
	)

	for _, job := range batch {
		detail, err := w.details.GetDetail(ctx, job.DetailID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				w.log.Warn().Str("detail_id", job.DetailID.String()).Msg("Submission detail no longer exists")
				continue
			}
			w.log.Error().Err(err).Str("detail_id", job.DetailID.String()).Msg("Load detail failed")
			retry = append(retry, job)
			continue
		}
		if detail.Grade != model.GradePending {
			continue
		}

		problem, ok := problems[detail.AssessmentProblemID]
		if !ok {
			problem, err = w.problems.GetByAssessmentProblemID(ctx, detail.AssessmentProblemID)
			if err != nil {
				w.log.Error().Err(err).Str("detail_id", job.DetailID.String()).Msg("Load problem failed")
				retry = append(retry, job)
				continue
			}
			problems[detail.AssessmentProblemID] = problem
		}

		g, msg := grading.Grade(ctx, w.runner, problem, detail.CandidateAnswer, detail.Dialect)
		updates = append(updates, repository.GradeUpdate{DetailID: detail.ID, Grade: g, Message: msg})
	}
	return updates, retry
}

// persist writes the grades with one UNNEST update, falling back to single
// updates. It returns the updates that could not be stored.
func (w *GradingWorker) persist(ctx context.Context, updates []repository.GradeUpdate) []repository.GradeUpdate {
	if len(updates) == 0 {
		return nil
	}

	err := w.details.UpdateGrades(ctx, updates)
	if err == nil {
		for _, u := range updates {
			metrics.Grades.WithLabelValues(string(u.Grade)).Inc()
		}
		return nil
	}
	w.log.Warn().Err(err).Msg("Bulk grade update failed, using fallback")

	var failed []repository.GradeUpdate
	for _, u := range updates {
		if err := w.details.UpdateGrade(ctx, u); err != nil {
			w.log.Error().Err(err).Str("detail_id", u.DetailID.String()).Msg("Grade update failed")
			failed = append(failed, u)
			continue
		}
		metrics.Grades.WithLabelValues(string(u.Grade)).Inc()
	}
	return failed
}

func (w *GradingWorker) requeue(ctx context.Context, jobs []grading.Job) {
	var again []grading.Job
	for _, job := range jobs {
		job.Attempts++
		if job.Attempts >= GradeMaxAttempts {
			// Stays pending in the database; the next start sweeps it up.
			w.log.Error().Str("detail_id", job.DetailID.String()).Msg("Grading gave up after repeated failures")
			continue
		}
		again = append(again, job)
	}
	w.push(ctx, again)
}

func (w *GradingWorker) push(ctx context.Context, jobs []grading.Job) {
	if len(jobs) == 0 {
		return
	}
	values := make([]interface{}, 0, len(jobs))
	for _, job := range jobs {
		raw, err := json.Marshal(job)
		if err != nil {
			continue
		}
		values = append(values, raw)
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.GradingQueue, values...).Err(); err != nil {
		w.log.Error().Err(err).Int("count", len(values)).Msg("Failed to queue grading jobs")
	}
}

func jobFor(batch []grading.Job, detailID uuid.UUID) grading.Job {
	for _, job := range batch {
		if job.DetailID == detailID {
			return job
		}
	}
	return grading.Job{DetailID: detailID}
}
