package grading

import (
	"context"

	"github.com/google/uuid"

	"github.com/queryproctor/backend/internal/model"
)

const maxMessageLen = 500

// Grade runs one answer and compares it with the problem's expected result.
// Only Postgres answers are executed; other dialects are left for manual
// review.
func Grade(ctx context.Context, r Runner, problem *model.Problem, answer string, dialect model.Dialect) (model.Grade, string) {
	if dialect != model.DialectPostgres {
		return model.GradeManual, ""
	}

	actual, err := r.Run(ctx, problem.SchemaName, answer)
	if err != nil {
		return model.GradeError, truncate(err.Error())
	}

	if ok, msg := Compare(problem.ExpectedResult, actual, problem.Ordered); !ok {
		return model.GradeFailed, msg
	}
	return model.GradePassed, ""
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen]
}

// Job is a queued grading request for one submission detail.
type Job struct {
	DetailID uuid.UUID `json:"detail_id"`
	Attempts int       `json:"attempts"`
}
