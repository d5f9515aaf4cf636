package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/queryproctor/backend/internal/model"
)

func TestBuildWorkbook(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	reports := []model.SubmissionReport{{
		SubmissionID:        uuid.New(),
		SubmittedAt:         submitted,
		CandidateName:       "Ada Lovelace",
		CandidateEmail:      "ada@example.com",
		MatriculationNumber: "A001",
		Details: []model.SubmissionReportItem{
			{ProblemName: "Joins", CandidateAnswer: "SELECT 1", Dialect: model.DialectPostgres, Grade: model.GradePassed},
			{ProblemName: "Window", CandidateAnswer: "SELECT TOP 1", Dialect: model.DialectSQLServer, Grade: model.GradeManual},
		},
	}}

	buf, err := buildWorkbook(reports, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Submissions")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Submission ID", rows[0][0])
	assert.Equal(t, "2025-03-01 10:30:00 UTC", rows[1][1])
	assert.Equal(t, "Ada Lovelace", rows[1][2])
	assert.Equal(t, "passed", rows[1][7])
	assert.Equal(t, "Window", rows[2][5])
	assert.Equal(t, "manual", rows[2][7])
	assert.Equal(t, "SELECT TOP 1", rows[2][8])
}

func TestBuildWorkbook_Empty(t *testing.T) {
	buf, err := buildWorkbook(nil, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Submissions")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
