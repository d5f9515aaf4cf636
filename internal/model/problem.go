package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Dialect is the SQL dialect a candidate writes an answer in.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLite    Dialect = "sqlite"
	DialectSQLServer Dialect = "sqlserver"
	DialectOracle    Dialect = "oracle"
)

// Valid reports whether d is a known dialect.
func (d Dialect) Valid() bool {
	switch d {
	case DialectPostgres, DialectMySQL, DialectSQLite, DialectSQLServer, DialectOracle:
		return true
	}
	return false
}

var sqlIdentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSQLIdent reports whether s is a lower-case unquoted SQL identifier.
func ValidSQLIdent(s string) bool {
	return sqlIdentPattern.MatchString(s)
}

// ResultSet is a tabular query result. Values are kept in their text form so
// expected and actual results compare independently of driver types.
type ResultSet struct {
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

// Problem is an SQL exercise in an admin's problem bank.
type Problem struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	// SchemaName is the Postgres schema holding the problem's tables.
	SchemaName     string     `json:"schema_name"`
	ExpectedResult ResultSet  `json:"expected_result"`
	Ordered        bool       `json:"ordered"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
}

// ProblemRequest is the payload for creating or updating a problem.
type ProblemRequest struct {
	Name           string    `json:"name" binding:"required,min=1,max=255"`
	Description    string    `json:"description" binding:"max=20000"`
	SchemaName     string    `json:"schema_name" binding:"required,max=63,sqlident"`
	ExpectedResult ResultSet `json:"expected_result"`
	Ordered        bool      `json:"ordered"`
}

// ProblemForCandidate is a problem without its expected result.
type ProblemForCandidate struct {
	AssessmentProblemID uuid.UUID `json:"assessment_problem_id"`
	ProblemID           uuid.UUID `json:"problem_id"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Position            int       `json:"position"`
}
