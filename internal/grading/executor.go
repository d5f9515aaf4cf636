package grading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/queryproctor/backend/internal/model"
)

// ErrTooManyRows is returned when a query produces more rows than the
// executor keeps.
var ErrTooManyRows = errors.New("query returned too many rows")

const defaultMaxRows = 10000

// Runner executes a query inside a problem schema.
type Runner interface {
	Run(ctx context.Context, schema, query string) (model.ResultSet, error)
}

// Executor runs candidate queries against Postgres in a read-only
// transaction with a statement timeout. Values are read in text format.
type Executor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	maxRows int
}

var _ Runner = (*Executor)(nil)

// NewExecutor creates an Executor.
func NewExecutor(pool *pgxpool.Pool, timeout time.Duration) *Executor {
	return &Executor{pool: pool, timeout: timeout, maxRows: defaultMaxRows}
}

// Run implements Runner. The transaction is always rolled back.
func (e *Executor) Run(ctx context.Context, schema, query string) (model.ResultSet, error) {
	var rs model.ResultSet

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return rs, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(context.Background())

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", e.timeout.Milliseconds())); err != nil {
		return rs, fmt.Errorf("set statement timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", schema); err != nil {
		return rs, fmt.Errorf("set search path: %w", err)
	}

	// The extended protocol accepts a single statement, so the query cannot
	// end the transaction and continue outside it.
	rows, err := tx.Query(ctx, query, pgx.QueryExecModeExec, pgx.QueryResultFormats{pgx.TextFormatCode})
	if err != nil {
		return rs, err
	}
	defer rows.Close()

	for _, fd := range rows.FieldDescriptions() {
		rs.Columns = append(rs.Columns, fd.Name)
	}

	rs.Rows = [][]*string{}
	for rows.Next() {
		if len(rs.Rows) >= e.maxRows {
			return rs, ErrTooManyRows
		}
		raw := rows.RawValues()
		row := make([]*string, len(raw))
		for i, v := range raw {
			if v != nil {
				s := string(v)
				row[i] = &s
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, rows.Err()
}
