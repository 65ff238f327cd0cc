package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/kyleking/energy-expert/internal/errors"
)

// Row maps column name to a scalar value
type Row map[string]any

// Result is a materialized query result
type Result struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	Truncated bool     `json:"truncated"`
}

// Executor runs validated SQL on a dedicated connection
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

// NewExecutor creates an executor. maxRows caps materialized rows and timeout
// bounds each statement; zero values fall back to 1000 rows and no timeout.
func NewExecutor(db *sql.DB, maxRows int, timeout time.Duration) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultRowLimit
	}

	return &Executor{db: db, maxRows: maxRows, timeout: timeout}
}

// Execute runs the statement and materializes up to maxRows rows. The
// connection is released on every path. Errors are never retried here.
func (e *Executor) Execute(ctx context.Context, stmt ValidatedSQL) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to acquire database connection")
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, string(stmt))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to read result columns")
	}

	result := &Result{Columns: columns, Rows: []Row{}}

	for rows.Next() {
		if len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}

		values, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed to scan row")
		}

		result.Rows = append(result.Rows, toRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeExecution, "failed while reading rows")
	}

	return result, nil
}

func scanRow(rows *sql.Rows, numCols int) ([]any, error) {
	values := make([]any, numCols)
	ptrs := make([]any, numCols)

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	return values, nil
}

// toRow keys values by column and normalizes driver types for JSON
func toRow(columns []string, values []any) Row {
	row := make(Row, len(columns))

	for i, col := range columns {
		switch val := values[i].(type) {
		case []byte:
			row[col] = string(val)
		case time.Time:
			row[col] = val.Format(time.RFC3339Nano)
		default:
			row[col] = val
		}
	}

	return row
}
