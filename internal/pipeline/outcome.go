package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kyleking/energy-expert/internal/query"
)

// Outcome is the immutable result of a successful run
type Outcome struct {
	runID     uuid.UUID
	question  string
	sql       query.ValidatedSQL
	columns   []string
	rows      []query.Row
	analysis  string
	repaired  bool
	truncated bool
	duration  time.Duration
}

// RunID identifies the run in logs and history
func (o *Outcome) RunID() uuid.UUID { return o.runID }

// Question returns the question as asked
func (o *Outcome) Question() string { return o.question }

// SQL returns the statement that produced the rows
func (o *Outcome) SQL() query.ValidatedSQL { return o.sql }

// Columns returns the result column names in driver order
func (o *Outcome) Columns() []string { return append([]string(nil), o.columns...) }

// Rows returns a copy of the result rows
func (o *Outcome) Rows() []query.Row {
	rows := make([]query.Row, len(o.rows))
	for i, row := range o.rows {
		cp := make(query.Row, len(row))
		for k, v := range row {
			cp[k] = v
		}

		rows[i] = cp
	}

	return rows
}

// RowCount returns the number of materialized rows
func (o *Outcome) RowCount() int { return len(o.rows) }

// Analysis returns the narrative
func (o *Outcome) Analysis() string { return o.analysis }

// Repaired reports whether the answer came from the repair round
func (o *Outcome) Repaired() bool { return o.repaired }

// Truncated reports whether the row cap cut the result
func (o *Outcome) Truncated() bool { return o.truncated }

// Duration is the wall time of the run including narration
func (o *Outcome) Duration() time.Duration { return o.duration }

type outcomeJSON struct {
	Question string      `json:"question"`
	SQL      string      `json:"sql"`
	Columns  []string    `json:"columns"`
	Rows     []query.Row `json:"rows"`
	Analysis string      `json:"analysis"`
	Repaired bool        `json:"repaired"`
}

// MarshalJSON renders the caller-facing response shape
func (o *Outcome) MarshalJSON() ([]byte, error) {
	rows := o.rows
	if rows == nil {
		rows = []query.Row{}
	}

	columns := o.columns
	if columns == nil {
		columns = []string{}
	}

	return json.Marshal(outcomeJSON{
		Question: o.question,
		SQL:      string(o.sql),
		Columns:  columns,
		Rows:     rows,
		Analysis: o.analysis,
		Repaired: o.repaired,
	})
}
