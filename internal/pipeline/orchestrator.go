// Package pipeline answers a natural-language question by generating,
// validating and executing one read-only statement, with at most one repair.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/llm"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/query"
	"github.com/kyleking/energy-expert/internal/schema"
	"github.com/kyleking/energy-expert/internal/storage"
)

// Executor runs validated SQL
type Executor interface {
	Execute(ctx context.Context, stmt query.ValidatedSQL) (*query.Result, error)
}

// Narrator explains a result in plain language
type Narrator interface {
	Narrate(ctx context.Context, question string, sql query.ValidatedSQL, rows []query.Row) (string, error)
}

// Recorder receives one history entry per run
type Recorder interface {
	RecordQuery(ctx context.Context, entry storage.Entry) error
}

// Orchestrator drives the question-answering state machine
type Orchestrator struct {
	catalog   schema.Catalog
	completer llm.Completer
	validator *query.Validator
	executor  Executor
	narrator  Narrator
	recorder  Recorder
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder records every run in the history store
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// WithValidator replaces the default validator
func WithValidator(validator *query.Validator) Option {
	return func(o *Orchestrator) {
		o.validator = validator
	}
}

// New creates an Orchestrator. All collaborators are required.
func New(
	catalog schema.Catalog,
	completer llm.Completer,
	executor Executor,
	narrator Narrator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		catalog:   catalog,
		completer: completer,
		validator: query.NewValidator(query.DefaultRowLimit),
		executor:  executor,
		narrator:  narrator,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// run is the mutable state of one request; it never outlives the call
type run struct {
	id        uuid.UUID
	question  string
	state     State
	budget    int
	repaired  bool
	desc      *schema.Descriptor
	candidate string
	sql       query.ValidatedSQL
	result    *query.Result
	err       error
}

func newRun(question string) *run {
	return &run{
		id:       uuid.New(),
		question: question,
		state:    StateGenerating,
		budget:   MaxRepairs,
	}
}

// Run answers question. Narration failures are returned as-is and never
// trigger a repair.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New(errors.ErrTypeValidation, "question is required")
	}

	start := time.Now()
	r := newRun(question)

	if err := o.drive(ctx, r, false); err != nil {
		o.record(ctx, r, start, err)
		return nil, err
	}

	analysis, err := o.narrator.Narrate(ctx, question, r.sql, r.result.Rows)
	if err != nil {
		o.record(ctx, r, start, err)
		return nil, err
	}

	outcome := &Outcome{
		runID:     r.id,
		question:  question,
		sql:       r.sql,
		columns:   r.result.Columns,
		rows:      r.result.Rows,
		analysis:  analysis,
		repaired:  r.repaired,
		truncated: r.result.Truncated,
		duration:  time.Since(start),
	}

	o.record(ctx, r, start, nil)

	return outcome, nil
}

// GenerateSQL runs generation and validation, including the repair round,
// without executing anything.
func (o *Orchestrator) GenerateSQL(ctx context.Context, question string) (query.ValidatedSQL, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New(errors.ErrTypeValidation, "question is required")
	}

	r := newRun(question)
	if err := o.drive(ctx, r, true); err != nil {
		return "", err
	}

	return r.sql, nil
}

// drive steps the machine until it reaches a terminal state
func (o *Orchestrator) drive(ctx context.Context, r *run, validateOnly bool) error {
	for !r.state.Terminal() {
		switch r.state {
		case StateGenerating, StateRepairing:
			o.generate(ctx, r)
		case StateValidating:
			sql, err := o.validator.Validate(r.candidate, r.desc)
			if err != nil {
				o.repairOrFail(ctx, r, err)
				continue
			}

			r.sql = sql

			if validateOnly {
				o.transition(r, StateSucceeded)
			} else {
				o.transition(r, StateExecuting)
			}
		case StateExecuting:
			result, err := o.executor.Execute(ctx, r.sql)
			if err != nil {
				o.repairOrFail(ctx, r, err)
				continue
			}

			r.result = result
			o.transition(r, StateSucceeded)
		}
	}

	if r.state == StateFailed {
		return r.err
	}

	return nil
}

// generate fetches a fresh schema, prompts the model and extracts a candidate
func (o *Orchestrator) generate(ctx context.Context, r *run) {
	desc, err := o.catalog.FetchSchema(ctx)
	if err != nil {
		if errors.GetType(err) == errors.ErrTypeInternal {
			err = errors.Wrap(err, errors.ErrTypeCatalog, "schema introspection failed")
		}

		r.err = err
		o.transition(r, StateFailed)

		return
	}

	r.desc = desc

	prompt := query.BuildGenerationPrompt(r.question, desc, r.state == StateRepairing)

	text, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		if errors.GetType(err) == errors.ErrTypeInternal {
			err = errors.Wrap(err, errors.ErrTypeCompletion, "SQL generation failed")
		}

		o.repairOrFail(ctx, r, err)

		return
	}

	r.candidate = query.ExtractSQL(text)

	logging.WithFields(map[string]any{
		"run_id":    r.id.String(),
		"candidate": r.candidate,
	}).Debug("Extracted candidate SQL")

	o.transition(r, StateValidating)
}

// repairOrFail spends the repair budget on a repairable error, or fails with
// err unchanged.
func (o *Orchestrator) repairOrFail(ctx context.Context, r *run, err error) {
	if repairable(err) && r.budget > 0 && ctx.Err() == nil {
		r.budget--
		r.repaired = true

		logging.WithFields(map[string]any{
			"run_id": r.id.String(),
			"reason": err.Error(),
		}).Info("Repairing generated SQL")

		o.transition(r, StateRepairing)

		return
	}

	r.err = err
	o.transition(r, StateFailed)
}

func repairable(err error) bool {
	switch errors.GetType(err) {
	case errors.ErrTypeCompletion, errors.ErrTypeUnsafeSQL,
		errors.ErrTypeSchemaViolation, errors.ErrTypeExecution:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) transition(r *run, next State) {
	logging.WithFields(map[string]any{
		"run_id": r.id.String(),
		"from":   r.state.String(),
		"to":     next.String(),
		"budget": r.budget,
	}).Debug("Pipeline transition")

	r.state = next
}

// record hands the run to the recorder; failures only produce a warning
func (o *Orchestrator) record(ctx context.Context, r *run, start time.Time, runErr error) {
	if o.recorder == nil {
		return
	}

	entry := storage.Entry{
		ID:         r.id,
		Question:   r.question,
		SQL:        string(r.sql),
		Repaired:   r.repaired,
		Status:     storage.StatusSucceeded,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if r.result != nil {
		entry.RowCount = len(r.result.Rows)
	}

	if runErr != nil {
		entry.Status = storage.StatusFailed
		entry.ErrorType = string(errors.GetType(runErr))
		entry.ErrorMessage = runErr.Error()
	}

	if err := o.recorder.RecordQuery(context.WithoutCancel(ctx), entry); err != nil {
		logging.GetLogger().WithField("run_id", r.id.String()).WithError(err).Warn("Failed to record query history")
	}
}
