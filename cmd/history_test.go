package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/formatter"
	"github.com/kyleking/energy-expert/internal/storage"
)

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewTestDB(t)

	require.NoError(t, repo.RecordQuery(ctx, storage.NewTestEntry("Which sites had High Temp alarms?", 0)))
	require.NoError(t, repo.RecordQuery(ctx, storage.NewTestEntry("List sites with only one AC unit.", time.Minute)))

	var buf bytes.Buffer
	require.NoError(t, runHistory(ctx, &buf, repo, 10, formatter.FormatText))

	out := buf.String()
	assert.Contains(t, out, "Which sites had High Temp alarms?")
	assert.Less(t,
		bytes.Index(buf.Bytes(), []byte("List sites with only one AC unit.")),
		bytes.Index(buf.Bytes(), []byte("Which sites had High Temp alarms?")),
		"newest entry first")
}

func TestRunHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runHistory(context.Background(), &buf, storage.NewTestDB(t), 5, formatter.FormatText))
	assert.Contains(t, buf.String(), "No questions recorded yet.")
}

func TestRunHistoryInvalidLimit(t *testing.T) {
	err := runHistory(context.Background(), &bytes.Buffer{}, storage.NewTestDB(t), 0, formatter.FormatText)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestRunHistoryStats(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewTestDB(t)

	failed := storage.NewTestEntry("Drop everything", 0)
	failed.Status = storage.StatusFailed
	failed.ErrorType = "unsafe_sql"
	failed.ErrorMessage = "unsafe SQL rejected: not a SELECT"

	require.NoError(t, repo.RecordQuery(ctx, storage.NewTestEntry("What is the total dg1kwh for site 101?", 0)))
	require.NoError(t, repo.RecordQuery(ctx, failed))

	var buf bytes.Buffer
	require.NoError(t, runHistoryStats(ctx, &buf, repo, formatter.FormatText))

	assert.Contains(t, buf.String(), "Total questions: 2")
	assert.Contains(t, buf.String(), "unsafe_sql: 1")
}

func TestRunFeedback(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewTestDB(t)

	entry := storage.NewTestEntry("Which sites had High Temp alarms yesterday?", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))

	var buf bytes.Buffer
	require.NoError(t, runFeedback(ctx, &buf, repo, []string{entry.ID.String(), "4", "close,", "but", "missed", "103"}))
	assert.Contains(t, buf.String(), "Feedback saved for "+entry.ID.String()+" (4/5)")

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rating)
	assert.Equal(t, 4, *stored.Rating)
	assert.Equal(t, "close, but missed 103", stored.Comment)
}

func TestRunFeedbackErrors(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewTestDB(t)

	entry := storage.NewTestEntry("List sites with only one AC unit.", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))

	tests := []struct {
		name    string
		args    []string
		errType errors.ErrorType
	}{
		{name: "missing rating", args: []string{entry.ID.String()}, errType: errors.ErrTypeValidation},
		{name: "bad id", args: []string{"not-a-uuid", "3"}, errType: errors.ErrTypeValidation},
		{name: "bad rating", args: []string{entry.ID.String(), "five"}, errType: errors.ErrTypeValidation},
		{name: "rating out of range", args: []string{entry.ID.String(), "9"}, errType: errors.ErrTypeValidation},
		{name: "unknown entry", args: []string{uuid.NewString(), "3"}, errType: errors.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			err := runFeedback(ctx, &buf, repo, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.GetType(err))
			assert.Empty(t, buf.String())
		})
	}
}
