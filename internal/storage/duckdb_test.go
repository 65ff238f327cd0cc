package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/errors"
)

func TestRecordAndGetEntry(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	entry := NewTestEntry("What is the total dg1kwh for site 101?", 0)
	entry.Repaired = true
	entry.RowCount = 3

	require.NoError(t, repo.RecordQuery(ctx, entry))

	got, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.Question, got.Question)
	assert.Equal(t, entry.SQL, got.SQL)
	assert.Equal(t, 3, got.RowCount)
	assert.True(t, got.Repaired)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.EqualValues(t, 42, got.DurationMs)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.Rating)
	assert.Nil(t, got.FeedbackAt)
}

func TestRecordQueryTruncatesLongQuestion(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	// the two-byte rune straddles the length limit
	question := strings.Repeat("a", maxQuestionLength-1) + "é kWh per site"
	entry := NewTestEntry(question, 0)

	require.NoError(t, repo.RecordQuery(ctx, entry))

	got, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(got.Question))
	assert.Equal(t, strings.Repeat("a", maxQuestionLength-1), got.Question)
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "short input unchanged", input: "site 101", max: 16, expected: "site 101"},
		{name: "ascii cut", input: "dg1kwh", max: 3, expected: "dg1"},
		{name: "cut inside two-byte rune", input: "café", max: 4, expected: "caf"},
		{name: "cut after two-byte rune", input: "cafés", max: 5, expected: "café"},
		{name: "cut inside four-byte rune", input: "ok🔋", max: 4, expected: "ok"},
		{name: "zero", input: "abc", max: 0, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateUTF8(tt.input, tt.max)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestRecordQueryFillsDefaults(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.RecordQuery(ctx, Entry{
		Question:     "Which sites raised alarms?",
		Status:       StatusFailed,
		ErrorType:    string(errors.ErrTypeSchemaViolation),
		ErrorMessage: "invalid table(s) referenced: [accounts]",
	}))

	entries, err := repo.ListEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.NotEqual(t, uuid.Nil, entries[0].ID)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "schema_violation", entries[0].ErrorType)
	assert.Empty(t, entries[0].SQL)
}

func TestRecordQueryValidation(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
	}{
		{name: "empty question", entry: Entry{Question: "  ", Status: StatusSucceeded}},
		{name: "unknown status", entry: Entry{Question: "q", Status: "pending"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RecordQuery(ctx, tt.entry)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		})
	}
}

func TestListEntriesNewestFirst(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	questions := []string{"first", "second", "third"}
	for i, q := range questions {
		require.NoError(t, repo.RecordQuery(ctx, NewTestEntry(q, time.Duration(i)*time.Minute)))
	}

	entries, err := repo.ListEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Question)
	assert.Equal(t, "first", entries[2].Question)

	limited, err := repo.ListEntries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListEntriesEmpty(t *testing.T) {
	repo := NewTestDB(t)

	entries, err := repo.ListEntries(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGetEntryNotFound(t *testing.T) {
	repo := NewTestDB(t)

	_, err := repo.GetEntry(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestSaveFeedback(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	entry := NewTestEntry("Which region uses the most diesel?", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))

	require.NoError(t, repo.SaveFeedback(ctx, entry.ID, 4, "  useful  "))

	got, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4, *got.Rating)
	assert.Equal(t, "useful", got.Comment)
	assert.NotNil(t, got.FeedbackAt)

	// Feedback is replaced, not duplicated.
	require.NoError(t, repo.SaveFeedback(ctx, entry.ID, 2, ""))

	got, err = repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *got.Rating)
	assert.Empty(t, got.Comment)

	entries, err := repo.ListEntries(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveFeedbackErrors(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	entry := NewTestEntry("q", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))

	tests := []struct {
		name    string
		id      uuid.UUID
		rating  int
		errType errors.ErrorType
	}{
		{name: "rating too low", id: entry.ID, rating: 0, errType: errors.ErrTypeValidation},
		{name: "rating too high", id: entry.ID, rating: 6, errType: errors.ErrTypeValidation},
		{name: "unknown entry", id: uuid.New(), rating: 3, errType: errors.ErrTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.SaveFeedback(ctx, tt.id, tt.rating, "")
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.GetType(err))
		})
	}
}

func TestGetStats(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	ok := NewTestEntry("ok", 0)
	repaired := NewTestEntry("repaired", time.Minute)
	repaired.Repaired = true

	failed := NewTestEntry("failed", 2*time.Minute)
	failed.Status = StatusFailed
	failed.ErrorType = string(errors.ErrTypeExecution)

	unsafe := NewTestEntry("unsafe", 3*time.Minute)
	unsafe.Status = StatusFailed
	unsafe.ErrorType = string(errors.ErrTypeUnsafeSQL)

	for _, e := range []Entry{ok, repaired, failed, unsafe} {
		require.NoError(t, repo.RecordQuery(ctx, e))
	}

	require.NoError(t, repo.SaveFeedback(ctx, ok.ID, 5, ""))
	require.NoError(t, repo.SaveFeedback(ctx, repaired.ID, 2, ""))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalQueries)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Repaired)
	assert.InDelta(t, 3.5, stats.AverageRating, 0.001)
	assert.Equal(t, map[string]int{"execution": 1, "unsafe_sql": 1}, stats.ErrorBreakdown)
	assert.True(t, unsafe.CreatedAt.Equal(stats.LastQueryTime))
}

func TestGetStatsEmpty(t *testing.T) {
	repo := NewTestDB(t)

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQueries)
	assert.Zero(t, stats.AverageRating)
	assert.Empty(t, stats.ErrorBreakdown)
	assert.True(t, stats.LastQueryTime.IsZero())
}

func TestClear(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	entry := NewTestEntry("q", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))
	require.NoError(t, repo.SaveFeedback(ctx, entry.ID, 3, ""))

	require.NoError(t, repo.Clear(ctx))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalQueries)
	assert.Zero(t, stats.AverageRating)
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.duckdb")
	ctx := context.Background()

	repo, err := NewDuckDBRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(ctx))

	entry := NewTestEntry("persist me", 0)
	require.NoError(t, repo.RecordQuery(ctx, entry))
	require.NoError(t, repo.Close())

	reopened, err := NewDuckDBRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Initialize(ctx))

	got, err := reopened.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist me", got.Question)

	stats, err := reopened.GetStats(ctx)
	require.NoError(t, err)
	assert.Greater(t, stats.DatabaseSizeMB, 0.0)
}

func TestNewDuckDBRepositoryFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.duckdb")

	repo, err := NewDuckDBRepositoryFromConfig(config.HistoryConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	defer repo.Close()

	assert.Equal(t, path, repo.Path())

	_, err = NewDuckDBRepositoryFromConfig(config.HistoryConfig{Enabled: false, Path: path})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestRepositoryImplementsInterface(t *testing.T) {
	var _ Repository = (*DuckDBRepository)(nil)
}
