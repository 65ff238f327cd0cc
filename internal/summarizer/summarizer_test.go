package summarizer

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/query"
	"github.com/kyleking/energy-expert/internal/testutil"
)

func TestNarrate(t *testing.T) {
	completer := testutil.NewMockCompleter(testutil.WithReplies("\n  " + testutil.TestAnalysis + "  \n"))
	s := New(completer, 0)

	rows := []query.Row{{"total_dg1kwh": 20.0}}
	sql := query.ValidatedSQL(testutil.TestSQL + "\nLIMIT 1000")

	narrative, err := s.Narrate(context.Background(), testutil.TestQuestion, sql, rows)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestAnalysis, narrative)

	prompts := completer.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], testutil.TestQuestion)
	assert.Contains(t, prompts[0], `{"total_dg1kwh":20}`)
}

func TestNarrateLogsProvider(t *testing.T) {
	var buf bytes.Buffer

	prev := logging.GetLogger()
	logging.SetLogger(logging.NewWithWriter(&buf, logging.DebugLevel, "text", false))
	t.Cleanup(func() { logging.SetLogger(prev) })

	completer := testutil.NewMockCompleter(
		testutil.WithName("ollama/phi3"),
		testutil.WithReplies(testutil.TestAnalysis),
	)

	_, err := New(completer, 0).Narrate(context.Background(), testutil.TestQuestion, "SELECT 1", nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Narration completed")
	assert.Contains(t, buf.String(), "provider=ollama/phi3")
}

func TestNarrateTruncatesPreview(t *testing.T) {
	completer := testutil.NewMockCompleter(testutil.WithReplies("ok"))
	s := New(completer, 3)

	rows := make([]query.Row, 10)
	for i := range rows {
		rows[i] = query.Row{"n": fmt.Sprintf("row-%d", i)}
	}

	_, err := s.Narrate(context.Background(), "q", "SELECT 1", rows)
	require.NoError(t, err)

	prompt := completer.Prompts()[0]
	assert.Contains(t, prompt, "row-2")
	assert.NotContains(t, prompt, "row-3")
	assert.Contains(t, prompt, "first 3 rows of 10")
}

func TestNarrateErrors(t *testing.T) {
	tests := []struct {
		name     string
		opts     []testutil.CompleterOption
		errType  errors.ErrorType
		contains string
	}{
		{
			name:     "empty narrative",
			opts:     []testutil.CompleterOption{testutil.WithReplies("   ")},
			errType:  errors.ErrTypeCompletion,
			contains: "empty",
		},
		{
			name:     "structured error passes through",
			opts:     []testutil.CompleterOption{testutil.WithReplyError(errors.New(errors.ErrTypeCompletion, "ollama down"))},
			errType:  errors.ErrTypeCompletion,
			contains: "ollama down",
		},
		{
			name:     "plain error becomes a completion error",
			opts:     []testutil.CompleterOption{testutil.WithReplyError(fmt.Errorf("boom"))},
			errType:  errors.ErrTypeCompletion,
			contains: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := testutil.NewMockCompleter(tt.opts...)

			_, err := New(completer, 20).Narrate(context.Background(), "q", "SELECT 1", nil)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.GetType(err))
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, 1, completer.CallCount(), "narration is never retried")
		})
	}
}
