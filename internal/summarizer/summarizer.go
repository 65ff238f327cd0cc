package summarizer

import (
	"context"
	"strings"
	"time"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/llm"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/query"
)

// Summarizer turns query results into an operations-facing narrative
type Summarizer struct {
	completer   llm.Completer
	previewRows int
}

// New creates a Summarizer that embeds at most previewRows rows in its prompt
func New(completer llm.Completer, previewRows int) *Summarizer {
	if previewRows <= 0 {
		previewRows = query.DefaultPreviewRows
	}

	return &Summarizer{
		completer:   completer,
		previewRows: previewRows,
	}
}

// Narrate explains rows in plain language. Failures are returned as-is and
// never retried.
func (s *Summarizer) Narrate(
	ctx context.Context,
	question string,
	sql query.ValidatedSQL,
	rows []query.Row,
) (string, error) {
	prompt := query.BuildAnalysisPrompt(question, sql, rows, s.previewRows)

	start := time.Now()
	text, err := s.completer.Complete(ctx, prompt)

	logging.WithFields(map[string]any{
		"provider": s.completer.Name(),
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Debug("Narration completed")

	if err != nil {
		if errors.GetType(err) == errors.ErrTypeInternal {
			return "", errors.Wrap(err, errors.ErrTypeCompletion, "narration failed")
		}

		return "", err
	}

	narrative := strings.TrimSpace(text)
	if narrative == "" {
		return "", errors.New(errors.ErrTypeCompletion, "narration returned empty text")
	}

	return narrative, nil
}
