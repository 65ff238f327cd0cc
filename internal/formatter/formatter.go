package formatter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/pipeline"
	"github.com/kyleking/energy-expert/internal/query"
	"github.com/kyleking/energy-expert/internal/schema"
	"github.com/kyleking/energy-expert/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// maxCellWidth bounds a rendered table cell
const maxCellWidth = 48

// ParseFormat validates a user-supplied format name
func ParseFormat(value string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(value))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.Newf(errors.ErrTypeValidation, "invalid format: %s (must be text or json)", value)
	}
}

// Formatter renders pipeline results, schemas and history for the terminal
type Formatter struct {
	heading *color.Color
	muted   *color.Color
	warn    *color.Color
	now     func() time.Time
}

// NewFormatter creates a new formatter instance
func NewFormatter() *Formatter {
	return &Formatter{
		heading: color.New(color.FgCyan, color.Bold),
		muted:   color.New(color.Faint),
		warn:    color.New(color.FgYellow),
		now:     time.Now,
	}
}

// FormatOutcome renders a successful answer
func (f *Formatter) FormatOutcome(outcome *pipeline.Outcome, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return ToJSON(outcome)
	}

	var b strings.Builder

	b.WriteString(f.heading.Sprint("Question") + "\n")
	b.WriteString(outcome.Question() + "\n\n")

	b.WriteString(f.heading.Sprint("SQL"))
	if outcome.Repaired() {
		b.WriteString(" " + f.warn.Sprint("(repaired)"))
	}

	b.WriteString("\n" + string(outcome.SQL()) + "\n\n")

	b.WriteString(f.heading.Sprintf("Rows (%d)", outcome.RowCount()) + "\n")
	b.WriteString(f.FormatRows(outcome.Columns(), outcome.Rows()))

	if outcome.Truncated() {
		b.WriteString(f.warn.Sprint("Result truncated at the row cap") + "\n")
	}

	b.WriteString("\n" + f.heading.Sprint("Analysis") + "\n")
	b.WriteString(outcome.Analysis() + "\n")
	b.WriteString(f.muted.Sprintf("(%s)", outcome.Duration().Round(time.Millisecond)) + "\n")

	return b.String(), nil
}

// FormatSQL renders a generated statement
func (f *Formatter) FormatSQL(sql query.ValidatedSQL, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return ToJSON(map[string]string{"sql": string(sql)})
	}

	return string(sql) + "\n", nil
}

// FormatRows renders rows as an aligned table in column order
func (f *Formatter) FormatRows(columns []string, rows []query.Row) string {
	if len(rows) == 0 {
		return f.muted.Sprint("(no rows)") + "\n"
	}

	var b strings.Builder

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))

	dashes := make([]string, len(columns))
	for i, col := range columns {
		dashes[i] = strings.Repeat("-", len(col))
	}

	fmt.Fprintln(w, strings.Join(dashes, "\t"))

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatValue(row[col])
		}

		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	_ = w.Flush()

	return b.String()
}

// FormatSchema renders the live schema descriptor
func (f *Formatter) FormatSchema(desc *schema.Descriptor, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return ToJSON(desc)
	}

	if desc == nil || desc.TableCount() == 0 {
		return f.muted.Sprint("(no tables)") + "\n", nil
	}

	var b strings.Builder

	for _, table := range desc.Tables {
		b.WriteString(f.heading.Sprint(table.Name) + "\n")

		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  %s %s\n", col.Name, f.muted.Sprint(col.Type))
		}
	}

	return b.String(), nil
}

// FormatEntries renders history entries, newest first
func (f *Formatter) FormatEntries(entries []storage.Entry, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return ToJSON(entries)
	}

	if len(entries) == 0 {
		return f.muted.Sprint("No questions recorded yet.") + "\n", nil
	}

	var b strings.Builder

	for _, entry := range entries {
		status := entry.Status
		if entry.Status == storage.StatusFailed {
			status = f.warn.Sprintf("failed: %s", entry.ErrorType)
		}

		fmt.Fprintf(&b, "%s  %s  %s\n", f.heading.Sprint(entry.ID.String()), status,
			f.muted.Sprint(f.humanizeAge(entry.CreatedAt)))
		fmt.Fprintf(&b, "  %s\n", entry.Question)

		details := []string{fmt.Sprintf("%d rows", entry.RowCount), fmt.Sprintf("%dms", entry.DurationMs)}
		if entry.Repaired {
			details = append(details, "repaired")
		}

		if entry.Rating != nil {
			details = append(details, fmt.Sprintf("rated %d/%d", *entry.Rating, storage.MaxRating))
		}

		fmt.Fprintf(&b, "  %s\n", f.muted.Sprint(strings.Join(details, ", ")))
	}

	return b.String(), nil
}

// FormatStats renders history statistics
func (f *Formatter) FormatStats(stats *storage.Stats, format OutputFormat) (string, error) {
	if format == FormatJSON {
		return ToJSON(stats)
	}

	var b strings.Builder

	b.WriteString(f.heading.Sprint("Query history") + "\n")
	fmt.Fprintf(&b, "  Total questions: %d\n", stats.TotalQueries)
	fmt.Fprintf(&b, "  Succeeded: %d\n", stats.Succeeded)
	fmt.Fprintf(&b, "  Failed: %d\n", stats.Failed)
	fmt.Fprintf(&b, "  Repaired: %d\n", stats.Repaired)

	if stats.AverageRating > 0 {
		fmt.Fprintf(&b, "  Average rating: %.1f\n", stats.AverageRating)
	}

	fmt.Fprintf(&b, "  Last question: %s\n", f.humanizeAge(stats.LastQueryTime))

	if len(stats.ErrorBreakdown) > 0 {
		types := make([]string, 0, len(stats.ErrorBreakdown))
		for errType := range stats.ErrorBreakdown {
			types = append(types, errType)
		}

		sort.Strings(types)

		b.WriteString("  Failures by type:\n")

		for _, errType := range types {
			fmt.Fprintf(&b, "    %s: %d\n", errType, stats.ErrorBreakdown[errType])
		}
	}

	return b.String(), nil
}

// ToJSON renders v as indented JSON followed by a newline
func ToJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeInternal, "failed to encode JSON")
	}

	return string(data) + "\n", nil
}

// formatValue renders a scalar for a table cell
func formatValue(value any) string {
	var text string

	switch v := value.(type) {
	case nil:
		text = "NULL"
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		text = strconv.FormatBool(v)
	default:
		text = fmt.Sprint(v)
	}

	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\t", " ")

	if len(text) > maxCellWidth {
		text = text[:maxCellWidth-3] + "..."
	}

	return text
}

// humanizeAge converts a time to a human-readable age string
func (f *Formatter) humanizeAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	duration := f.now().Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute") + " ago"
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour") + " ago"
	}

	days := int(duration.Hours() / 24)
	if days < 30 {
		return plural(days, "day") + " ago"
	}

	if days < 365 {
		return plural(days/30, "month") + " ago"
	}

	return plural(days/365, "year") + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}

	return fmt.Sprintf("%d %ss", n, unit)
}
