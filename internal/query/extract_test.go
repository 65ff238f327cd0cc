package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kyleking/energy-expert/internal/testutil"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "sql fenced block with commentary",
			input:    "Sure!\n```sql\nSELECT * FROM sites\n```\nThis lists every site.",
			expected: "SELECT * FROM sites",
		},
		{
			name:     "upper-case tag",
			input:    "```SQL\n  SELECT 1  \n```",
			expected: "SELECT 1",
		},
		{
			name:     "sql fence wins over an earlier generic fence",
			input:    "```\nnot this\n```\n```sql\nSELECT 2\n```",
			expected: "SELECT 2",
		},
		{
			name:     "first sql fence wins",
			input:    "```sql\nSELECT 1\n```\n```sql\nSELECT 2\n```",
			expected: "SELECT 1",
		},
		{
			name:     "multi-line sql block",
			input:    "```sql\nSELECT site_id,\n       SUM(dg1kwh)\nFROM site_metrics\nGROUP BY site_id\n```",
			expected: "SELECT site_id,\n       SUM(dg1kwh)\nFROM site_metrics\nGROUP BY site_id",
		},
		{
			name:     "generic fence",
			input:    "Query:\n```\nSELECT * FROM alarms\n```",
			expected: "SELECT * FROM alarms",
		},
		{
			name:     "generic fence with another language tag",
			input:    "```postgresql\nSELECT * FROM alarms\n```",
			expected: "SELECT * FROM alarms",
		},
		{
			name:     "sqlite tag is not the sql tag",
			input:    "```sqlite\nSELECT 3\n```",
			expected: "SELECT 3",
		},
		{
			name:     "bare select on the opening line of a generic fence",
			input:    "```SELECT\n* FROM t\n```",
			expected: "SELECT\n* FROM t",
		},
		{
			name:     "bare with on the opening line of a generic fence",
			input:    "```with\nrecent AS (SELECT * FROM alarms)\nSELECT * FROM recent\n```",
			expected: "with\nrecent AS (SELECT * FROM alarms)\nSELECT * FROM recent",
		},
		{
			name:     "generic fence opening line with several words is kept",
			input:    "```SELECT site_id\nFROM sites\n```",
			expected: "SELECT site_id\nFROM sites",
		},
		{
			name:     "inline generic fence",
			input:    "Use ```SELECT 4``` for that.",
			expected: "SELECT 4",
		},
		{
			name:     "first select line",
			input:    "The answer is:\n   select region from sites   \nselect 2",
			expected: "select region from sites",
		},
		{
			name:     "whole input as fallback",
			input:    "  I cannot answer that question.  ",
			expected: "I cannot answer that question.",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "unterminated fence falls through to the select line",
			input:    "```sql\nSELECT 5",
			expected: "SELECT 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractSQL(tt.input))
		})
	}
}

func TestExtractSQLRoundTrip(t *testing.T) {
	statements := []string{
		testutil.TestSQL,
		"SELECT * FROM nonexistent_table",
		"SELECT a.site_id\nFROM alarms a\nWHERE a.alarm_name = 'High Temp'",
	}

	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			assert.Equal(t, stmt, ExtractSQL(testutil.FencedSQL(stmt)))
			assert.Equal(t, stmt, ExtractSQL("```sql\n\n  "+stmt+"  \n\n```"))
		})
	}
}
