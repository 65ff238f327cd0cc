package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kyleking/energy-expert/internal/schema"
)

// DefaultPreviewRows is how many result rows the analysis prompt embeds
const DefaultPreviewRows = 20

// RepairInstruction is appended to the question on the repair attempt
const RepairInstruction = "IMPORTANT: You MUST use ONLY the exact table names provided. " +
	"NEVER invent new tables. Generate a corrected SQL query."

const generationTemplate = `You are an expert SQL assistant for a telecom energy analytics PostgreSQL database.

You MUST follow these rules strictly:

1. You may ONLY use the tables listed below.
2. You may ONLY use the columns listed below.
3. NEVER invent new table names or columns.
4. If the question requires data that is not available, pick the closest existing table.
5. Always generate valid PostgreSQL SQL.
6. Write exactly one SELECT statement. Never modify data.
7. Prefer LIMIT or aggregation when the result could be large.

VALID TABLES AND COLUMNS:
%s
User Question:
%s

Return ONLY the SQL inside a ` + "```sql" + ` code block.
`

const analysisTemplate = `You are an energy efficiency expert for telecom sites.

User Question:
%s

SQL used to answer it:
` + "```sql\n%s\n```" + `

Query Result (first %d rows of %d, one JSON object per line):
%s
Explain the result in clear language for an operations manager.
Include causes, insights, and recommendations.
Do NOT show SQL in your answer.
`

// BuildGenerationPrompt renders the SQL generation prompt. With repair set the
// question carries the corrective instruction.
func BuildGenerationPrompt(question string, desc *schema.Descriptor, repair bool) string {
	q := strings.TrimSpace(question)
	if repair {
		q += " " + RepairInstruction
	}

	var schemaText string
	if desc != nil {
		schemaText = desc.Render()
	}

	return fmt.Sprintf(generationTemplate, schemaText, q)
}

// BuildAnalysisPrompt renders the narration prompt over at most preview rows
func BuildAnalysisPrompt(question string, sql ValidatedSQL, rows []Row, preview int) string {
	if preview <= 0 {
		preview = DefaultPreviewRows
	}

	shown := rows
	if len(shown) > preview {
		shown = shown[:preview]
	}

	var sb strings.Builder

	for _, row := range shown {
		line, err := json.Marshal(row)
		if err != nil {
			line = []byte(fmt.Sprintf("%v", row))
		}

		sb.Write(line)
		sb.WriteByte('\n')
	}

	if len(shown) == 0 {
		sb.WriteString("(no rows)\n")
	}

	return fmt.Sprintf(analysisTemplate, question, sql, len(shown), len(rows), sb.String())
}
