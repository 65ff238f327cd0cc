// Package testutil provides common fakes, fixtures and constants for tests
package testutil

import "time"

const (
	// TestTimeout is the default timeout for test operations
	TestTimeout = 30 * time.Second

	// ShortTestTimeout is a shorter timeout for quick operations
	ShortTestTimeout = 5 * time.Second

	// TestConcurrency is the number of parallel workers in concurrency tests
	TestConcurrency = 8
)

// Common test strings
const (
	// TestQuestion is the question used by the happy-path scenarios
	TestQuestion = "What is the total dg1kwh for site 101?"

	// TestSQL answers TestQuestion against the fixture schema
	TestSQL = "SELECT SUM(dg1kwh) AS total_dg1kwh FROM site_metrics WHERE site_id = 101"

	// TestAnalysis is a canned narrative reply
	TestAnalysis = "Site 101 consumed 20 kWh on DG1 over the period."
)

// FencedSQL wraps sql in a ```sql block with some surrounding commentary
func FencedSQL(sql string) string {
	return "Here is the query you asked for:\n```sql\n" + sql + "\n```\nLet me know if you need more."
}
