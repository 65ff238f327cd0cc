package query

import (
	"regexp"
	"strings"
)

var (
	// ```sql ... ``` with the tag matched case-insensitively as a whole word
	sqlFencePattern = regexp.MustCompile("(?is)```sql\\b\\s*(.*?)```")

	// any fenced block
	genericFencePattern = regexp.MustCompile("(?s)```(.*?)```")

	// a single word alone on the opening line of a fence
	languageTagPattern = regexp.MustCompile(`^[\w+-]+$`)
)

// sqlLeadWords may open a statement, so a fence starting with one of them
// has no language tag
var sqlLeadWords = map[string]struct{}{
	"select": {},
	"with":   {},
}

// ExtractSQL pulls candidate SQL out of a model completion. It never fails:
// when nothing looks like SQL the whole input is returned trimmed and left
// for the validator to reject.
func ExtractSQL(text string) string {
	if m := sqlFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := genericFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(stripLanguageTag(m[1]))
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "select") {
			return trimmed
		}
	}

	return strings.TrimSpace(text)
}

// stripLanguageTag drops an opening line such as "postgresql" that names the
// fence language rather than starting the statement
func stripLanguageTag(body string) string {
	first, rest, found := strings.Cut(body, "\n")
	if !found {
		return body
	}

	tag := strings.TrimSpace(first)
	if !languageTagPattern.MatchString(tag) {
		return body
	}

	if _, ok := sqlLeadWords[strings.ToLower(tag)]; ok {
		return body
	}

	return rest
}
