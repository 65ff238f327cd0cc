package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/schema"
)

// DefaultRowLimit is appended as LIMIT when the statement has none
const DefaultRowLimit = 1000

// ValidatedSQL is SQL that passed every read-only gate. Only the validator
// produces it; the executor accepts nothing else.
type ValidatedSQL string

// String returns the SQL text
func (v ValidatedSQL) String() string {
	return string(v)
}

// ForbiddenKeywords are rejected when they appear as standalone words
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "MERGE", "REPLACE", "UPSERT",
	"DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
	"BEGIN", "COMMIT", "ROLLBACK", "SET",
}

var (
	forbiddenPattern = regexp.MustCompile(`\b(` + strings.Join(ForbiddenKeywords, "|") + `)\b`)
	tableRefPattern  = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z0-9_]+)`)
	limitPattern     = regexp.MustCompile(`(?i)\blimit\b`)
)

// Validator enforces the read-only contract on candidate SQL. The checks are
// lexical: keywords and table references are found by pattern, not parsed.
type Validator struct {
	RowLimit int
}

// NewValidator returns a Validator that injects LIMIT rowLimit
func NewValidator(rowLimit int) *Validator {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	return &Validator{RowLimit: rowLimit}
}

// EnsureReadOnly validates sql against desc with the default row limit
func EnsureReadOnly(sql string, desc *schema.Descriptor) (ValidatedSQL, error) {
	return NewValidator(DefaultRowLimit).Validate(sql, desc)
}

// Validate runs the gates in order; the first failing gate decides the error.
func (v *Validator) Validate(sql string, desc *schema.Descriptor) (ValidatedSQL, error) {
	text := strings.TrimSpace(sql)
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))

	if !strings.HasPrefix(strings.ToLower(text), "select") {
		return "", errors.NewUnsafeSQLError("not a SELECT")
	}

	if strings.Contains(text, ";") {
		return "", errors.NewUnsafeSQLError("multi-statement")
	}

	if keyword := forbiddenPattern.FindString(strings.ToUpper(text)); keyword != "" {
		return "", errors.NewUnsafeSQLError(keyword)
	}

	if err := checkTables(text, desc); err != nil {
		return "", err
	}

	if !limitPattern.MatchString(text) {
		text += "\nLIMIT " + strconv.Itoa(v.rowLimit())
	}

	return ValidatedSQL(text), nil
}

func (v *Validator) rowLimit() int {
	if v.RowLimit <= 0 {
		return DefaultRowLimit
	}

	return v.RowLimit
}

// ReferencedTables returns the lower-cased identifiers that follow FROM or JOIN
func ReferencedTables(sql string) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, m := range tableRefPattern.FindAllStringSubmatch(sql, -1) {
		refs[strings.ToLower(m[1])] = struct{}{}
	}

	return refs
}

func checkTables(sql string, desc *schema.Descriptor) error {
	refs := ReferencedTables(sql)
	if len(refs) == 0 {
		return nil
	}

	allowed := map[string]struct{}{}
	if desc != nil {
		allowed = desc.TableNames()
	}

	var invalid []string

	for name := range refs {
		if _, ok := allowed[name]; !ok {
			invalid = append(invalid, name)
		}
	}

	if len(invalid) == 0 {
		return nil
	}

	sort.Strings(invalid)

	allowedNames := make([]string, 0, len(allowed))
	for name := range allowed {
		allowedNames = append(allowedNames, name)
	}

	sort.Strings(allowedNames)

	return errors.NewSchemaViolationError(invalid, allowedNames)
}
