package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kyleking/energy-expert/internal/errors"
)

// Column is a single column of a table
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is a named table with its columns in ordinal order
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Descriptor is the set of tables the generated SQL may reference
type Descriptor struct {
	Tables []Table `json:"tables"`
}

// NewDescriptor builds a Descriptor, rejecting duplicate table names
// (case-insensitive).
func NewDescriptor(tables []Table) (*Descriptor, error) {
	seen := make(map[string]bool, len(tables))

	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if seen[key] {
			return nil, errors.Newf(errors.ErrTypeCatalog, "duplicate table name in schema: %s", t.Name)
		}

		seen[key] = true
	}

	return &Descriptor{Tables: tables}, nil
}

// TableNames returns the lower-cased table names as a set
func (d *Descriptor) TableNames() map[string]struct{} {
	names := make(map[string]struct{}, len(d.Tables))
	for _, t := range d.Tables {
		names[strings.ToLower(t.Name)] = struct{}{}
	}

	return names
}

// SortedTableNames returns the lower-cased table names in sorted order
func (d *Descriptor) SortedTableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.TableNames() {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// HasTable reports whether name is a table of the schema, ignoring case
func (d *Descriptor) HasTable(name string) bool {
	_, ok := d.TableNames()[strings.ToLower(name)]
	return ok
}

// TableCount returns the number of tables
func (d *Descriptor) TableCount() int {
	return len(d.Tables)
}

// Render formats the schema for a prompt, one table per line:
//
//	- sites: site_id (integer), region (text)
func (d *Descriptor) Render() string {
	var sb strings.Builder

	for _, t := range d.Tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, fmt.Sprintf("%s (%s)", c.Name, c.Type))
		}

		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, strings.Join(cols, ", "))
	}

	return sb.String()
}
