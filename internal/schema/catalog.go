package schema

import (
	"context"
	"database/sql"

	"github.com/kyleking/energy-expert/internal/errors"
)

// Catalog provides the live schema. Implementations must not cache: the
// schema may change between attempts.
type Catalog interface {
	FetchSchema(ctx context.Context) (*Descriptor, error)
}

const columnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

// PostgresCatalog reads tables and columns from information_schema
type PostgresCatalog struct {
	db         *sql.DB
	schemaName string
}

// NewPostgresCatalog creates a catalog over one database schema (e.g. "public")
func NewPostgresCatalog(db *sql.DB, schemaName string) *PostgresCatalog {
	return &PostgresCatalog{db: db, schemaName: schemaName}
}

// FetchSchema returns the tables of the schema with columns in ordinal order
func (c *PostgresCatalog) FetchSchema(ctx context.Context) (*Descriptor, error) {
	rows, err := c.db.QueryContext(ctx, columnsQuery, c.schemaName)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeCatalog,
			"failed to read columns of schema %s", c.schemaName)
	}
	defer rows.Close()

	var (
		tables []Table
		index  = make(map[string]int)
	)

	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeCatalog, "failed to scan column row")
		}

		i, ok := index[tableName]
		if !ok {
			i = len(tables)
			index[tableName] = i
			tables = append(tables, Table{Name: tableName})
		}

		tables[i].Columns = append(tables[i].Columns, Column{Name: columnName, Type: dataType})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeCatalog, "failed to iterate column rows")
	}

	return NewDescriptor(tables)
}
