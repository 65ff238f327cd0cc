package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/schema"
)

// DuckDBSchema is the information_schema name of DuckDB's default schema
const DuckDBSchema = "main"

// TableOption is a functional option for configuring a test table
type TableOption func(*schema.Table)

// WithColumn appends a column
func WithColumn(name, typ string) TableOption {
	return func(t *schema.Table) {
		t.Columns = append(t.Columns, schema.Column{Name: name, Type: typ})
	}
}

// NewTestTable creates a table with the given columns
func NewTestTable(name string, opts ...TableOption) schema.Table {
	table := schema.Table{Name: name}

	for _, opt := range opts {
		opt(&table)
	}

	return table
}

// NewTestSchema builds a descriptor and fails the test on duplicate names
func NewTestSchema(t *testing.T, tables ...schema.Table) *schema.Descriptor {
	t.Helper()

	desc, err := schema.NewDescriptor(tables)
	require.NoError(t, err)

	return desc
}

// NewEnergySchema returns the sites / site_metrics / alarms fixture schema
func NewEnergySchema(t *testing.T) *schema.Descriptor {
	t.Helper()

	return NewTestSchema(t,
		NewTestTable("alarms",
			WithColumn("site_id", "integer"),
			WithColumn("alarm_name", "character varying"),
			WithColumn("raised_at", "timestamp without time zone"),
		),
		NewTestTable("site_metrics",
			WithColumn("site_id", "integer"),
			WithColumn("dg1kwh", "double precision"),
			WithColumn("dropout_rate", "double precision"),
			WithColumn("insertion_date", "date"),
		),
		NewTestTable("sites",
			WithColumn("site_id", "integer"),
			WithColumn("region", "character varying"),
			WithColumn("ac_units", "integer"),
		),
	)
}

// EnergyFixtureDDL creates and seeds the energy fixture tables
var EnergyFixtureDDL = []string{
	`CREATE TABLE sites (site_id INTEGER, region VARCHAR, ac_units INTEGER)`,
	`CREATE TABLE site_metrics (site_id INTEGER, dg1kwh DOUBLE, dropout_rate DOUBLE, insertion_date DATE)`,
	`CREATE TABLE alarms (site_id INTEGER, alarm_name VARCHAR, raised_at TIMESTAMP)`,
	`INSERT INTO sites VALUES (101, 'north', 1), (102, 'south', 2), (103, 'east', 1)`,
	`INSERT INTO site_metrics VALUES
		(101, 12.5, 0.01, DATE '2024-05-01'),
		(101, 7.5, 0.02, DATE '2024-05-02'),
		(102, 30.0, 0.10, DATE '2024-05-01')`,
	`INSERT INTO alarms VALUES
		(101, 'High Temp', TIMESTAMP '2024-05-01 10:00:00'),
		(102, 'Door Open', TIMESTAMP '2024-05-01 11:30:00')`,
}

// OpenDuckDB opens an in-memory DuckDB database, runs the statements and
// closes it when the test ends.
func OpenDuckDB(t *testing.T, statements ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return db
}

// OpenEnergyDB opens an in-memory DuckDB database seeded with the fixture
func OpenEnergyDB(t *testing.T) *sql.DB {
	t.Helper()

	return OpenDuckDB(t, EnergyFixtureDDL...)
}
