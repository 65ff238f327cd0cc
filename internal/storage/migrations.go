package storage

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/kyleking/energy-expert/internal/errors"
	"github.com/kyleking/energy-expert/internal/logging"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationStatus represents the status of a migration
type MigrationStatus struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	Applied     bool      `json:"applied"`
	AppliedAt   time.Time `json:"applied_at,omitempty"`
}

// MigrationManager handles database schema migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// GetMigrations returns all available migrations in order
func (m *MigrationManager) GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Query history table",
			Up: `
				CREATE TABLE IF NOT EXISTS query_history (
					id VARCHAR PRIMARY KEY,
					question TEXT NOT NULL,
					sql_text TEXT,
					row_count INTEGER DEFAULT 0,
					repaired BOOLEAN DEFAULT FALSE,
					status VARCHAR NOT NULL,
					error_type VARCHAR,
					error_message TEXT,
					duration_ms BIGINT DEFAULT 0,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at);
				CREATE INDEX IF NOT EXISTS idx_query_history_status ON query_history(status);
			`,
			Down: `
				DROP INDEX IF EXISTS idx_query_history_status;
				DROP INDEX IF EXISTS idx_query_history_created_at;
				DROP TABLE IF EXISTS query_history;
			`,
		},
		{
			Version:     2,
			Description: "Answer feedback",
			Up: `
				CREATE TABLE IF NOT EXISTS query_feedback (
					query_id VARCHAR PRIMARY KEY,
					rating INTEGER NOT NULL,
					comment TEXT,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);
			`,
			Down: `
				DROP TABLE IF EXISTS query_feedback;
			`,
		},
	}
}

// LatestVersion returns the highest known migration version
func (m *MigrationManager) LatestVersion() int {
	latest := 0
	for _, migration := range m.GetMigrations() {
		if migration.Version > latest {
			latest = migration.Version
		}
	}

	return latest
}

// InitializeMigrationTable creates the migration tracking table
func (m *MigrationManager) InitializeMigrationTable(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := m.db.ExecContext(ctx, createTableSQL); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to create migration table")
	}

	return nil
}

// GetAppliedMigrations returns applied migration versions with their timestamps
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to query applied migrations")
	}

	defer rows.Close()

	applied := make(map[int]time.Time)

	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan migration version")
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// CurrentVersion returns the highest applied version, or 0 on a fresh database
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return 0, err
	}

	var version sql.NullInt64
	if err := m.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, errors.Wrap(err, errors.ErrTypeDatabase, "failed to read schema version")
	}

	return int(version.Int64), nil
}

// ApplyMigration applies a single migration inside a transaction
func (m *MigrationManager) ApplyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to execute migration %d", migration.Version)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
		migration.Version, migration.Description); err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to record migration %d", migration.Version)
	}

	return tx.Commit()
}

// RollbackMigration rolls back a single migration
func (m *MigrationManager) RollbackMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to rollback migration %d", migration.Version)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
		return errors.Wrapf(err, errors.ErrTypeDatabase, "failed to remove migration record %d", migration.Version)
	}

	return tx.Commit()
}

// MigrateUp applies all pending migrations
func (m *MigrationManager) MigrateUp(ctx context.Context) error {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	migrations := m.GetMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, migration := range migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}

		logging.Infof("Applying history migration %d: %s", migration.Version, migration.Description)

		if err := m.ApplyMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown rolls back applied migrations above targetVersion, newest first
func (m *MigrationManager) MigrateDown(ctx context.Context, targetVersion int) error {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	byVersion := make(map[int]Migration)
	for _, migration := range m.GetMigrations() {
		byVersion[migration.Version] = migration
	}

	versions := make([]int, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for _, version := range versions {
		if version <= targetVersion {
			break
		}

		migration, ok := byVersion[version]
		if !ok {
			return errors.Newf(errors.ErrTypeDatabase, "migration %d not found", version)
		}

		logging.Infof("Rolling back history migration %d: %s", version, migration.Description)

		if err := m.RollbackMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

// GetMigrationStatus returns the status of every known migration, ordered by version
func (m *MigrationManager) GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.InitializeMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	migrations := m.GetMigrations()
	status := make([]MigrationStatus, 0, len(migrations))

	for _, migration := range migrations {
		appliedAt, ok := applied[migration.Version]
		status = append(status, MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
			Applied:     ok,
			AppliedAt:   appliedAt,
		})
	}

	sort.Slice(status, func(i, j int) bool { return status[i].Version < status[j].Version })

	return status, nil
}
