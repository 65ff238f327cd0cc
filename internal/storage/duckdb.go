package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/kyleking/energy-expert/internal/errors"
)

// DefaultListLimit is used when ListEntries is called without a positive limit
const DefaultListLimit = 20

const maxQuestionLength = 4096

// DuckDBRepository implements the Repository interface using DuckDB
type DuckDBRepository struct {
	db   *sql.DB
	path string
}

// NewDuckDBRepository opens (or creates) the history database at dbPath.
// An empty path opens an in-memory database.
func NewDuckDBRepository(dbPath string) (*DuckDBRepository, error) {
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to create history directory")
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open history database")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to ping history database").
			WithSuggestion("Another process may hold the history file open")
	}

	return &DuckDBRepository{db: db, path: dbPath}, nil
}

// Path returns the database file path
func (r *DuckDBRepository) Path() string {
	return r.path
}

// Initialize creates the database schema using migrations
func (r *DuckDBRepository) Initialize(ctx context.Context) error {
	return NewMigrationManager(r.db).MigrateUp(ctx)
}

// RecordQuery stores one pipeline run. A zero ID or CreatedAt is filled in.
func (r *DuckDBRepository) RecordQuery(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.Question) == "" {
		return errors.New(errors.ErrTypeValidation, "question is required")
	}

	if entry.Status != StatusSucceeded && entry.Status != StatusFailed {
		return errors.Newf(errors.ErrTypeValidation, "invalid status: %q", entry.Status)
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	question := truncateUTF8(entry.Question, maxQuestionLength)

	insertSQL := `
	INSERT INTO query_history (
		id, question, sql_text, row_count, repaired, status,
		error_type, error_message, duration_ms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, insertSQL,
		entry.ID.String(), question, entry.SQL, entry.RowCount, entry.Repaired, entry.Status,
		entry.ErrorType, entry.ErrorMessage, entry.DurationMs, entry.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to record query")
	}

	return nil
}

const selectEntrySQL = `
	SELECT h.id, h.question, h.sql_text, h.row_count, h.repaired, h.status,
		h.error_type, h.error_message, h.duration_ms, h.created_at,
		f.rating, f.comment, f.created_at
	FROM query_history h
	LEFT JOIN query_feedback f ON f.query_id = h.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry                            Entry
		id                               string
		sqlText, errorType, errorMessage sql.NullString
		rating                           sql.NullInt64
		comment                          sql.NullString
		feedbackAt                       sql.NullTime
	)

	err := row.Scan(
		&id, &entry.Question, &sqlText, &entry.RowCount, &entry.Repaired, &entry.Status,
		&errorType, &errorMessage, &entry.DurationMs, &entry.CreatedAt,
		&rating, &comment, &feedbackAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrTypeDatabase, "corrupt history id %q", id)
	}

	entry.ID = parsed
	entry.SQL = sqlText.String
	entry.ErrorType = errorType.String
	entry.ErrorMessage = errorMessage.String
	entry.Comment = comment.String

	if rating.Valid {
		value := int(rating.Int64)
		entry.Rating = &value
	}

	if feedbackAt.Valid {
		at := feedbackAt.Time
		entry.FeedbackAt = &at
	}

	return &entry, nil
}

// GetEntry returns a single history entry
func (r *DuckDBRepository) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntrySQL+" WHERE h.id = ?", id.String())

	entry, err := scanEntry(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.Newf(errors.ErrTypeNotFound, "history entry not found: %s", id)
		}

		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to get history entry")
	}

	return entry, nil
}

// ListEntries returns the most recent entries, newest first
func (r *DuckDBRepository) ListEntries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, selectEntrySQL+" ORDER BY h.created_at DESC, h.id LIMIT ?", limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to list history")
	}
	defer rows.Close()

	entries := []Entry{}

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan history entry")
		}

		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to iterate history")
	}

	return entries, nil
}

// SaveFeedback attaches a rating and optional comment to an entry, replacing earlier feedback
func (r *DuckDBRepository) SaveFeedback(ctx context.Context, id uuid.UUID, rating int, comment string) error {
	if rating < MinRating || rating > MaxRating {
		return errors.Newf(errors.ErrTypeValidation, "rating must be between %d and %d, got %d",
			MinRating, MaxRating, rating)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_history WHERE id = ?", id.String()).Scan(&count); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to look up history entry")
	}

	if count == 0 {
		return errors.Newf(errors.ErrTypeNotFound, "history entry not found: %s", id)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO query_feedback (query_id, rating, comment, created_at) VALUES (?, ?, ?, ?)",
		id.String(), rating, strings.TrimSpace(comment), time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to save feedback")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to commit feedback")
	}

	return nil
}

// GetStats returns aggregate history statistics
func (r *DuckDBRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ErrorBreakdown: make(map[string]int)}

	var lastQuery sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'succeeded'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE repaired),
			MAX(created_at)
		FROM query_history`).Scan(&stats.TotalQueries, &stats.Succeeded, &stats.Failed, &stats.Repaired, &lastQuery)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to get history stats")
	}

	if lastQuery.Valid {
		stats.LastQueryTime = lastQuery.Time
	}

	var avgRating sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, "SELECT AVG(rating) FROM query_feedback").Scan(&avgRating); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to get average rating")
	}

	stats.AverageRating = avgRating.Float64

	rows, err := r.db.QueryContext(ctx, `
		SELECT error_type, COUNT(*)
		FROM query_history
		WHERE status = 'failed' AND error_type IS NOT NULL AND error_type <> ''
		GROUP BY error_type`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to get error breakdown")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			errType string
			count   int
		)

		if err := rows.Scan(&errType, &count); err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan error breakdown")
		}

		stats.ErrorBreakdown[errType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to iterate error breakdown")
	}

	if r.path != "" {
		if info, err := os.Stat(r.path); err == nil {
			stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
		}
	}

	return stats, nil
}

// Clear removes all history and feedback
func (r *DuckDBRepository) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM query_feedback", "DELETE FROM query_history"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ErrTypeDatabase, "failed to clear history")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to commit clear")
	}

	return nil
}

// Close closes the database connection
func (r *DuckDBRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}

	return nil
}

// truncateUTF8 cuts s to at most maxBytes without splitting a rune
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}

	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
