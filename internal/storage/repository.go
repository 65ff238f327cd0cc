package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status of a recorded pipeline run
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Rating bounds for feedback
const (
	MinRating = 1
	MaxRating = 5
)

// Repository defines the interface for the query history store
type Repository interface {
	Initialize(ctx context.Context) error
	RecordQuery(ctx context.Context, entry Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListEntries(ctx context.Context, limit int) ([]Entry, error)
	SaveFeedback(ctx context.Context, id uuid.UUID, rating int, comment string) error
	GetStats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Entry is one answered (or failed) question
type Entry struct {
	ID           uuid.UUID  `json:"id"`
	Question     string     `json:"question"`
	SQL          string     `json:"sql,omitempty"`
	RowCount     int        `json:"row_count"`
	Repaired     bool       `json:"repaired"`
	Status       string     `json:"status"`
	ErrorType    string     `json:"error_type,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	CreatedAt    time.Time  `json:"created_at"`
	Rating       *int       `json:"rating,omitempty"`
	Comment      string     `json:"comment,omitempty"`
	FeedbackAt   *time.Time `json:"feedback_at,omitempty"`
}

// Stats summarizes the history store
type Stats struct {
	TotalQueries   int            `json:"total_queries"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	Repaired       int            `json:"repaired"`
	AverageRating  float64        `json:"average_rating"`
	ErrorBreakdown map[string]int `json:"error_breakdown"`
	LastQueryTime  time.Time      `json:"last_query_time"`
	DatabaseSizeMB float64        `json:"database_size_mb"`
}
