package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

// NewTestDB creates an initialized history database under t.TempDir.
// The repository is closed when the test finishes.
func NewTestDB(t *testing.T) *DuckDBRepository {
	t.Helper()

	repo, err := NewDuckDBRepository(filepath.Join(t.TempDir(), "history.duckdb"))
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close test repository: %v", err)
		}
	})

	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test repository: %v", err)
	}

	return repo
}

// NewTestEntry returns a succeeded entry with a fresh ID, created offset after a fixed base time
func NewTestEntry(question string, offset time.Duration) Entry {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	return Entry{
		ID:         uuid.New(),
		Question:   question,
		SQL:        "SELECT 1\nLIMIT 1000",
		RowCount:   1,
		Status:     StatusSucceeded,
		DurationMs: 42,
		CreatedAt:  base.Add(offset),
	}
}
