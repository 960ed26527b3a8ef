package database

import (
	"context"
	"encoding/json"
	"testing"
)

// setupTestDB opens an in-memory database with the full schema.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// seedSubmission upserts a raw row with the given data payload.
func seedSubmission(t *testing.T, db *DB, submissionID, templateID string, data map[string]interface{}) {
	t.Helper()

	dataJSON, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}

	err = db.UpsertSubmission(context.Background(), SubmissionRecord{
		SubmissionID: submissionID,
		TemplateID:   templateID,
		Status:       "finalized",
		DataJSON:     string(dataJSON),
	})
	if err != nil {
		t.Fatalf("UpsertSubmission() error = %v", err)
	}
}
