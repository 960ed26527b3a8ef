package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestUpsertSubmission_Insert verifies a fresh row is fully stored.
func TestUpsertSubmission_Insert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.UpsertSubmission(ctx, SubmissionRecord{
		SubmissionID:      "S1",
		TemplateID:        "REG.CKU.014",
		TemplateTitle:     "Recepción Madurez Pomáceas",
		Status:            "finalized",
		SubmittedBy:       "Operador",
		UserName:          "Ana",
		UserEmail:         "ana@example.com",
		Planta:            "Teno",
		Temporada:         "2025-2026",
		TipoFruta:         "MANZANA",
		DataJSON:          `{"tipo_fruta":"MANZANA"}`,
		RawSubmissionJSON: `{"id":"S1"}`,
	})
	if err != nil {
		t.Fatalf("UpsertSubmission() error = %v", err)
	}

	rec, err := db.GetSubmission(ctx, "S1")
	if err != nil {
		t.Fatalf("GetSubmission() error = %v", err)
	}
	if rec.TemplateID != "REG.CKU.014" {
		t.Errorf("TemplateID = %q, want REG.CKU.014", rec.TemplateID)
	}
	if rec.Planta != "Teno" {
		t.Errorf("Planta = %q, want Teno", rec.Planta)
	}
	if rec.RawSubmissionJSON != `{"id":"S1"}` {
		t.Errorf("RawSubmissionJSON = %q, want original payload", rec.RawSubmissionJSON)
	}
	if rec.CreatedAt == "" || rec.UpdatedAt == "" {
		t.Errorf("timestamps should be set, got created=%q updated=%q", rec.CreatedAt, rec.UpdatedAt)
	}
}

// TestUpsertSubmission_Idempotent verifies re-finalizing the same id
// keeps exactly one row, preserves created_at and advances updated_at.
func TestUpsertSubmission_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := SubmissionRecord{
		SubmissionID: "S1",
		TemplateID:   "REG.CKU.014",
		Status:       "finalized",
		CreatedAt:    "2026-01-10T12:00:00Z",
		UpdatedAt:    "2026-01-10T12:00:00Z",
		Planta:       "Teno",
	}
	if err := db.UpsertSubmission(ctx, first); err != nil {
		t.Fatalf("first UpsertSubmission() error = %v", err)
	}

	second := first
	second.Planta = "Curicó"
	second.UpdatedAt = "2026-01-11T08:30:00Z"
	if err := db.UpsertSubmission(ctx, second); err != nil {
		t.Fatalf("second UpsertSubmission() error = %v", err)
	}

	_, total, err := db.ListSubmissions(ctx, SubmissionFilter{})
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("total submissions = %d, want 1", total)
	}

	rec, err := db.GetSubmission(ctx, "S1")
	if err != nil {
		t.Fatalf("GetSubmission() error = %v", err)
	}
	if rec.CreatedAt != "2026-01-10T12:00:00Z" {
		t.Errorf("created_at = %q, want original preserved", rec.CreatedAt)
	}
	if rec.UpdatedAt != "2026-01-11T08:30:00Z" {
		t.Errorf("updated_at = %q, want advanced", rec.UpdatedAt)
	}
	if rec.Planta != "Curicó" {
		t.Errorf("Planta = %q, want last-writer-wins", rec.Planta)
	}
}

// TestUpsertSubmission_UpdatedAtDefaultsToNow verifies the server
// clock is used when the payload carries no updatedAt.
func TestUpsertSubmission_UpdatedAtDefaultsToNow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	if err := db.UpsertSubmission(ctx, SubmissionRecord{SubmissionID: "S1"}); err != nil {
		t.Fatalf("UpsertSubmission() error = %v", err)
	}

	rec, err := db.GetSubmission(ctx, "S1")
	if err != nil {
		t.Fatalf("GetSubmission() error = %v", err)
	}
	ts, err := time.Parse(time.RFC3339, rec.UpdatedAt)
	if err != nil {
		t.Fatalf("updated_at %q is not RFC3339: %v", rec.UpdatedAt, err)
	}
	if ts.Before(before) {
		t.Errorf("updated_at = %v, want recent", ts)
	}
}

// TestUpsertSubmission_MissingID verifies the one fatal precondition.
func TestUpsertSubmission_MissingID(t *testing.T) {
	db := setupTestDB(t)

	if err := db.UpsertSubmission(context.Background(), SubmissionRecord{}); err == nil {
		t.Error("UpsertSubmission() without id should fail")
	}

	_, total, err := db.ListSubmissions(context.Background(), SubmissionFilter{})
	if err != nil {
		t.Fatalf("ListSubmissions() error = %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0 rows after rejected upsert", total)
	}
}

// TestGetSubmission_NotFound verifies the sentinel error.
func TestGetSubmission_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSubmission(context.Background(), "missing")
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("GetSubmission() error = %v, want ErrSubmissionNotFound", err)
	}
}

// TestListSubmissions_Filters verifies filtering and paging.
func TestListSubmissions_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := []SubmissionRecord{
		{SubmissionID: "A", TemplateID: "REG.CKU.013", Planta: "Teno", Status: "finalized"},
		{SubmissionID: "B", TemplateID: "REG.CKU.014", Planta: "Teno", Status: "finalized"},
		{SubmissionID: "C", TemplateID: "REG.CKU.014", Planta: "Curicó", Status: "draft"},
	}
	for _, rec := range seed {
		if err := db.UpsertSubmission(ctx, rec); err != nil {
			t.Fatalf("UpsertSubmission(%s) error = %v", rec.SubmissionID, err)
		}
	}

	byTemplate, total, err := db.ListSubmissions(ctx, SubmissionFilter{TemplateID: "REG.CKU.014"})
	if err != nil {
		t.Fatalf("ListSubmissions(template) error = %v", err)
	}
	if total != 2 || len(byTemplate) != 2 {
		t.Errorf("template filter returned %d/%d, want 2/2", len(byTemplate), total)
	}

	byPlanta, total, err := db.ListSubmissions(ctx, SubmissionFilter{Planta: "Curicó"})
	if err != nil {
		t.Fatalf("ListSubmissions(planta) error = %v", err)
	}
	if total != 1 || len(byPlanta) != 1 || byPlanta[0].SubmissionID != "C" {
		t.Errorf("planta filter returned %+v (total %d), want only C", byPlanta, total)
	}

	paged, total, err := db.ListSubmissions(ctx, SubmissionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListSubmissions(paged) error = %v", err)
	}
	if total != 3 {
		t.Errorf("paged total = %d, want 3", total)
	}
	if len(paged) != 2 {
		t.Errorf("paged len = %d, want 2", len(paged))
	}

	// List responses exclude the heavy JSON blobs.
	if paged[0].RawSubmissionJSON != "" || paged[0].DataJSON != "" {
		t.Error("list rows should not carry JSON blobs")
	}
}
