package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"ckuserver/database"
)

// testLogger keeps test output clean.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestDB opens an in-memory database with the full schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// setupPipeline wires the full finalize pipeline over an in-memory
// store with notifications disabled.
func setupPipeline(t *testing.T) (*FinalizeService, *AuditService, *database.DB) {
	t.Helper()

	db := setupTestDB(t)

	audit, err := NewAuditServiceWithLogger(db, 500_000, testLogger())
	if err != nil {
		t.Fatalf("NewAuditService() error = %v", err)
	}
	notify := NewNotificationServiceWithLogger("", time.Second, testLogger())
	registry := DefaultRegistry(db, audit)

	finalize, err := NewFinalizeServiceWithLogger(db, audit, notify, registry,
		2_000_000, 2_000_000, 20_000, testLogger())
	if err != nil {
		t.Fatalf("NewFinalizeService() error = %v", err)
	}
	return finalize, audit, db
}

// buildPayload parses a payload from a map the way the HTTP layer does.
func buildPayload(t *testing.T, fields map[string]interface{}) *SubmissionPayload {
	t.Helper()

	body, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	payload, err := ParseSubmissionPayload(body)
	if err != nil {
		t.Fatalf("ParseSubmissionPayload() error = %v", err)
	}
	return payload
}

// pomaceasFields returns a complete REG.CKU.014 payload map.
func pomaceasFields(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"templateId":  TemplateRecepMadPomaceas,
		"status":      "finalized",
		"submittedBy": "inspector1",
		"user": map[string]interface{}{
			"id":    "u-1",
			"name":  "Inspector Uno",
			"email": "inspector1@example.com",
		},
		"template": map[string]interface{}{
			"title":   "Recepción Madurez Pomáceas",
			"version": "1.2",
		},
		"data": map[string]interface{}{
			"encabezado": map[string]interface{}{
				"planta":     "Teno",
				"temporada":  "2025-2026",
				"tipo_fruta": "Manzana",
			},
			"presiones": []interface{}{
				map[string]interface{}{
					"muestra":          1,
					"frutos_esperados": 3,
					"mediciones":       []interface{}{7.5, 8.1, 7.9},
				},
			},
			"almidon": []interface{}{
				map[string]interface{}{"muestra": 1, "valor": 4.5},
			},
			"madurez": []interface{}{
				map[string]interface{}{"muestra": 1, "brix": 12.3, "firmeza": 7.8, "color_fondo": "C2"},
			},
		},
	}
}
