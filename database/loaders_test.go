package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func pomaceasData(completado bool) map[string]interface{} {
	mediciones := []interface{}{7.5, 8.0, 7.8}
	esperados := 3
	if !completado {
		esperados = 5
	}
	return map[string]interface{}{
		"encabezado": map[string]interface{}{
			"planta":     "Teno",
			"temporada":  "2025-2026",
			"tipo_fruta": "MANZANA",
		},
		"presiones": []interface{}{
			map[string]interface{}{
				"muestra":          1,
				"frutos_esperados": esperados,
				"mediciones":       mediciones,
			},
		},
		"almidon": []interface{}{
			map[string]interface{}{"muestra": 1, "valor": 3.0},
			map[string]interface{}{"muestra": 2, "valor": 4.0},
		},
		"madurez": []interface{}{
			map[string]interface{}{"muestra": 1, "brix": 12.5, "firmeza": 7.1, "color_fondo": "verde"},
		},
	}
}

// TestLoadRecepMadPomaceas_HealthOK verifies a complete submission
// derives rows and an OK health signal from the view.
func TestLoadRecepMadPomaceas_HealthOK(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S1", "REG.CKU.014", pomaceasData(true))

	if err := db.LoadRecepMadPomaceas(ctx, "S1"); err != nil {
		t.Fatalf("LoadRecepMadPomaceas() error = %v", err)
	}

	health, err := db.RecepMadPomaceasHealth(ctx, "S1")
	if err != nil {
		t.Fatalf("RecepMadPomaceasHealth() error = %v", err)
	}

	if got := health["health_status"]; got != "OK" {
		t.Errorf("health_status = %v, want OK", got)
	}
	if got := health["pres_rows"]; got != int64(3) {
		t.Errorf("pres_rows = %v, want 3", got)
	}
	if got := health["almidon_rows"]; got != int64(2) {
		t.Errorf("almidon_rows = %v, want 2", got)
	}
	if got := health["madurez_rows"]; got != int64(1) {
		t.Errorf("madurez_rows = %v, want 1", got)
	}
	if got := health["resumen_almidon_global_rows"]; got != int64(1) {
		t.Errorf("resumen_almidon_global_rows = %v, want 1", got)
	}
	if got := health["pres_mediciones_faltantes"]; got != int64(0) {
		t.Errorf("pres_mediciones_faltantes = %v, want 0", got)
	}
	if health["processed_utc"] == "" {
		t.Error("processed_utc should be set")
	}
}

// TestLoadRecepMadPomaceas_HealthWarn verifies missing measurements
// surface as WARN, not FAIL.
func TestLoadRecepMadPomaceas_HealthWarn(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S1", "REG.CKU.014", pomaceasData(false))

	if err := db.LoadRecepMadPomaceas(ctx, "S1"); err != nil {
		t.Fatalf("LoadRecepMadPomaceas() error = %v", err)
	}

	health, err := db.RecepMadPomaceasHealth(ctx, "S1")
	if err != nil {
		t.Fatalf("RecepMadPomaceasHealth() error = %v", err)
	}
	if got := health["health_status"]; got != "WARN" {
		t.Errorf("health_status = %v, want WARN", got)
	}
	if got := health["pres_mediciones_faltantes"]; got != int64(2) {
		t.Errorf("pres_mediciones_faltantes = %v, want 2", got)
	}
}

// TestLoadRecepMadPomaceas_HealthFailOnEmptyData verifies a submission
// without pressure rows classifies FAIL.
func TestLoadRecepMadPomaceas_HealthFailOnEmptyData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S1", "REG.CKU.014", map[string]interface{}{})

	if err := db.LoadRecepMadPomaceas(ctx, "S1"); err != nil {
		t.Fatalf("LoadRecepMadPomaceas() error = %v", err)
	}

	health, err := db.RecepMadPomaceasHealth(ctx, "S1")
	if err != nil {
		t.Fatalf("RecepMadPomaceasHealth() error = %v", err)
	}
	if got := health["health_status"]; got != "FAIL" {
		t.Errorf("health_status = %v, want FAIL", got)
	}
}

// TestLoadRecepMadPomaceas_Rerunnable verifies running the loader
// twice does not duplicate child rows.
func TestLoadRecepMadPomaceas_Rerunnable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S1", "REG.CKU.014", pomaceasData(true))

	for i := 0; i < 2; i++ {
		if err := db.LoadRecepMadPomaceas(ctx, "S1"); err != nil {
			t.Fatalf("LoadRecepMadPomaceas() run %d error = %v", i+1, err)
		}
	}

	health, err := db.RecepMadPomaceasHealth(ctx, "S1")
	if err != nil {
		t.Fatalf("RecepMadPomaceasHealth() error = %v", err)
	}
	if got := health["pres_rows"]; got != int64(3) {
		t.Errorf("pres_rows after rerun = %v, want 3", got)
	}
	if got := health["almidon_rows"]; got != int64(2) {
		t.Errorf("almidon_rows after rerun = %v, want 2", got)
	}
}

// TestLoadRecepMadPomaceas_MissingRawRow verifies loaders refuse to
// run before the raw upsert.
func TestLoadRecepMadPomaceas_MissingRawRow(t *testing.T) {
	db := setupTestDB(t)

	err := db.LoadRecepMadPomaceas(context.Background(), "missing")
	if !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("LoadRecepMadPomaceas() error = %v, want ErrSubmissionNotFound", err)
	}
}

// TestLoadPrecosechaManzanas_Counts verifies derived rows and counts
// for the apple maturity template.
func TestLoadPrecosechaManzanas_Counts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S2", "REG.CKU.013", map[string]interface{}{
		"encabezado": map[string]interface{}{
			"planta": "Teno", "temporada": "2025-2026", "variedad": "GALA",
		},
		"presiones": []interface{}{
			map[string]interface{}{"muestra": 1, "variedad": "GALA", "mediciones": []interface{}{8.1, 7.9}},
			map[string]interface{}{"muestra": 2, "variedad": "GALA", "mediciones": []interface{}{7.2}},
		},
		"almidon": []interface{}{
			map[string]interface{}{"fila": 1, "valor": 2.5},
		},
		"semillas": []interface{}{
			map[string]interface{}{"fila": 1, "cantidad": 8},
			map[string]interface{}{"fila": 2, "cantidad": 10},
		},
	})

	for i := 0; i < 2; i++ { // run twice, loader must be idempotent
		if err := db.LoadPrecosechaManzanas(ctx, "S2"); err != nil {
			t.Fatalf("LoadPrecosechaManzanas() run %d error = %v", i+1, err)
		}
	}

	counts, err := db.PrecosechaCounts(ctx, "S2")
	if err != nil {
		t.Fatalf("PrecosechaCounts() error = %v", err)
	}

	want := map[string]int64{
		"presiones_grupos":   2,
		"presiones_detalles": 3,
		"almidon_filas":      1,
		"semilla_filas":      2,
		"semilla_sum":        18,
	}
	for key, value := range want {
		if got := counts[key]; got != value {
			t.Errorf("%s = %v, want %d", key, got, value)
		}
	}
	if _, hasHealth := counts["health_status"]; hasHealth {
		t.Error("precosecha counts should not carry a health signal")
	}
}

// TestLoadPreEmbarque_CountsAndHealth verifies the pre-shipment loader
// and its main-row-driven health signal.
func TestLoadPreEmbarque_CountsAndHealth(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedSubmission(t, db, "S3", "REG.CKU.027", map[string]interface{}{
		"encabezado": map[string]interface{}{"planta": "Curicó", "tipo_fruta": "PERA"},
		"inspecciones": []interface{}{
			map[string]interface{}{
				"numero":     1,
				"resolucion": "Aprobado",
				"n_frutos":   3,
				"presiones":  []interface{}{6.5, 6.8, 7.0},
				"hallazgos": []interface{}{
					map[string]interface{}{"defecto": "machucón", "cantidad": 1},
				},
			},
			map[string]interface{}{
				"numero":     2,
				"resolucion": "Rechazado",
				"n_frutos":   2,
				"presiones":  []interface{}{5.9},
			},
		},
	})

	for i := 0; i < 2; i++ {
		if err := db.LoadPreEmbarque(ctx, "S3"); err != nil {
			t.Fatalf("LoadPreEmbarque() run %d error = %v", i+1, err)
		}
	}

	counts, err := db.PreEmbarqueCounts(ctx, "S3")
	if err != nil {
		t.Fatalf("PreEmbarqueCounts() error = %v", err)
	}

	if got := counts["main_rows"]; got != int64(1) {
		t.Errorf("main_rows = %v, want 1", got)
	}
	if got := counts["inspecciones"]; got != int64(2) {
		t.Errorf("inspecciones = %v, want 2", got)
	}
	if got := counts["presiones"]; got != int64(4) {
		t.Errorf("presiones = %v, want 4", got)
	}
	if got := counts["hallazgos"]; got != int64(1) {
		t.Errorf("hallazgos = %v, want 1", got)
	}
	if got := counts["health_status"]; got != "OK" {
		t.Errorf("health_status = %v, want OK", got)
	}
}

// TestLoadPreEmbarque_IdempotentAcrossPool re-runs the loader on a
// file-backed database with the default multi-connection pool, where
// each run may land on a different pooled connection. Child rows must
// not accumulate regardless of which connection clears them.
func TestLoadPreEmbarque_IdempotentAcrossPool(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "submissions.db")
	db, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB(%s) error = %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	seedSubmission(t, db, "S3-pool", "REG.CKU.027", map[string]interface{}{
		"encabezado": map[string]interface{}{"planta": "Curicó", "tipo_fruta": "PERA"},
		"inspecciones": []interface{}{
			map[string]interface{}{
				"numero":     1,
				"resolucion": "Aprobado",
				"n_frutos":   2,
				"presiones":  []interface{}{6.5, 6.8},
				"hallazgos": []interface{}{
					map[string]interface{}{"defecto": "machucón", "cantidad": 1},
				},
			},
		},
	})

	for i := 0; i < 5; i++ {
		if err := db.LoadPreEmbarque(ctx, "S3-pool"); err != nil {
			t.Fatalf("LoadPreEmbarque() run %d error = %v", i+1, err)
		}
	}

	counts, err := db.PreEmbarqueCounts(ctx, "S3-pool")
	if err != nil {
		t.Fatalf("PreEmbarqueCounts() error = %v", err)
	}
	if got := counts["inspecciones"]; got != int64(1) {
		t.Errorf("inspecciones = %v, want 1", got)
	}
	if got := counts["presiones"]; got != int64(2) {
		t.Errorf("presiones = %v, want 2 after repeated loads", got)
	}
	if got := counts["hallazgos"]; got != int64(1) {
		t.Errorf("hallazgos = %v, want 1 after repeated loads", got)
	}

	// Orphans are invisible to the joined counts, check the child
	// tables directly too.
	var presiones, hallazgos int
	row := db.conn.QueryRow("SELECT COUNT(*) FROM pre_embarque_presiones")
	if err := row.Scan(&presiones); err != nil {
		t.Fatalf("counting pressure rows: %v", err)
	}
	row = db.conn.QueryRow("SELECT COUNT(*) FROM pre_embarque_hallazgos")
	if err := row.Scan(&hallazgos); err != nil {
		t.Fatalf("counting finding rows: %v", err)
	}
	if presiones != 2 || hallazgos != 1 {
		t.Errorf("raw child rows = %d pressures, %d findings, want 2 and 1", presiones, hallazgos)
	}
}

// TestPreEmbarqueCounts_HealthFailWithoutMainRow verifies FAIL when
// nothing was normalized.
func TestPreEmbarqueCounts_HealthFailWithoutMainRow(t *testing.T) {
	db := setupTestDB(t)

	counts, err := db.PreEmbarqueCounts(context.Background(), "unprocessed")
	if err != nil {
		t.Fatalf("PreEmbarqueCounts() error = %v", err)
	}
	if got := counts["health_status"]; got != "FAIL" {
		t.Errorf("health_status = %v, want FAIL", got)
	}
}

// TestLoader_TruncatedDataDegrades verifies a truncated data blob
// loads zero child rows instead of failing.
func TestLoader_TruncatedDataDegrades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.UpsertSubmission(ctx, SubmissionRecord{
		SubmissionID: "S4",
		TemplateID:   "REG.CKU.014",
		DataJSON:     `{"presiones":[{"muestra":1,"medicio... (TRUNCATED 4096 chars)`,
	})
	if err != nil {
		t.Fatalf("UpsertSubmission() error = %v", err)
	}

	if err := db.LoadRecepMadPomaceas(ctx, "S4"); err != nil {
		t.Fatalf("LoadRecepMadPomaceas() error = %v", err)
	}

	health, err := db.RecepMadPomaceasHealth(ctx, "S4")
	if err != nil {
		t.Fatalf("RecepMadPomaceasHealth() error = %v", err)
	}
	if got := health["health_status"]; got != "FAIL" {
		t.Errorf("health_status = %v, want FAIL for unusable data", got)
	}
}
