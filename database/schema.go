package database

import (
	"database/sql"
	"fmt"
)

// initSchema creates every table and view the pipeline writes or reads.
// All statements are idempotent so the schema can be re-applied on
// every startup.
func initSchema(conn *sql.DB) error {
	statements := []string{
		// Catch-all raw store. One row per submission id; re-finalizing
		// updates fields but preserves created_at.
		`CREATE TABLE IF NOT EXISTS cku_submissions (
			submission_id       TEXT PRIMARY KEY,
			template_id         TEXT NOT NULL DEFAULT '',
			template_title      TEXT NOT NULL DEFAULT '',
			template_version    TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,
			submitted_by        TEXT NOT NULL DEFAULT '',
			user_id             TEXT NOT NULL DEFAULT '',
			user_name           TEXT NOT NULL DEFAULT '',
			user_email          TEXT NOT NULL DEFAULT '',
			planta              TEXT NOT NULL DEFAULT '',
			temporada           TEXT NOT NULL DEFAULT '',
			tipo_fruta          TEXT NOT NULL DEFAULT '',
			data_json           TEXT NOT NULL DEFAULT '',
			raw_submission_json TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cku_submissions_template
			ON cku_submissions(template_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cku_submissions_planta
			ON cku_submissions(planta)`,

		// Append-only audit trail. Never updated or deleted by the
		// pipeline.
		`CREATE TABLE IF NOT EXISTS cku_app_audit_log (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			event_time_utc TEXT NOT NULL,
			event_type     TEXT NOT NULL,
			result         TEXT NOT NULL,
			submission_id  TEXT,
			template_id    TEXT NOT NULL DEFAULT '',
			template_title TEXT NOT NULL DEFAULT '',
			user_name      TEXT NOT NULL DEFAULT '',
			user_id        TEXT NOT NULL DEFAULT '',
			user_email     TEXT NOT NULL DEFAULT '',
			error_message  TEXT NOT NULL DEFAULT '',
			details_json   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_submission
			ON cku_app_audit_log(submission_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_event_type
			ON cku_app_audit_log(event_type)`,

		// REG.CKU.013: pre-harvest apple maturity.
		`CREATE TABLE IF NOT EXISTS precosecha_manzanas (
			submission_id TEXT PRIMARY KEY,
			planta        TEXT NOT NULL DEFAULT '',
			temporada     TEXT NOT NULL DEFAULT '',
			variedad      TEXT NOT NULL DEFAULT '',
			huerto        TEXT NOT NULL DEFAULT '',
			fecha         TEXT NOT NULL DEFAULT '',
			processed_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS precosecha_presiones_grupo (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			variedad      TEXT NOT NULL DEFAULT '',
			mediciones    INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_precosecha_pres_grupo_sub
			ON precosecha_presiones_grupo(submission_id)`,
		`CREATE TABLE IF NOT EXISTS precosecha_presiones_detalle (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			fruto         INTEGER NOT NULL,
			presion_kg    REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_precosecha_pres_det_sub
			ON precosecha_presiones_detalle(submission_id)`,
		`CREATE TABLE IF NOT EXISTS precosecha_almidon (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			fila          INTEGER NOT NULL,
			valor         REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_precosecha_almidon_sub
			ON precosecha_almidon(submission_id)`,
		`CREATE TABLE IF NOT EXISTS precosecha_semillas (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			fila          INTEGER NOT NULL,
			cantidad      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_precosecha_semillas_sub
			ON precosecha_semillas(submission_id)`,

		// REG.CKU.014: pomaceous reception maturity.
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas (
			submission_id TEXT PRIMARY KEY,
			planta        TEXT NOT NULL DEFAULT '',
			temporada     TEXT NOT NULL DEFAULT '',
			tipo_fruta    TEXT NOT NULL DEFAULT '',
			processed_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_presiones (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			fruto         INTEGER NOT NULL,
			presion_kg    REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rmp_presiones_sub
			ON recep_mad_pomaceas_presiones(submission_id)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_almidon (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			valor         REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rmp_almidon_sub
			ON recep_mad_pomaceas_almidon(submission_id)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_madurez (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			brix          REAL,
			firmeza       REAL,
			color_fondo   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rmp_madurez_sub
			ON recep_mad_pomaceas_madurez(submission_id)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_resumen_presion (
			submission_id    TEXT NOT NULL,
			muestra          INTEGER NOT NULL,
			frutos_esperados INTEGER NOT NULL DEFAULT 0,
			frutos_medidos   INTEGER NOT NULL DEFAULT 0,
			presion_prom     REAL,
			PRIMARY KEY (submission_id, muestra)
		)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_resumen_almidon (
			submission_id TEXT NOT NULL,
			muestra       INTEGER NOT NULL,
			valor_prom    REAL,
			PRIMARY KEY (submission_id, muestra)
		)`,
		`CREATE TABLE IF NOT EXISTS recep_mad_pomaceas_resumen_almidon_global (
			submission_id TEXT PRIMARY KEY,
			valor_prom    REAL,
			filas         INTEGER NOT NULL DEFAULT 0
		)`,

		// Health read-model for REG.CKU.014. The loader writes the
		// tables above; this view derives counts, measurement
		// completeness and the 3-level health signal.
		`CREATE VIEW IF NOT EXISTS vw_recep_mad_pomaceas_submission_health AS
		SELECT
			submission_id,
			pres_rows,
			almidon_rows,
			madurez_rows,
			resumen_presion_rows,
			resumen_almidon_rows,
			resumen_almidon_global_rows,
			pres_mediciones_esperadas,
			pres_mediciones_completadas,
			pres_mediciones_esperadas - pres_mediciones_completadas AS pres_mediciones_faltantes,
			CASE
				WHEN pres_rows = 0 THEN 'FAIL'
				WHEN pres_mediciones_completadas < pres_mediciones_esperadas THEN 'WARN'
				ELSE 'OK'
			END AS health_status,
			processed_utc
		FROM (
			SELECT
				m.submission_id AS submission_id,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_presiones p
					WHERE p.submission_id = m.submission_id) AS pres_rows,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_almidon a
					WHERE a.submission_id = m.submission_id) AS almidon_rows,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_madurez z
					WHERE z.submission_id = m.submission_id) AS madurez_rows,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_resumen_presion r
					WHERE r.submission_id = m.submission_id) AS resumen_presion_rows,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_resumen_almidon r
					WHERE r.submission_id = m.submission_id) AS resumen_almidon_rows,
				(SELECT COUNT(*) FROM recep_mad_pomaceas_resumen_almidon_global g
					WHERE g.submission_id = m.submission_id) AS resumen_almidon_global_rows,
				(SELECT COALESCE(SUM(r.frutos_esperados), 0) FROM recep_mad_pomaceas_resumen_presion r
					WHERE r.submission_id = m.submission_id) AS pres_mediciones_esperadas,
				(SELECT COALESCE(SUM(r.frutos_medidos), 0) FROM recep_mad_pomaceas_resumen_presion r
					WHERE r.submission_id = m.submission_id) AS pres_mediciones_completadas,
				m.processed_utc AS processed_utc
			FROM recep_mad_pomaceas m
		)`,

		// REG.CKU.027: pre-shipment inspection.
		`CREATE TABLE IF NOT EXISTS pre_embarque (
			submission_id TEXT PRIMARY KEY,
			planta        TEXT NOT NULL DEFAULT '',
			temporada     TEXT NOT NULL DEFAULT '',
			tipo_fruta    TEXT NOT NULL DEFAULT '',
			processed_utc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pre_embarque_inspeccion (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT NOT NULL,
			numero        INTEGER NOT NULL,
			resolucion    TEXT NOT NULL DEFAULT '',
			n_frutos      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pre_embarque_insp_sub
			ON pre_embarque_inspeccion(submission_id)`,
		`CREATE TABLE IF NOT EXISTS pre_embarque_presiones (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			inspeccion_id INTEGER NOT NULL REFERENCES pre_embarque_inspeccion(id) ON DELETE CASCADE,
			fruto         INTEGER NOT NULL,
			presion_kg    REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pre_embarque_pres_insp
			ON pre_embarque_presiones(inspeccion_id)`,
		`CREATE TABLE IF NOT EXISTS pre_embarque_hallazgos (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			inspeccion_id INTEGER NOT NULL REFERENCES pre_embarque_inspeccion(id) ON DELETE CASCADE,
			defecto       TEXT NOT NULL DEFAULT '',
			cantidad      INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pre_embarque_hall_insp
			ON pre_embarque_hallazgos(inspeccion_id)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	return nil
}
