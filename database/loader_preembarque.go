package database

import (
	"context"
	"fmt"
)

// LoadPreEmbarque re-derives the pre-shipment inspection tables
// (REG.CKU.027) from the raw JSON persisted for the submission.
// Idempotent: delete-then-insert inside one transaction, children
// first, so the reload never depends on cascade deletes being
// enabled on the connection that runs it.
func (db *DB) LoadPreEmbarque(ctx context.Context, submissionID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin pre embarque load: %w", err)
	}
	defer tx.Rollback()

	dataJSON, err := readDataJSON(ctx, tx, submissionID)
	if err != nil {
		return err
	}
	data := parseDataJSON(dataJSON)

	for _, stmt := range []string{
		`DELETE FROM pre_embarque_presiones WHERE inspeccion_id IN
			(SELECT id FROM pre_embarque_inspeccion WHERE submission_id = ?)`,
		`DELETE FROM pre_embarque_hallazgos WHERE inspeccion_id IN
			(SELECT id FROM pre_embarque_inspeccion WHERE submission_id = ?)`,
		`DELETE FROM pre_embarque_inspeccion WHERE submission_id = ?`,
		`DELETE FROM pre_embarque WHERE submission_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, submissionID); err != nil {
			return fmt.Errorf("failed to clear pre embarque rows: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pre_embarque (submission_id, planta, temporada, tipo_fruta, processed_utc)
		VALUES (?, ?, ?, ?, ?)`,
		submissionID,
		headerField(data, "planta"),
		headerField(data, "temporada"),
		headerField(data, "tipo_fruta"),
		nowUTC(),
	); err != nil {
		return fmt.Errorf("failed to insert pre embarque main row: %w", err)
	}

	for i, raw := range asSlice(data["inspecciones"]) {
		insp := asMap(raw)
		if insp == nil {
			continue
		}
		numero := asInt(insp["numero"])
		if numero == 0 {
			numero = i + 1
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO pre_embarque_inspeccion (submission_id, numero, resolucion, n_frutos)
			VALUES (?, ?, ?, ?)`,
			submissionID, numero, asString(insp["resolucion"]), asInt(insp["n_frutos"]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert inspection: %w", err)
		}
		inspeccionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read inspection id: %w", err)
		}

		for j, med := range asSlice(insp["presiones"]) {
			presion, ok := asFloat(med)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pre_embarque_presiones (inspeccion_id, fruto, presion_kg)
				VALUES (?, ?, ?)`,
				inspeccionID, j+1, presion,
			); err != nil {
				return fmt.Errorf("failed to insert inspection pressure: %w", err)
			}
		}

		for _, rawHallazgo := range asSlice(insp["hallazgos"]) {
			hallazgo := asMap(rawHallazgo)
			if hallazgo == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pre_embarque_hallazgos (inspeccion_id, defecto, cantidad)
				VALUES (?, ?, ?)`,
				inspeccionID, asString(hallazgo["defecto"]), asInt(hallazgo["cantidad"]),
			); err != nil {
				return fmt.Errorf("failed to insert inspection finding: %w", err)
			}
		}
	}

	return tx.Commit()
}

// PreEmbarqueCounts reads back counts and the derived health signal:
// OK when the main row exists, FAIL otherwise.
func (db *DB) PreEmbarqueCounts(ctx context.Context, submissionID string) (map[string]interface{}, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pre_embarque WHERE submission_id = ?1) AS main_rows,
			(SELECT COUNT(*) FROM pre_embarque_inspeccion WHERE submission_id = ?1) AS inspecciones,
			(SELECT COUNT(*)
				FROM pre_embarque_presiones p
				INNER JOIN pre_embarque_inspeccion i ON p.inspeccion_id = i.id
				WHERE i.submission_id = ?1) AS presiones,
			(SELECT COUNT(*)
				FROM pre_embarque_hallazgos h
				INNER JOIN pre_embarque_inspeccion i ON h.inspeccion_id = i.id
				WHERE i.submission_id = ?1) AS hallazgos,
			(SELECT processed_utc FROM pre_embarque WHERE submission_id = ?1) AS processed_utc`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read pre embarque counts: %w", err)
	}
	defer rows.Close()

	maps, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return map[string]interface{}{}, nil
	}

	counts := maps[0]
	if mainRows, ok := counts["main_rows"].(int64); ok && mainRows > 0 {
		counts["health_status"] = "OK"
	} else {
		counts["health_status"] = "FAIL"
	}
	return counts, nil
}
