package database

import (
	"context"
	"fmt"
)

// LoadPrecosechaManzanas re-derives the pre-harvest apple maturity
// tables (REG.CKU.013) from the raw JSON already persisted for the
// submission. Delete-then-insert inside one transaction, so the loader
// is safe to run any number of times for the same id.
func (db *DB) LoadPrecosechaManzanas(ctx context.Context, submissionID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin precosecha load: %w", err)
	}
	defer tx.Rollback()

	dataJSON, err := readDataJSON(ctx, tx, submissionID)
	if err != nil {
		return err
	}
	data := parseDataJSON(dataJSON)

	for _, table := range []string{
		"precosecha_manzanas",
		"precosecha_presiones_grupo",
		"precosecha_presiones_detalle",
		"precosecha_almidon",
		"precosecha_semillas",
	} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE submission_id = ?", submissionID,
		); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO precosecha_manzanas (submission_id, planta, temporada, variedad, huerto, fecha, processed_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		submissionID,
		headerField(data, "planta"),
		headerField(data, "temporada"),
		headerField(data, "variedad"),
		headerField(data, "huerto"),
		headerField(data, "fecha"),
		nowUTC(),
	); err != nil {
		return fmt.Errorf("failed to insert precosecha main row: %w", err)
	}

	for i, raw := range asSlice(data["presiones"]) {
		grupo := asMap(raw)
		if grupo == nil {
			continue
		}
		muestra := asInt(grupo["muestra"])
		if muestra == 0 {
			muestra = i + 1
		}
		mediciones := asSlice(grupo["mediciones"])

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO precosecha_presiones_grupo (submission_id, muestra, variedad, mediciones)
			VALUES (?, ?, ?, ?)`,
			submissionID, muestra, asString(grupo["variedad"]), len(mediciones),
		); err != nil {
			return fmt.Errorf("failed to insert pressure group: %w", err)
		}

		for j, med := range mediciones {
			presion, ok := asFloat(med)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO precosecha_presiones_detalle (submission_id, muestra, fruto, presion_kg)
				VALUES (?, ?, ?, ?)`,
				submissionID, muestra, j+1, presion,
			); err != nil {
				return fmt.Errorf("failed to insert pressure detail: %w", err)
			}
		}
	}

	for i, raw := range asSlice(data["almidon"]) {
		fila := asMap(raw)
		if fila == nil {
			continue
		}
		valor, ok := asFloat(fila["valor"])
		if !ok {
			continue
		}
		num := asInt(fila["fila"])
		if num == 0 {
			num = i + 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO precosecha_almidon (submission_id, fila, valor)
			VALUES (?, ?, ?)`,
			submissionID, num, valor,
		); err != nil {
			return fmt.Errorf("failed to insert starch row: %w", err)
		}
	}

	for i, raw := range asSlice(data["semillas"]) {
		fila := asMap(raw)
		if fila == nil {
			continue
		}
		num := asInt(fila["fila"])
		if num == 0 {
			num = i + 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO precosecha_semillas (submission_id, fila, cantidad)
			VALUES (?, ?, ?)`,
			submissionID, num, asInt(fila["cantidad"]),
		); err != nil {
			return fmt.Errorf("failed to insert seed row: %w", err)
		}
	}

	return tx.Commit()
}

// PrecosechaCounts reads back per-table row counts for observability.
// The template has no dedicated health view; absence of a health
// signal classifies as OK downstream.
func (db *DB) PrecosechaCounts(ctx context.Context, submissionID string) (map[string]interface{}, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM precosecha_presiones_grupo WHERE submission_id = ?1) AS presiones_grupos,
			(SELECT COUNT(*) FROM precosecha_presiones_detalle WHERE submission_id = ?1) AS presiones_detalles,
			(SELECT COUNT(*) FROM precosecha_almidon WHERE submission_id = ?1) AS almidon_filas,
			(SELECT COUNT(*) FROM precosecha_semillas WHERE submission_id = ?1) AS semilla_filas,
			(SELECT COALESCE(SUM(cantidad), 0) FROM precosecha_semillas WHERE submission_id = ?1) AS semilla_sum,
			(SELECT processed_utc FROM precosecha_manzanas WHERE submission_id = ?1) AS processed_utc`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read precosecha counts: %w", err)
	}
	defer rows.Close()

	maps, err := rowsToMaps(rows)
	if err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return map[string]interface{}{}, nil
	}
	return maps[0], nil
}
