package database

import (
	"context"
	"fmt"
)

// LoadRecepMadPomaceas re-derives the pomaceous reception maturity
// tables (REG.CKU.014) from the raw JSON persisted for the submission,
// including the per-sample summary tables the health view aggregates.
// Idempotent: delete-then-insert inside one transaction.
func (db *DB) LoadRecepMadPomaceas(ctx context.Context, submissionID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recep mad pomaceas load: %w", err)
	}
	defer tx.Rollback()

	dataJSON, err := readDataJSON(ctx, tx, submissionID)
	if err != nil {
		return err
	}
	data := parseDataJSON(dataJSON)

	for _, table := range []string{
		"recep_mad_pomaceas",
		"recep_mad_pomaceas_presiones",
		"recep_mad_pomaceas_almidon",
		"recep_mad_pomaceas_madurez",
		"recep_mad_pomaceas_resumen_presion",
		"recep_mad_pomaceas_resumen_almidon",
		"recep_mad_pomaceas_resumen_almidon_global",
	} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE submission_id = ?", submissionID,
		); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recep_mad_pomaceas (submission_id, planta, temporada, tipo_fruta, processed_utc)
		VALUES (?, ?, ?, ?, ?)`,
		submissionID,
		headerField(data, "planta"),
		headerField(data, "temporada"),
		headerField(data, "tipo_fruta"),
		nowUTC(),
	); err != nil {
		return fmt.Errorf("failed to insert recep mad pomaceas main row: %w", err)
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
		medidos := 0
		suma := 0.0
		for j, med := range mediciones {
			presion, ok := asFloat(med)
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO recep_mad_pomaceas_presiones (submission_id, muestra, fruto, presion_kg)
				VALUES (?, ?, ?, ?)`,
				submissionID, muestra, j+1, presion,
			); err != nil {
				return fmt.Errorf("failed to insert pressure row: %w", err)
			}
			medidos++
			suma += presion
		}

		esperados := asInt(grupo["frutos_esperados"])
		if esperados == 0 {
			esperados = len(mediciones)
		}
		var prom interface{}
		if medidos > 0 {
			prom = suma / float64(medidos)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recep_mad_pomaceas_resumen_presion
				(submission_id, muestra, frutos_esperados, frutos_medidos, presion_prom)
			VALUES (?, ?, ?, ?, ?)`,
			submissionID, muestra, esperados, medidos, prom,
		); err != nil {
			return fmt.Errorf("failed to insert pressure summary: %w", err)
		}
	}

	almidonSum := 0.0
	almidonRows := 0
	for i, raw := range asSlice(data["almidon"]) {
		fila := asMap(raw)
		if fila == nil {
			continue
		}
		valor, ok := asFloat(fila["valor"])
		if !ok {
			continue
		}
		muestra := asInt(fila["muestra"])
		if muestra == 0 {
			muestra = i + 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recep_mad_pomaceas_almidon (submission_id, muestra, valor)
			VALUES (?, ?, ?)`,
			submissionID, muestra, valor,
		); err != nil {
			return fmt.Errorf("failed to insert starch row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recep_mad_pomaceas_resumen_almidon (submission_id, muestra, valor_prom)
			VALUES (?, ?, ?)
			ON CONFLICT(submission_id, muestra) DO UPDATE SET valor_prom = excluded.valor_prom`,
			submissionID, muestra, valor,
		); err != nil {
			return fmt.Errorf("failed to insert starch summary: %w", err)
		}
		almidonSum += valor
		almidonRows++
	}
	if almidonRows > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recep_mad_pomaceas_resumen_almidon_global (submission_id, valor_prom, filas)
			VALUES (?, ?, ?)`,
			submissionID, almidonSum/float64(almidonRows), almidonRows,
		); err != nil {
			return fmt.Errorf("failed to insert global starch summary: %w", err)
		}
	}

	for i, raw := range asSlice(data["madurez"]) {
		fila := asMap(raw)
		if fila == nil {
			continue
		}
		muestra := asInt(fila["muestra"])
		if muestra == 0 {
			muestra = i + 1
		}
		var brix, firmeza interface{}
		if v, ok := asFloat(fila["brix"]); ok {
			brix = v
		}
		if v, ok := asFloat(fila["firmeza"]); ok {
			firmeza = v
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recep_mad_pomaceas_madurez (submission_id, muestra, brix, firmeza, color_fondo)
			VALUES (?, ?, ?, ?, ?)`,
			submissionID, muestra, brix, firmeza, asString(fila["color_fondo"]),
		); err != nil {
			return fmt.Errorf("failed to insert maturity row: %w", err)
		}
	}

	return tx.Commit()
}

// RecepMadPomaceasHealth reads the health read-model for a submission:
// per-table counts, measurement completeness and the derived
// health_status. Column names are surfaced verbatim.
func (db *DB) RecepMadPomaceasHealth(ctx context.Context, submissionID string) (map[string]interface{}, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT * FROM vw_recep_mad_pomaceas_submission_health
		WHERE submission_id = ? LIMIT 1`,
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read recep mad pomaceas health: %w", err)
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
