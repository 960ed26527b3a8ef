package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSubmissionNotFound is returned by reads for unknown submission ids.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRecord is the flattened row written to cku_submissions.
// DataJSON and RawSubmissionJSON arrive already serialized and
// size-capped by the caller.
type SubmissionRecord struct {
	SubmissionID      string `json:"submission_id"`
	TemplateID        string `json:"template_id"`
	TemplateTitle     string `json:"template_title"`
	TemplateVersion   string `json:"template_version"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	SubmittedBy       string `json:"submitted_by"`
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name"`
	UserEmail         string `json:"user_email"`
	Planta            string `json:"planta"`
	Temporada         string `json:"temporada"`
	TipoFruta         string `json:"tipo_fruta"`
	DataJSON          string `json:"data_json,omitempty"`
	RawSubmissionJSON string `json:"raw_submission_json,omitempty"`
}

// UpsertSubmission writes or updates the canonical row for a
// submission id. On update created_at is preserved and updated_at
// advances; everything else is last-writer-wins. This upsert is the
// idempotency anchor for the whole pipeline.
func (db *DB) UpsertSubmission(ctx context.Context, rec SubmissionRecord) error {
	if strings.TrimSpace(rec.SubmissionID) == "" {
		return fmt.Errorf("submission without id, cannot persist")
	}

	createdAt := normalizeTimestamp(rec.CreatedAt)
	if createdAt == "" {
		createdAt = nowUTC()
	}
	updatedAt := normalizeTimestamp(rec.UpdatedAt)
	if updatedAt == "" {
		updatedAt = nowUTC()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cku_submissions (
			submission_id, template_id, template_title, template_version, status,
			created_at, updated_at, submitted_by,
			user_id, user_name, user_email,
			planta, temporada, tipo_fruta,
			data_json, raw_submission_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(submission_id) DO UPDATE SET
			template_id         = excluded.template_id,
			template_title      = excluded.template_title,
			template_version    = excluded.template_version,
			status              = excluded.status,
			created_at          = COALESCE(cku_submissions.created_at, excluded.created_at),
			updated_at          = excluded.updated_at,
			submitted_by        = excluded.submitted_by,
			user_id             = excluded.user_id,
			user_name           = excluded.user_name,
			user_email          = excluded.user_email,
			planta              = excluded.planta,
			temporada           = excluded.temporada,
			tipo_fruta          = excluded.tipo_fruta,
			data_json           = excluded.data_json,
			raw_submission_json = excluded.raw_submission_json`,
		rec.SubmissionID, rec.TemplateID, rec.TemplateTitle, rec.TemplateVersion, rec.Status,
		createdAt, updatedAt, rec.SubmittedBy,
		rec.UserID, rec.UserName, rec.UserEmail,
		rec.Planta, rec.Temporada, rec.TipoFruta,
		rec.DataJSON, rec.RawSubmissionJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert submission %s: %w", rec.SubmissionID, err)
	}

	return nil
}

const submissionColumns = `submission_id, template_id, template_title, template_version, status,
	created_at, updated_at, submitted_by, user_id, user_name, user_email,
	planta, temporada, tipo_fruta, data_json, raw_submission_json`

func scanSubmission(row interface{ Scan(...interface{}) error }) (SubmissionRecord, error) {
	var rec SubmissionRecord
	err := row.Scan(
		&rec.SubmissionID, &rec.TemplateID, &rec.TemplateTitle, &rec.TemplateVersion, &rec.Status,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.SubmittedBy, &rec.UserID, &rec.UserName, &rec.UserEmail,
		&rec.Planta, &rec.Temporada, &rec.TipoFruta, &rec.DataJSON, &rec.RawSubmissionJSON,
	)
	return rec, err
}

// GetSubmission returns the stored row for a submission id.
func (db *DB) GetSubmission(ctx context.Context, submissionID string) (SubmissionRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM cku_submissions WHERE submission_id = ?`,
		submissionID,
	)

	rec, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SubmissionRecord{}, ErrSubmissionNotFound
	}
	if err != nil {
		return SubmissionRecord{}, fmt.Errorf("failed to read submission %s: %w", submissionID, err)
	}
	return rec, nil
}

// SubmissionFilter narrows ListSubmissions. Zero values mean "any".
type SubmissionFilter struct {
	TemplateID string
	Planta     string
	Status     string
	TipoFruta  string
	Limit      int
	Offset     int
}

// ListSubmissions returns submissions newest-first plus the total
// matching count for paging. Raw JSON blobs are excluded from list
// responses to keep them small.
func (db *DB) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]SubmissionRecord, int, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.TemplateID != "" {
		where = append(where, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if filter.Planta != "" {
		where = append(where, "planta = ?")
		args = append(args, filter.Planta)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.TipoFruta != "" {
		where = append(where, "tipo_fruta = ?")
		args = append(args, filter.TipoFruta)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cku_submissions"+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT submission_id, template_id, template_title, template_version, status,
		created_at, updated_at, submitted_by, user_id, user_name, user_email,
		planta, temporada, tipo_fruta, '', ''
		FROM cku_submissions` + whereClause + `
		ORDER BY updated_at DESC, submission_id LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	submissions := make([]SubmissionRecord, 0, limit)
	for rows.Next() {
		rec, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan submission: %w", err)
		}
		rec.DataJSON = ""
		rec.RawSubmissionJSON = ""
		submissions = append(submissions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

// readDataJSON loads the raw data blob a loader re-derives rows from.
// Returns ErrSubmissionNotFound when the raw row is missing: loaders
// run strictly after the raw upsert, so this indicates a caller bug or
// a deleted row.
func readDataJSON(ctx context.Context, tx *sql.Tx, submissionID string) (string, error) {
	var dataJSON string
	err := tx.QueryRowContext(ctx,
		"SELECT data_json FROM cku_submissions WHERE submission_id = ?",
		submissionID,
	).Scan(&dataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSubmissionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read data_json for %s: %w", submissionID, err)
	}
	return dataJSON, nil
}

// rowsToMaps scans an arbitrary result set into ordered generic maps.
// Used by health/count read-models whose column sets are
// template-specific and surfaced verbatim.
func rowsToMaps(rows *sql.Rows) ([]map[string]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		m := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				m[col] = string(v)
			default:
				m[col] = v
			}
		}
		out = append(out, m)
	}

	return out, rows.Err()
}
