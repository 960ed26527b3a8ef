package database

import (
	"context"
	"fmt"
	"strings"
)

// AuditResult is the 3-level result tier recorded with every event.
type AuditResult string

const (
	AuditOK   AuditResult = "OK"
	AuditWarn AuditResult = "WARN"
	AuditFail AuditResult = "FAIL"
)

// Lifecycle event types written by the finalize pipeline. Normalizers
// may record additional template-specific types.
const (
	EventFinalizeReceived       = "FINALIZE_RECEIVED"
	EventFinalizeStart          = "FINALIZE_START"
	EventFinalizeDone           = "FINALIZE_DONE"
	EventFinalizeFail           = "FINALIZE_FAIL"
	EventFinalizeNotImplemented = "FINALIZE_NOT_IMPLEMENTED"
)

// AuditEvent is one append-only row in cku_app_audit_log.
type AuditEvent struct {
	ID            int64       `json:"id,omitempty"`
	EventTimeUTC  string      `json:"event_time_utc"`
	EventType     string      `json:"event_type"`
	Result        AuditResult `json:"result"`
	SubmissionID  string      `json:"submission_id,omitempty"`
	TemplateID    string      `json:"template_id,omitempty"`
	TemplateTitle string      `json:"template_title,omitempty"`
	UserName      string      `json:"user_name,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
	UserEmail     string      `json:"user_email,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	DetailsJSON   string      `json:"details_json,omitempty"`
}

// InsertAuditEvent appends one event. The event time is the server
// clock at insert. Rows are never updated or deleted afterwards.
func (db *DB) InsertAuditEvent(ctx context.Context, event AuditEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("audit event without event_type")
	}
	if event.Result == "" {
		event.Result = AuditOK
	}
	if event.EventTimeUTC == "" {
		event.EventTimeUTC = nowUTC()
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cku_app_audit_log (
			event_time_utc, event_type, result,
			submission_id, template_id, template_title,
			user_name, user_id, user_email,
			error_message, details_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventTimeUTC, event.EventType, string(event.Result),
		event.SubmissionID, event.TemplateID, event.TemplateTitle,
		event.UserName, event.UserID, event.UserEmail,
		event.ErrorMessage, event.DetailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", event.EventType, err)
	}

	return nil
}

// AuditFilter narrows ListAuditEvents. Zero values mean "any".
type AuditFilter struct {
	SubmissionID string
	EventType    string
	Result       AuditResult
	Limit        int
}

// ListAuditEvents returns matching events newest-first.
func (db *DB) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.SubmissionID != "" {
		where = append(where, "submission_id = ?")
		args = append(args, filter.SubmissionID)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Result != "" {
		where = append(where, "result = ?")
		args = append(args, string(filter.Result))
	}

	query := `SELECT id, event_time_utc, event_type, result,
		COALESCE(submission_id, ''), template_id, template_title,
		user_name, user_id, user_email, error_message, COALESCE(details_json, '')
		FROM cku_app_audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := db.conn.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var result string
		if err := rows.Scan(
			&e.ID, &e.EventTimeUTC, &e.EventType, &result,
			&e.SubmissionID, &e.TemplateID, &e.TemplateTitle,
			&e.UserName, &e.UserID, &e.UserEmail,
			&e.ErrorMessage, &e.DetailsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Result = AuditResult(result)
		events = append(events, e)
	}

	return events, rows.Err()
}

// CountAuditEvents returns the number of matching events.
func (db *DB) CountAuditEvents(ctx context.Context, filter AuditFilter) (int, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.SubmissionID != "" {
		where = append(where, "submission_id = ?")
		args = append(args, filter.SubmissionID)
	}
	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Result != "" {
		where = append(where, "result = ?")
		args = append(args, string(filter.Result))
	}

	query := "SELECT COUNT(*) FROM cku_app_audit_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var count int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}
