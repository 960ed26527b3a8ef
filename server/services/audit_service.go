package services

import (
	"context"
	"log/slog"

	"ckuserver/database"
	"ckuserver/internal/jsonutil"
	apperrors "ckuserver/server/errors"
)

// AuditService writes the append-only trail of finalization events.
type AuditService struct {
	db            *database.DB
	logger        *slog.Logger
	detailsMaxLen int
}

// NewAuditService creates the audit service. Returns an error when db is nil.
func NewAuditService(db *database.DB, detailsMaxLen int) (*AuditService, error) {
	if db == nil {
		return nil, apperrors.NewInternalError("db cannot be nil", nil)
	}
	return &AuditService{
		db:            db,
		logger:        slog.Default(),
		detailsMaxLen: detailsMaxLen,
	}, nil
}

// NewAuditServiceWithLogger creates the audit service with an explicit logger.
func NewAuditServiceWithLogger(db *database.DB, detailsMaxLen int, logger *slog.Logger) (*AuditService, error) {
	svc, err := NewAuditService(db, detailsMaxLen)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		svc.logger = logger
	}
	return svc, nil
}

// Record inserts one audit row. details is serialized with the circular
// safe encoder and capped before storage.
func (s *AuditService) Record(ctx context.Context, submissionID, templateID, eventType string, result database.AuditResult, message string, details interface{}) error {
	event := database.AuditEvent{
		SubmissionID: submissionID,
		TemplateID:   templateID,
		EventType:    eventType,
		Result:       result,
		ErrorMessage: message,
	}
	if details != nil {
		event.DetailsJSON = jsonutil.SafeString(details, s.detailsMaxLen)
	}
	if err := s.db.InsertAuditEvent(ctx, event); err != nil {
		return apperrors.NewPersistenceError("failed to write audit event", err)
	}
	return nil
}

// RecordBestEffort writes an audit row but never fails the caller. A
// failed write is logged and swallowed, the pipeline outcome does not
// depend on the trail.
func (s *AuditService) RecordBestEffort(ctx context.Context, submissionID, templateID, eventType string, result database.AuditResult, message string, details interface{}) {
	if err := s.Record(ctx, submissionID, templateID, eventType, result, message, details); err != nil {
		s.logger.Warn("audit write failed",
			"submission_id", submissionID,
			"event_type", eventType,
			"error", err,
		)
	}
}

// List returns audit events matching the filter, newest first.
func (s *AuditService) List(ctx context.Context, filter database.AuditFilter) ([]database.AuditEvent, int, error) {
	events, err := s.db.ListAuditEvents(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("failed to list audit events", err)
	}
	total, err := s.db.CountAuditEvents(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("failed to count audit events", err)
	}
	return events, total, nil
}
