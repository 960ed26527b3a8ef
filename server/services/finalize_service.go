package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ckuserver/database"
	"ckuserver/internal/jsonutil"
	apperrors "ckuserver/server/errors"
	"ckuserver/server/middleware"
)

// FinalizeResult is the response body for a completed finalization.
type FinalizeResult struct {
	OK           bool                   `json:"ok"`
	SubmissionID string                 `json:"submissionId"`
	RequestID    string                 `json:"requestId,omitempty"`
	TemplateID   string                 `json:"templateId"`
	HealthStatus string                 `json:"healthStatus,omitempty"`
	Counts       map[string]interface{} `json:"counts,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Implemented  bool                   `json:"implemented"`
}

// FinalizeService runs the submission finalization pipeline: persist the
// raw payload, write the audit trail, dispatch to the template's
// normalizer and notify the Teams channel.
type FinalizeService struct {
	db       *database.DB
	audit    *AuditService
	notify   *NotificationService
	registry *NormalizerRegistry
	logger   *slog.Logger

	dataMaxLen    int
	rawMaxLen     int
	previewMaxLen int
}

// NewFinalizeService wires the pipeline. db, audit, notify and registry
// are all required.
func NewFinalizeService(
	db *database.DB,
	audit *AuditService,
	notify *NotificationService,
	registry *NormalizerRegistry,
	dataMaxLen, rawMaxLen, previewMaxLen int,
) (*FinalizeService, error) {
	if db == nil {
		return nil, apperrors.NewInternalError("db cannot be nil", nil)
	}
	if audit == nil {
		return nil, apperrors.NewInternalError("audit service cannot be nil", nil)
	}
	if notify == nil {
		return nil, apperrors.NewInternalError("notification service cannot be nil", nil)
	}
	if registry == nil {
		return nil, apperrors.NewInternalError("normalizer registry cannot be nil", nil)
	}
	return &FinalizeService{
		db:            db,
		audit:         audit,
		notify:        notify,
		registry:      registry,
		logger:        slog.Default(),
		dataMaxLen:    dataMaxLen,
		rawMaxLen:     rawMaxLen,
		previewMaxLen: previewMaxLen,
	}, nil
}

// NewFinalizeServiceWithLogger wires the pipeline with an explicit logger.
func NewFinalizeServiceWithLogger(
	db *database.DB,
	audit *AuditService,
	notify *NotificationService,
	registry *NormalizerRegistry,
	dataMaxLen, rawMaxLen, previewMaxLen int,
	logger *slog.Logger,
) (*FinalizeService, error) {
	svc, err := NewFinalizeService(db, audit, notify, registry, dataMaxLen, rawMaxLen, previewMaxLen)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		svc.logger = logger
	}
	return svc, nil
}

// baseFacts builds the FactSet shared by every outgoing card.
func baseFacts(payload *SubmissionPayload) []NotificationFact {
	return []NotificationFact{
		{Title: "Submission", Value: payload.ID},
		{Title: "Template", Value: payload.TemplateID},
		{Title: "Planta", Value: payload.PlantaValue()},
		{Title: "Temporada", Value: payload.TemporadaValue()},
		{Title: "Tipo fruta", Value: payload.TipoFrutaValue()},
		{Title: "Enviado por", Value: payload.SubmittedBy},
	}
}

// countFacts renders the normalizer counts as card facts.
func countFacts(counts map[string]interface{}) []NotificationFact {
	if len(counts) == 0 {
		return nil
	}
	return []NotificationFact{
		{Title: "Detalle", Value: jsonutil.SafeString(counts, notifyFactMaxLen)},
	}
}

// Finalize runs the full pipeline for one submission payload.
//
// The raw payload is persisted before anything else, so a later
// normalization failure never loses the submission. A persistence
// failure is the only fatal outcome.
func (s *FinalizeService) Finalize(ctx context.Context, payload *SubmissionPayload) (*FinalizeResult, error) {
	start := time.Now()
	requestID := middleware.GetRequestID(ctx)

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	s.logFinalizeStart(payload, requestID)

	// Step 1: durable raw persistence. Idempotent on submission id.
	record := payload.ToRecord(s.dataMaxLen, s.rawMaxLen)
	if err := s.db.UpsertSubmission(ctx, record); err != nil {
		persistErr := apperrors.NewPersistenceError("failed to persist raw submission", err)
		s.notify.Send(ctx, NotificationCard{
			Title:    "Error crítico al guardar formulario",
			Message:  persistErr.Error(),
			Facts:    baseFacts(payload),
			Severity: HealthFail,
		})
		return nil, persistErr
	}

	s.audit.RecordBestEffort(ctx, payload.ID, payload.TemplateID,
		database.EventFinalizeReceived, database.AuditOK,
		"raw submission persisted", map[string]interface{}{
			"planta":     payload.PlantaValue(),
			"temporada":  payload.TemporadaValue(),
			"tipo_fruta": payload.TipoFrutaValue(),
			"request_id": requestID,
		})

	// Step 2: dispatch by template id.
	normalizer, found := s.registry.Lookup(payload)
	if !found {
		return s.finishUnimplemented(ctx, payload, requestID)
	}

	// Step 3: normalize. The raw row is already durable, so failures
	// here report 500 without losing data.
	counts, err := normalizer.Normalize(ctx, payload)
	if err != nil {
		if !normalizer.SelfAudited() {
			s.audit.RecordBestEffort(ctx, payload.ID, payload.TemplateID,
				database.EventFinalizeFail, database.AuditFail, err.Error(), nil)
		}
		s.notify.Send(ctx, NotificationCard{
			Title:    "Error al normalizar formulario",
			Message:  err.Error(),
			Facts:    baseFacts(payload),
			Severity: HealthFail,
		})
		s.logFinalizeError(payload, requestID, err)
		return nil, apperrors.NewNormalizationError("normalization failed, raw submission kept", err)
	}

	health := HealthFromCounts(counts)
	if !normalizer.SelfAudited() {
		s.audit.RecordBestEffort(ctx, payload.ID, payload.TemplateID,
			database.EventFinalizeDone, database.AuditOK,
			fmt.Sprintf("normalization finished with health %s", health), counts)
	}

	// Step 4: best effort channel notification.
	card := NotificationCard{
		Title:    fmt.Sprintf("Formulario %s finalizado", payload.TemplateID),
		Message:  fmt.Sprintf("Estado de salud: %s", health),
		Facts:    append(baseFacts(payload), countFacts(counts)...),
		Severity: health,
	}
	s.notify.Send(ctx, card)

	s.logFinalizeComplete(payload, requestID, health, time.Since(start))

	return &FinalizeResult{
		OK:           true,
		SubmissionID: payload.ID,
		RequestID:    requestID,
		TemplateID:   payload.TemplateID,
		HealthStatus: health,
		Counts:       counts,
		Implemented:  true,
	}, nil
}

// logFinalizeStart logs the beginning of a submission finalization.
func (s *FinalizeService) logFinalizeStart(payload *SubmissionPayload, requestID string) {
	s.logger.Info("finalize started",
		"submission_id", payload.ID,
		"template_id", payload.TemplateID,
		"request_id", requestID,
	)
}

// logFinalizeComplete logs a finished finalization with its outcome.
func (s *FinalizeService) logFinalizeComplete(payload *SubmissionPayload, requestID, health string, duration time.Duration) {
	s.logger.Info("finalize completed",
		"submission_id", payload.ID,
		"template_id", payload.TemplateID,
		"health_status", health,
		"request_id", requestID,
		"duration_ms", duration.Milliseconds(),
	)
}

// logFinalizeError logs a failed normalization.
func (s *FinalizeService) logFinalizeError(payload *SubmissionPayload, requestID string, err error) {
	s.logger.Error("finalize failed",
		"submission_id", payload.ID,
		"template_id", payload.TemplateID,
		"request_id", requestID,
		"error", err,
	)
}

// finishUnimplemented handles templates without a registered normalizer.
// The raw row stays, a WARN audit entry records the data shape and the
// caller gets 501 with a preview of what was received.
func (s *FinalizeService) finishUnimplemented(ctx context.Context, payload *SubmissionPayload, requestID string) (*FinalizeResult, error) {
	preview := jsonutil.SafeString(payload.Data, s.previewMaxLen)
	s.audit.RecordBestEffort(ctx, payload.ID, payload.TemplateID,
		database.EventFinalizeNotImplemented, database.AuditWarn,
		"no normalizer registered for template", map[string]interface{}{
			"data_keys":    payload.DataKeys(),
			"data_preview": preview,
		})

	s.notify.Send(ctx, NotificationCard{
		Title:    fmt.Sprintf("Formulario %s sin normalizador", payload.TemplateID),
		Message:  "El envío quedó guardado en crudo y espera soporte de normalización.",
		Facts:    baseFacts(payload),
		Severity: HealthWarn,
	})

	s.logger.Warn("finalize for unimplemented template",
		"submission_id", payload.ID,
		"template_id", payload.TemplateID,
		"request_id", requestID,
	)

	return &FinalizeResult{
		OK:           false,
		SubmissionID: payload.ID,
		RequestID:    requestID,
		TemplateID:   payload.TemplateID,
		Message:      fmt.Sprintf("template %s not implemented, raw submission stored", payload.TemplateID),
		Implemented:  false,
	}, nil
}

// GetSubmission returns one stored submission with its JSON blobs.
func (s *FinalizeService) GetSubmission(ctx context.Context, submissionID string) (database.SubmissionRecord, error) {
	record, err := s.db.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, database.ErrSubmissionNotFound) {
			return database.SubmissionRecord{}, apperrors.NewNotFoundError(fmt.Sprintf("submission %s not found", submissionID), err)
		}
		return database.SubmissionRecord{}, apperrors.NewPersistenceError("failed to read submission", err)
	}
	return record, nil
}

// ListSubmissions returns stored submissions matching the filter,
// newest first, without the JSON blobs.
func (s *FinalizeService) ListSubmissions(ctx context.Context, filter database.SubmissionFilter) ([]database.SubmissionRecord, int, error) {
	records, total, err := s.db.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.NewPersistenceError("failed to list submissions", err)
	}
	return records, total, nil
}

// SubmissionHealth returns the health row for a REG.CKU.014 submission.
func (s *FinalizeService) SubmissionHealth(ctx context.Context, submissionID string) (map[string]interface{}, error) {
	health, err := s.db.RecepMadPomaceasHealth(ctx, submissionID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to read submission health", err)
	}
	if len(health) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no health row for submission %s", submissionID), nil)
	}
	return health, nil
}
