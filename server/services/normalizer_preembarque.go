package services

import (
	"context"

	"ckuserver/database"
)

// Custom audit events the pre-shipment normalizer emits alongside the
// orchestrator's generic trail.
const (
	eventPreEmbarqueNormalized = "pre_embarque_normalized"
	eventPreEmbarqueError      = "pre_embarque_normalization_error"
	eventPreEmbarqueFinalize   = "pre_embarque_finalize"
)

// PreEmbarqueNormalizer handles the pre-shipment inspection form
// (REG.CKU.027). The orchestrator owns the generic trail, the custom
// events below are best effort extras kept for the reporting side.
type PreEmbarqueNormalizer struct {
	db    *database.DB
	audit *AuditService
}

func NewPreEmbarqueNormalizer(db *database.DB, audit *AuditService) *PreEmbarqueNormalizer {
	return &PreEmbarqueNormalizer{db: db, audit: audit}
}

func (n *PreEmbarqueNormalizer) TemplateID() string { return TemplatePreEmbarque }

func (n *PreEmbarqueNormalizer) SelfAudited() bool { return false }

func (n *PreEmbarqueNormalizer) Normalize(ctx context.Context, payload *SubmissionPayload) (map[string]interface{}, error) {
	n.audit.RecordBestEffort(ctx, payload.ID, TemplatePreEmbarque,
		eventPreEmbarqueFinalize, database.AuditOK, "pre-shipment normalization requested", nil)

	if err := n.db.LoadPreEmbarque(ctx, payload.ID); err != nil {
		wrapped := normalizeErr(TemplatePreEmbarque, err)
		n.audit.RecordBestEffort(ctx, payload.ID, TemplatePreEmbarque,
			eventPreEmbarqueError, database.AuditFail, wrapped.Error(), nil)
		return nil, wrapped
	}

	counts, err := n.db.PreEmbarqueCounts(ctx, payload.ID)
	if err != nil {
		wrapped := normalizeErr(TemplatePreEmbarque, err)
		n.audit.RecordBestEffort(ctx, payload.ID, TemplatePreEmbarque,
			eventPreEmbarqueError, database.AuditFail, wrapped.Error(), nil)
		return nil, wrapped
	}

	n.audit.RecordBestEffort(ctx, payload.ID, TemplatePreEmbarque,
		eventPreEmbarqueNormalized, database.AuditOK, "pre-shipment normalization finished", counts)

	return counts, nil
}
