package services

import (
	"context"
	"fmt"

	"ckuserver/database"
)

// RecepMadPomaceasNormalizer handles the pome fruit reception maturity
// form (REG.CKU.014). It writes its own FINALIZE_START/DONE/FAIL trail
// and derives the DONE result from the submission health view.
type RecepMadPomaceasNormalizer struct {
	db    *database.DB
	audit *AuditService
}

func NewRecepMadPomaceasNormalizer(db *database.DB, audit *AuditService) *RecepMadPomaceasNormalizer {
	return &RecepMadPomaceasNormalizer{db: db, audit: audit}
}

func (n *RecepMadPomaceasNormalizer) TemplateID() string { return TemplateRecepMadPomaceas }

func (n *RecepMadPomaceasNormalizer) SelfAudited() bool { return true }

func (n *RecepMadPomaceasNormalizer) Normalize(ctx context.Context, payload *SubmissionPayload) (map[string]interface{}, error) {
	n.audit.RecordBestEffort(ctx, payload.ID, TemplateRecepMadPomaceas,
		database.EventFinalizeStart, database.AuditOK, "normalization started", nil)

	if err := n.db.LoadRecepMadPomaceas(ctx, payload.ID); err != nil {
		wrapped := normalizeErr(TemplateRecepMadPomaceas, err)
		n.audit.RecordBestEffort(ctx, payload.ID, TemplateRecepMadPomaceas,
			database.EventFinalizeFail, database.AuditFail, wrapped.Error(), nil)
		return nil, wrapped
	}

	health, err := n.db.RecepMadPomaceasHealth(ctx, payload.ID)
	if err != nil {
		wrapped := normalizeErr(TemplateRecepMadPomaceas, err)
		n.audit.RecordBestEffort(ctx, payload.ID, TemplateRecepMadPomaceas,
			database.EventFinalizeFail, database.AuditFail, wrapped.Error(), nil)
		return nil, wrapped
	}

	status := HealthFromCounts(health)
	result := database.AuditOK
	switch status {
	case HealthWarn:
		result = database.AuditWarn
	case HealthFail:
		result = database.AuditFail
	}
	n.audit.RecordBestEffort(ctx, payload.ID, TemplateRecepMadPomaceas,
		database.EventFinalizeDone, result,
		fmt.Sprintf("normalization finished with health %s", status), health)

	return health, nil
}
