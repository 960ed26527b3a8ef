package services

import (
	"context"

	"ckuserver/database"
)

// PrecosechaManzanasNormalizer handles the apple pre-harvest form
// (REG.CKU.013 with tipo_fruta MANZANA). The orchestrator writes
// the audit trail for it.
type PrecosechaManzanasNormalizer struct {
	db *database.DB
}

func NewPrecosechaManzanasNormalizer(db *database.DB) *PrecosechaManzanasNormalizer {
	return &PrecosechaManzanasNormalizer{db: db}
}

func (n *PrecosechaManzanasNormalizer) TemplateID() string { return TemplatePrecosechaManzanas }

func (n *PrecosechaManzanasNormalizer) SelfAudited() bool { return false }

func (n *PrecosechaManzanasNormalizer) Normalize(ctx context.Context, payload *SubmissionPayload) (map[string]interface{}, error) {
	if err := n.db.LoadPrecosechaManzanas(ctx, payload.ID); err != nil {
		return nil, normalizeErr(TemplatePrecosechaManzanas, err)
	}
	counts, err := n.db.PrecosechaCounts(ctx, payload.ID)
	if err != nil {
		return nil, normalizeErr(TemplatePrecosechaManzanas, err)
	}
	return counts, nil
}
