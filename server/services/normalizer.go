package services

import (
	"context"
	"fmt"
	"strings"

	"ckuserver/database"
)

// Template ids with a registered normalizer.
const (
	TemplatePrecosechaManzanas = "REG.CKU.013"
	TemplateRecepMadPomaceas   = "REG.CKU.014"
	TemplatePreEmbarque        = "REG.CKU.027"

	// DiscriminatorManzana selects the apple variant of REG.CKU.013,
	// matched against the payload's fruit type.
	DiscriminatorManzana = "MANZANA"
)

// Normalizer explodes one template's raw payload into its relational
// tables and reports row counts plus an optional health_status entry.
type Normalizer interface {
	// TemplateID returns the template this normalizer handles.
	TemplateID() string
	// Normalize loads the already persisted raw submission into the
	// template tables. Loading is delete-then-insert, so reruns for the
	// same submission id leave a single copy.
	Normalize(ctx context.Context, payload *SubmissionPayload) (map[string]interface{}, error)
	// SelfAudited reports whether the normalizer writes its own
	// FINALIZE_START/DONE/FAIL trail. The orchestrator skips its generic
	// events for such normalizers.
	SelfAudited() bool
}

// registryKey addresses a normalizer by template id plus an optional
// payload discriminator.
type registryKey struct {
	templateID    string
	discriminator string
}

// NormalizerRegistry maps (template id, discriminator) pairs to their
// normalizers.
type NormalizerRegistry struct {
	entries map[registryKey]Normalizer
}

// NewNormalizerRegistry creates an empty registry.
func NewNormalizerRegistry() *NormalizerRegistry {
	return &NormalizerRegistry{entries: make(map[registryKey]Normalizer)}
}

// Register binds a normalizer to a template id. discriminator may be
// empty for templates without variants.
func (r *NormalizerRegistry) Register(templateID, discriminator string, n Normalizer) {
	key := registryKey{
		templateID:    strings.TrimSpace(templateID),
		discriminator: strings.ToUpper(strings.TrimSpace(discriminator)),
	}
	r.entries[key] = n
}

// Lookup resolves the normalizer for a payload. An exact
// (template, discriminator) match wins over a template-only entry.
func (r *NormalizerRegistry) Lookup(payload *SubmissionPayload) (Normalizer, bool) {
	templateID := strings.TrimSpace(payload.TemplateID)
	if n, ok := r.entries[registryKey{templateID, payload.Discriminator()}]; ok {
		return n, true
	}
	n, ok := r.entries[registryKey{templateID: templateID}]
	return n, ok
}

// TemplateIDs lists the registered template ids, for diagnostics.
func (r *NormalizerRegistry) TemplateIDs() []string {
	seen := make(map[string]bool, len(r.entries))
	ids := make([]string, 0, len(r.entries))
	for key := range r.entries {
		if !seen[key.templateID] {
			seen[key.templateID] = true
			ids = append(ids, key.templateID)
		}
	}
	return ids
}

// DefaultRegistry wires the three production normalizers against db.
func DefaultRegistry(db *database.DB, audit *AuditService) *NormalizerRegistry {
	registry := NewNormalizerRegistry()
	registry.Register(TemplatePrecosechaManzanas, DiscriminatorManzana, NewPrecosechaManzanasNormalizer(db))
	registry.Register(TemplateRecepMadPomaceas, "", NewRecepMadPomaceasNormalizer(db, audit))
	registry.Register(TemplatePreEmbarque, "", NewPreEmbarqueNormalizer(db, audit))
	return registry
}

// normalizeErr wraps a loader failure with the template id for logs.
func normalizeErr(templateID string, err error) error {
	return fmt.Errorf("normalize %s: %w", templateID, err)
}
