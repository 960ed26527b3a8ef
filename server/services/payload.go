package services

import (
	"encoding/json"
	"strings"
	"time"

	"ckuserver/database"
	"ckuserver/internal/jsonutil"
	apperrors "ckuserver/server/errors"
)

// SubmissionUser identifies the person who filled the form.
type SubmissionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionTemplate describes the form template the payload was built from.
type SubmissionTemplate struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// SubmissionPayload is the finalize request body as sent by the mobile app.
// Data holds the template specific answers and is passed through to the
// normalizers untouched.
type SubmissionPayload struct {
	ID          string                 `json:"id"`
	TemplateID  string                 `json:"templateId"`
	Status      string                 `json:"status"`
	CreatedAt   string                 `json:"createdAt"`
	UpdatedAt   string                 `json:"updatedAt"`
	SubmittedBy string                 `json:"submittedBy"`
	Planta      string                 `json:"planta"`
	User        SubmissionUser         `json:"user"`
	Template    SubmissionTemplate     `json:"template"`
	Data        map[string]interface{} `json:"data"`

	// rawBody is the request body exactly as received, kept for the
	// raw_submission_json column.
	rawBody []byte
}

// ParseSubmissionPayload decodes the finalize request body and keeps the
// original bytes alongside the decoded struct.
func ParseSubmissionPayload(body []byte) (*SubmissionPayload, error) {
	var p SubmissionPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperrors.NewValidationError("invalid JSON body", err)
	}
	p.rawBody = body
	return &p, nil
}

// Validate checks the fields every template requires.
func (p *SubmissionPayload) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return apperrors.NewValidationError("submission id is required", nil)
	}
	if strings.TrimSpace(p.TemplateID) == "" {
		return apperrors.NewValidationError("templateId is required", nil)
	}
	return nil
}

// RawBody returns the request body exactly as received. Falls back to a
// re-marshal when the payload was built in code rather than parsed.
func (p *SubmissionPayload) RawBody() []byte {
	if len(p.rawBody) > 0 {
		return p.rawBody
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// dataField reads a string field from Data, falling back to
// Data.encabezado when the top level does not carry it.
func (p *SubmissionPayload) dataField(key string) string {
	if p.Data == nil {
		return ""
	}
	if s, ok := p.Data[key].(string); ok && s != "" {
		return s
	}
	if enc, ok := p.Data["encabezado"].(map[string]interface{}); ok {
		if s, ok := enc[key].(string); ok {
			return s
		}
	}
	return ""
}

// PlantaValue resolves the plant name. The top level field wins, then the
// form data, then the form header.
func (p *SubmissionPayload) PlantaValue() string {
	if p.Planta != "" {
		return p.Planta
	}
	return p.dataField("planta")
}

// TemporadaValue resolves the season from the form data or header.
func (p *SubmissionPayload) TemporadaValue() string {
	return p.dataField("temporada")
}

// TipoFrutaValue resolves the fruit type from the form data or header.
func (p *SubmissionPayload) TipoFrutaValue() string {
	return p.dataField("tipo_fruta")
}

// Discriminator is the fruit type in dispatch form, used to tell apart
// template variants that share a template id.
func (p *SubmissionPayload) Discriminator() string {
	return strings.ToUpper(strings.TrimSpace(p.TipoFrutaValue()))
}

// DataKeys returns the top level keys of Data, for diagnostics on
// unrecognized templates.
func (p *SubmissionPayload) DataKeys() []string {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	return keys
}

// ToRecord builds the row persisted into cku_submissions. dataMaxLen and
// rawMaxLen cap the stored JSON blobs.
func (p *SubmissionPayload) ToRecord(dataMaxLen, rawMaxLen int) database.SubmissionRecord {
	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := p.CreatedAt
	if createdAt == "" {
		createdAt = now
	}
	updatedAt := p.UpdatedAt
	if updatedAt == "" {
		updatedAt = now
	}

	return database.SubmissionRecord{
		SubmissionID:      p.ID,
		TemplateID:        p.TemplateID,
		TemplateTitle:     p.Template.Title,
		TemplateVersion:   p.Template.Version,
		Status:            p.Status,
		SubmittedBy:       p.SubmittedBy,
		UserID:            p.User.ID,
		UserName:          p.User.Name,
		UserEmail:         p.User.Email,
		Planta:            p.PlantaValue(),
		Temporada:         p.TemporadaValue(),
		TipoFruta:         p.TipoFrutaValue(),
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		DataJSON:          jsonutil.SafeString(p.Data, dataMaxLen),
		RawSubmissionJSON: jsonutil.CapString(string(p.RawBody()), rawMaxLen),
	}
}
