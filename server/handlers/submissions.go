package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ckuserver/database"
	apperrors "ckuserver/server/errors"
	"ckuserver/server/services"
)

// SubmissionsHandler exposes the read side: stored submissions, their
// audit trail, per-submission health and bulk export.
type SubmissionsHandler struct {
	finalize *services.FinalizeService
	audit    *services.AuditService
	export   *services.ExportService
}

// NewSubmissionsHandler creates the handler. All services are required.
func NewSubmissionsHandler(finalize *services.FinalizeService, audit *services.AuditService, export *services.ExportService) (*SubmissionsHandler, error) {
	if finalize == nil || audit == nil || export == nil {
		return nil, apperrors.NewInternalError("submissions handler requires all services", nil)
	}
	return &SubmissionsHandler{
		finalize: finalize,
		audit:    audit,
		export:   export,
	}, nil
}

func submissionFilterFromQuery(c *gin.Context) database.SubmissionFilter {
	return database.SubmissionFilter{
		TemplateID: c.Query("templateId"),
		Planta:     c.Query("planta"),
		Status:     c.Query("status"),
		TipoFruta:  c.Query("tipoFruta"),
		Limit:      queryInt(c, "limit", 50),
		Offset:     queryInt(c, "offset", 0),
	}
}

// HandleListSubmissionsGin handles GET /api/submissions.
func (h *SubmissionsHandler) HandleListSubmissionsGin(c *gin.Context) {
	filter := submissionFilterFromQuery(c)

	records, total, err := h.finalize.ListSubmissions(c.Request.Context(), filter)
	if err != nil {
		SendAppError(c, err)
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"ok":     true,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
		"items":  records,
	})
}

// HandleGetSubmissionGin handles GET /api/submissions/:id.
func (h *SubmissionsHandler) HandleGetSubmissionGin(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		SendJSONError(c, http.StatusBadRequest, "submission id is required")
		return
	}

	record, err := h.finalize.GetSubmission(c.Request.Context(), submissionID)
	if err != nil {
		SendAppError(c, err)
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"ok":   true,
		"item": record,
	})
}

// HandleSubmissionHealthGin handles GET /api/submissions/:id/health.
func (h *SubmissionsHandler) HandleSubmissionHealthGin(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		SendJSONError(c, http.StatusBadRequest, "submission id is required")
		return
	}

	health, err := h.finalize.SubmissionHealth(c.Request.Context(), submissionID)
	if err != nil {
		SendAppError(c, err)
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"ok":     true,
		"health": health,
	})
}

// HandleListAuditGin handles GET /api/audit.
func (h *SubmissionsHandler) HandleListAuditGin(c *gin.Context) {
	filter := database.AuditFilter{
		SubmissionID: c.Query("submissionId"),
		EventType:    c.Query("eventType"),
		Result:       database.AuditResult(c.Query("result")),
		Limit:        queryInt(c, "limit", 100),
	}

	events, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		SendAppError(c, err)
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"ok":    true,
		"total": total,
		"limit": filter.Limit,
		"items": events,
	})
}

// HandleExportSubmissionsGin handles GET /api/submissions/export.
// Supported formats: json (default), csv, excel.
func (h *SubmissionsHandler) HandleExportSubmissionsGin(c *gin.Context) {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		SendAppError(c, err)
		return
	}

	filter := submissionFilterFromQuery(c)
	if c.Query("limit") == "" {
		// Exports default to the largest page the store serves.
		filter.Limit = 500
	}
	filter.Offset = 0

	c.Header("Content-Type", format.ContentType())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	c.Status(http.StatusOK)

	if err := h.export.Export(c.Request.Context(), c.Writer, format, filter); err != nil {
		// Headers are already out, the broken download is all we can
		// report to the client.
		SendAppError(c, err)
	}
}
