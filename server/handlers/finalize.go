package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ckuserver/server/errors"
	"ckuserver/server/services"
)

// FinalizeHandler exposes the submission finalization endpoint.
type FinalizeHandler struct {
	finalize *services.FinalizeService
	logger   *slog.Logger
}

// NewFinalizeHandler creates the handler. Returns an error when the
// finalize service is nil.
func NewFinalizeHandler(finalize *services.FinalizeService) (*FinalizeHandler, error) {
	if finalize == nil {
		return nil, apperrors.NewInternalError("finalize service cannot be nil", nil)
	}
	return &FinalizeHandler{
		finalize: finalize,
		logger:   slog.Default(),
	}, nil
}

// HandleFinalizeGin handles POST /api/submissions/finalize.
//
// The response is 200 for a normalized submission, 501 when the
// template has no registered normalizer (the raw payload is stored
// either way) and 500 when normalization failed after the raw payload
// was persisted.
func (h *FinalizeHandler) HandleFinalizeGin(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		SendJSONError(c, http.StatusBadRequest, "request body is required")
		return
	}

	payload, err := services.ParseSubmissionPayload(body)
	if err != nil {
		SendAppError(c, err)
		return
	}

	result, err := h.finalize.Finalize(c.Request.Context(), payload)
	if err != nil {
		SendAppError(c, err)
		return
	}

	if !result.Implemented {
		SendJSONResponse(c, http.StatusNotImplemented, gin.H{
			"ok":        false,
			"error":     result.Message,
			"requestId": result.RequestID,
		})
		return
	}
	SendJSONResponse(c, http.StatusOK, result)
}
