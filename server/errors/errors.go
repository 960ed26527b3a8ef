package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an application error with an HTTP status and context.
type AppError struct {
	Code    int    `json:"status_code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // internal error for logs, never serialized
	Context string `json:"-"` // extra context (function, parameters)
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code.
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage returns the message shown to the caller.
func (e *AppError) UserMessage() string {
	return e.Message
}

// WithContext attaches context to the error.
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewValidationError creates a 400 Bad Request error. Raised before
// any persistence is attempted.
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewUnauthorizedError creates a 401 Unauthorized error. Raised before
// any persistence is attempted.
func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a 404 Not Found error.
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Err:     err,
	}
}

// NewPersistenceError creates a 500 error for the one fatal pipeline
// failure: the raw upsert did not land.
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

// NewNormalizationError creates a 500 error for a failed template
// normalizer. The raw row is already durable when this is raised.
func NewNormalizationError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}

// NewUnimplementedTemplateError creates a 501 Not Implemented error.
// Not a true failure: the raw data is stored and can be reprocessed
// once a normalizer exists for the template.
func NewUnimplementedTemplateError(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotImplemented,
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error. The caller
// sees a generic message, details go to the logs.
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
		Err:     errors.Join(errors.New(message), err),
	}
}

// WrapError converts any error to an AppError, passing AppErrors
// through unchanged.
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Err:     err,
	}
}
