package server

import (
	"errors"
	"net/http"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// APIError is the JSON error envelope every RPC failure returns.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// NewAPIError builds an APIError.
func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

var (
	errNoWorkflowLoaded = NewAPIError("NO_WORKFLOW_LOADED", "no workflow is loaded", http.StatusConflict)
	errInvalidJSON      = NewAPIError("INVALID_JSON", "invalid JSON in request body", http.StatusBadRequest)
)

// domainErrorStatus maps a DomainError code to an HTTP status.
func domainErrorStatus(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeInvalidState,
		domain.ErrCodeValidationFailed,
		domain.ErrCodeDuplicateNodeID,
		domain.ErrCodeYAMLInvalid,
		domain.ErrCodeWorkflowFileTypeUnsupported,
		domain.ErrCodePlaybookParameterInvalid:
		return http.StatusBadRequest
	case domain.ErrCodeWorkflowNotValid,
		domain.ErrCodeCyclicDependency,
		domain.ErrCodeStartNodeNotFound,
		domain.ErrCodeEndNodeNotFound,
		domain.ErrCodeVaultScriptMissing,
		domain.ErrCodeWorkflowFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// translateError converts any error returned by internal/engine or
// internal/compiler into an APIError carrying a machine-readable kind and
// a human message.
func translateError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		return NewAPIError(de.Code, de.Message, domainErrorStatus(de.Code))
	}
	return NewAPIError("INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
}
