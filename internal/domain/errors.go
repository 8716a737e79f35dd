package domain

import "fmt"

// DomainError is a machine-readable error carrying a stable code alongside
// a human message, the way every layer of this system reports failure.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError builds a DomainError.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Error codes. The CLI front-end maps these onto its stable exit codes.
const (
	ErrCodeYAMLInvalid                 = "YAML_INVALID"
	ErrCodeWorkflowNotValid            = "WORKFLOW_NOT_VALID"
	ErrCodeDuplicateNodeID             = "DUPLICATE_NODE_ID"
	ErrCodeVaultScriptMissing          = "VAULT_SCRIPT_MISSING"
	ErrCodeValidationFailed            = "VALIDATION_FAILED"
	ErrCodeWorkflowFileTypeUnsupported = "WORKFLOW_FILE_TYPE_UNSUPPORTED"
	ErrCodeStartNodeNotFound           = "START_NODE_NOT_FOUND"
	ErrCodeEndNodeNotFound             = "END_NODE_NOT_FOUND"
	ErrCodePlaybookParameterInvalid    = "PLAYBOOK_PARAMETER_INVALID"
	ErrCodeWorkflowFailed              = "WORKFLOW_FAILED"
	ErrCodeNotFound                    = "NOT_FOUND"
	ErrCodeInvalidState                = "INVALID_STATE"
	ErrCodeCyclicDependency            = "CYCLIC_DEPENDENCY"
)
