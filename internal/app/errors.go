package app

import (
	"fmt"
	"net/http"

	"grimoire/internal/entity"
)

// DomainError is rendered as the {code, error, details} envelope. Cause, when
// set, keeps errors.Is working against the sentinel it was built from.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func unknownTypeError(raw string, cause error) *DomainError {
	err := domainError(http.StatusBadRequest, "UNKNOWN_ENTITY_TYPE", "Unknown entity type", map[string]any{
		"entityType": raw,
		"allowed":    entity.All(),
	})
	err.Cause = cause
	return err
}

func errViewNotFound(viewID string) error {
	return domainError(http.StatusNotFound, "VIEW_NOT_FOUND", "View not found or expired", map[string]any{"viewId": viewID})
}
